package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		// CheckpointTTL bounds how long a snapshot stays resumable.
		CheckpointTTL string `yaml:"checkpoint_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Items struct {
		TTL string `yaml:"ttl"`
	} `yaml:"items"`
	Assessment Assessment `yaml:"assessment"`
	Subject    Subject    `yaml:"subject"`
}

// Assessment tunes the orchestrator loop.
type Assessment struct {
	Mode           string `yaml:"mode"`
	Input          string `yaml:"input"`
	Retries        int    `yaml:"retries"`
	RetryBackoff   string `yaml:"retry_backoff"`
	SubjectTimeout string `yaml:"subject_timeout"`
	Personality    string `yaml:"personality"`
	// Seed fixes scenario selection; 0 means time-seeded.
	Seed int64 `yaml:"seed"`
}

// Subject selects the adapter for the agent under test.
type Subject struct {
	// Kind is one of exec, http or echo.
	Kind    string            `yaml:"kind"`
	Command string            `yaml:"command"`
	Env     []string          `yaml:"env"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout string            `yaml:"timeout"`
	Reply   string            `yaml:"reply"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	switch c.Assessment.Mode {
	case "", "conversational", "self-report":
	default:
		return fmt.Errorf("assessment.mode: unknown mode %q", c.Assessment.Mode)
	}
	switch c.Assessment.Input {
	case "", "text", "likert":
	default:
		return fmt.Errorf("assessment.input: unknown input %q", c.Assessment.Input)
	}
	if c.Assessment.Retries < 0 {
		return fmt.Errorf("assessment.retries: must not be negative")
	}
	switch c.Subject.Kind {
	case "", "echo":
	case "exec":
		if c.Subject.Command == "" {
			return fmt.Errorf("subject.command: required for exec subjects")
		}
	case "http":
		if c.Subject.URL == "" {
			return fmt.Errorf("subject.url: required for http subjects")
		}
	default:
		return fmt.Errorf("subject.kind: unknown kind %q", c.Subject.Kind)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
