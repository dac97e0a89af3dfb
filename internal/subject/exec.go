package subject

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Exec runs a local command per prompt. The prompt text goes to stdin and
// trimmed stdout is the answer.
type Exec struct {
	args []string
	env  []string
}

// NewExec parses a shell-style command line such as `python agent.py --persona "calm"`.
func NewExec(commandLine string, env ...string) (*Exec, error) {
	trimmed := strings.TrimSpace(commandLine)
	if trimmed == "" {
		return nil, fmt.Errorf("exec subject: empty command")
	}
	args, err := shellwords.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("exec subject: parse %q: %w", commandLine, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("exec subject: no args parsed from %q", commandLine)
	}
	return &Exec{args: args, env: env}, nil
}

// Args returns the parsed command line.
func (e *Exec) Args() []string {
	return append([]string(nil), e.args...)
}

func (e *Exec) Respond(ctx context.Context, prompt Prompt) (string, error) {
	cmd := exec.CommandContext(ctx, e.args[0], e.args[1:]...)
	if len(e.env) > 0 {
		cmd.Env = append(cmd.Environ(), e.env...)
	}
	cmd.Stdin = strings.NewReader(prompt.Text())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512] + "..."
		}
		if msg != "" {
			return "", fmt.Errorf("exec subject: %w: %s", err, msg)
		}
		return "", fmt.Errorf("exec subject: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
