package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"empathy-assessment-service/internal/config"
	transport "empathy-assessment-service/internal/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), v.GetString("config"), v.GetString("port"))
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := resolvePort(portFlag, cfg)

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(runCtx, rt.service),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	cancelRuns()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// resolvePort prefers the flag or env value, then server.port, then 8080.
func resolvePort(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	return "8080"
}
