// Projectd serves the project and task API.
//
// Configuration is read from ~/.config/projectd/config.yaml (or -config)
// and PROJECTD_-prefixed environment variables. See internal/config.
//
// Usage:
//
//	# Start with defaults (in-memory store, log publisher)
//	PROJECTD_AUTH__SECRET=... projectd
//
//	# Use a specific config file
//	projectd -config /etc/projectd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  projectd [-config path]   Start the projectd server\n")
			fmt.Fprintf(os.Stderr, "  projectd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "projectd: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("projectd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run loads configuration, wires every component and serves until ctx is
// cancelled, then shuts down within the configured timeout.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	logger := log.Underlying()
	defer func() {
		_ = logger.Sync()
	}()

	app, err := build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer app.close()

	logger.Info("starting projectd",
		zap.String("version", version),
		zap.String("store", cfg.Store.Driver),
		zap.String("events", cfg.Events.Driver),
		zap.Int("port", cfg.Server.Port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
