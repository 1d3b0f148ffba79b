package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/tablefinder/internal/config"
	logpkg "github.com/kailas-cloud/tablefinder/internal/logger"
	"github.com/kailas-cloud/tablefinder/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "env",
			Usage:   "Environment name; selects config/<env>.yaml",
			Value:   "local",
			Sources: cli.EnvVars("ENV"),
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Explicit config file path (overrides --env lookup)",
			Sources: cli.EnvVars("TABLEFINDER_CONFIG"),
		},
	}

	return &cli.Command{
		Name:    "tablefinder",
		Usage:   "Conversational restaurant recommendation API",
		Version: version.String(),
		Flags:   flags,
		Action:  serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveAction,
			},
			{
				Name:   "validate",
				Usage:  "Load and validate the config and dataset, then exit",
				Action: validateAction,
			},
		},
	}
}

func loadConfig(c *cli.Command) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.String("env"))
}

func validateAction(_ context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ds, err := loadDataset(cfg.Dataset)
	if err != nil {
		return err
	}
	if _, err := buildRules(cfg.FollowUp); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "config ok: provider=%s cache=%s restaurants=%d places=%d\n",
		cfg.LLM.Provider, cfg.Cache.Driver, len(ds.Restaurants), len(ds.Places))
	return nil
}

func serveAction(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	env := c.String("env")

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tablefinder API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           a.handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.sweeper.Start(gctx)
		<-gctx.Done()
		a.sweeper.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
