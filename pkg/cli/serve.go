package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/cli/config"
	httpctrl "github.com/secmon-lab/standup/pkg/controller/http"
	"github.com/secmon-lab/standup/pkg/service/worker"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/secmon-lab/standup/pkg/utils/async"
	"github.com/secmon-lab/standup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var allowedOrigins []string
	var enableMetrics bool
	var retention time.Duration
	var retentionInterval time.Duration
	var graphCfg config.Graph
	var llmCfg config.LLM
	var repoCfg config.Repository
	var cacheCfg config.Cache
	var parserCfg config.Parser

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("STANDUP_ADDR"),
			Destination: &addr,
		},
		&cli.StringSliceFlag{
			Name:        "allowed-origin",
			Usage:       "CORS allowed origin, repeatable. Any origin is allowed when empty",
			Sources:     cli.EnvVars("STANDUP_ALLOWED_ORIGINS"),
			Destination: &allowedOrigins,
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Expose Prometheus metrics at /metrics",
			Value:       true,
			Sources:     cli.EnvVars("STANDUP_METRICS"),
			Destination: &enableMetrics,
		},
		&cli.DurationFlag{
			Name:        "report-retention",
			Usage:       "Age after which saved reports are deleted. 0 keeps them forever",
			Value:       30 * 24 * time.Hour,
			Sources:     cli.EnvVars("STANDUP_REPORT_RETENTION"),
			Destination: &retention,
		},
		&cli.DurationFlag{
			Name:        "retention-interval",
			Usage:       "Interval of the report cleanup",
			Value:       time.Hour,
			Sources:     cli.EnvVars("STANDUP_RETENTION_INTERVAL"),
			Destination: &retentionInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, graphCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)
	flags = append(flags, parserCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("Serve configuration",
				"graph", graphCfg,
				"llm", llmCfg,
				"repository", repoCfg,
				"cache", cacheCfg,
			)

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			cache, closeCache, err := cacheCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize page cache")
			}
			defer closeCache()

			uc, err := buildUseCases(ctx, repo, &graphCfg, &llmCfg, &parserCfg, usecase.WithPageCache(cache))
			if err != nil {
				return err
			}

			var retentionWorker *worker.ReportRetentionWorker
			if retention > 0 {
				retentionWorker = worker.NewReportRetentionWorker(repo, retention, retentionInterval)
				if err := retentionWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start report retention worker")
				}
			}

			httpOpts := []httpctrl.Options{httpctrl.WithMetrics(enableMetrics)}
			if len(allowedOrigins) > 0 {
				httpOpts = append(httpOpts, httpctrl.WithAllowedOrigins(allowedOrigins))
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if retentionWorker != nil {
					retentionWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				// Reports still being saved
				if err := async.WaitTimeout(10 * time.Second); err != nil {
					logging.Default().Warn("background tasks did not finish", "error", err.Error())
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
