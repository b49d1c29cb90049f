package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/licitaflow/stagegate/internal/access"
	"github.com/licitaflow/stagegate/internal/folders"
	"github.com/licitaflow/stagegate/internal/guard"
	"github.com/licitaflow/stagegate/internal/ipc"
	"github.com/licitaflow/stagegate/internal/logging"
	"github.com/licitaflow/stagegate/internal/store"
	"github.com/licitaflow/stagegate/internal/tools"
	"github.com/licitaflow/stagegate/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			db, err := store.NewDB(cfg.Paths.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			lock := flock.New(cfg.Paths.DBPath + ".lock")
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another stagegate instance is already serving %s", cfg.Paths.DBPath)
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release lock", "error", err)
				}
			}()

			cal, err := ctx.calendar()
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}

			acc := access.NewResolver(access.Policy{AllowedUnits: cfg.Access.AllowedUnits})
			eng := workflow.NewEngine(db, acc, cal, logger.With("component", "engine"))
			handler := &ipc.Handler{
				Engine:  eng,
				Cache:   workflow.NewEvaluationCache(eng.Evaluator, 0),
				Tools:   tools.NewResolver(catalog),
				Access:  acc,
				Folders: folders.NewService(db, logger.With("component", "folders")),
				Guard:   guard.NewGuard(guard.GuardConfig{RateLimitPerMinute: cfg.Server.RateLimitPerMinute}),
				Logger:  logger.With("component", "api"),
			}
			srv := ipc.NewServer(handler, cfg.Server.ListenAddr)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("stagegate listening", "addr", cfg.Server.ListenAddr, "db", cfg.Paths.DBPath)
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-runCtx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Override server.listen_addr")
	return cmd
}
