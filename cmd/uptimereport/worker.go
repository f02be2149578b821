package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"store-uptime/internal/queue"
	"store-uptime/internal/telemetry"
	"store-uptime/internal/worker"
)

func newWorkerCmd(gf *globalFlags) *cobra.Command {
	var migrateUp bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Execute queued report jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()
			if migrateUp {
				if err := a.store.RunMigrations(ctx); err != nil {
					return err
				}
			}

			runner, err := a.runner(ctx)
			if err != nil {
				return err
			}
			q := queue.NewRedisQueue(a.redisClient(), a.cfg.QueueName, a.cfg.VisibilityTimeout)

			metrics := &http.Server{Addr: a.cfg.MetricsAddr, Handler: telemetry.Handler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.log.Warn("metrics server stopped", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				_ = metrics.Shutdown(shutdownCtx)
			}()

			a.log.Info("worker started",
				zap.Int("concurrency", a.cfg.WorkerConcurrency),
				zap.Duration("visibility", a.cfg.VisibilityTimeout),
			)
			err = worker.NewProcessor(a.cfg, q, runner, a.log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				a.log.Info("worker stopped")
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "apply database migrations on startup")
	return cmd
}
