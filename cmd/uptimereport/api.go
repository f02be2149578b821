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

	"store-uptime/internal/api"
	"store-uptime/internal/queue"
	"store-uptime/internal/ratelimit"
)

func newAPICmd(gf *globalFlags) *cobra.Command {
	var migrateUp bool
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve the report HTTP API",
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

			sink, err := a.sink(ctx)
			if err != nil {
				return err
			}
			rdb := a.redisClient()
			q := queue.NewRedisQueue(rdb, a.cfg.QueueName, a.cfg.VisibilityTimeout)
			limiter := ratelimit.NewTokenBucket(rdb, a.cfg.RateLimitCapacity, a.cfg.RateLimitRefill, time.Hour)

			srv := &http.Server{
				Addr:              ":" + a.cfg.HTTPPort,
				Handler:           api.New(a.store, q, sink, limiter, a.log).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.Info("api listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "apply database migrations on startup")
	return cmd
}
