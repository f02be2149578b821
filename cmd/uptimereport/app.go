package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"store-uptime/internal/artifact"
	"store-uptime/internal/config"
	"store-uptime/internal/logging"
	"store-uptime/internal/report"
	"store-uptime/internal/store"
	"store-uptime/internal/uptime"
)

// app bundles the dependencies shared by the commands.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	store *store.Store
	redis *redis.Client
}

func newApp(ctx context.Context, gf *globalFlags) (*app, error) {
	cfg, err := config.Load(gf.ConfigPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &app{cfg: cfg, log: log, store: st}, nil
}

func (a *app) redisClient() *redis.Client {
	if a.redis == nil {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
	}
	return a.redis
}

func (a *app) sink(ctx context.Context) (artifact.Sink, error) {
	if a.cfg.ArtifactS3Bucket != "" {
		return artifact.NewS3Sink(ctx, a.cfg)
	}
	return artifact.NewLocalSink(a.cfg.ArtifactDir), nil
}

func (a *app) runner(ctx context.Context) (*report.Runner, error) {
	zones, err := uptime.NewZoneResolver(a.store, a.cfg.DefaultTimezone, a.log)
	if err != nil {
		return nil, err
	}
	filter := uptime.NewFilter(a.store, uptime.NewHoursResolver(a.store, a.log), zones)
	sink, err := a.sink(ctx)
	if err != nil {
		return nil, err
	}
	return report.NewRunner(a.store, filter, sink, a.store, a.log, report.Options{
		Now:         a.cfg.Now,
		Parallelism: a.cfg.ReportParallelism,
	}), nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.store.Close()
	_ = a.log.Sync()
}
