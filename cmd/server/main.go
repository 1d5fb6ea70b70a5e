package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/trafficguard/botscore/internal/api"
	"github.com/trafficguard/botscore/internal/artifact"
	"github.com/trafficguard/botscore/internal/blacklist"
	"github.com/trafficguard/botscore/internal/cache"
	"github.com/trafficguard/botscore/internal/config"
	"github.com/trafficguard/botscore/internal/features"
	"github.com/trafficguard/botscore/internal/predictor"
	"github.com/trafficguard/botscore/internal/registry"
	"github.com/trafficguard/botscore/internal/scheduler"
	"github.com/trafficguard/botscore/internal/store"
	"github.com/trafficguard/botscore/internal/trainer"
	"github.com/trafficguard/botscore/internal/training"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	decisionCache := cache.New(cache.Config{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	defer decisionCache.Close()

	artifacts, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	reg := registry.New(artifacts, logger)
	if err := reg.LoadLatest(ctx); err != nil {
		if errors.Is(err, registry.ErrNoVersions) {
			logger.Info("no trained model stored, serving rule-based classifier")
		} else {
			logger.Warn("loading latest model, serving rule-based classifier", "error", err)
		}
	}

	extractor := features.NewExtractor()

	bl := blacklist.New(blacklist.Config{
		BaseURL: cfg.Blacklist.BaseURL,
		Timeout: cfg.Blacklist.Timeout,
	}, logger)

	pred := predictor.New(extractor, reg, bl, decisionCache, st, logger)

	tr := trainer.New(logger)
	tr.OptimizeMinRows = cfg.Training.OptimizeMinRows

	orch := training.New(st, decisionCache, tr, reg, extractor.Names(), training.Config{
		MinSamples:   cfg.Training.MinSamples,
		BatchSize:    cfg.Training.BatchSize,
		Window:       cfg.Training.Window(),
		KeepVersions: cfg.Training.KeepVersions,
	}, logger)
	orch.Start(ctx)
	defer orch.Stop()

	sched := scheduler.New(logger)
	if err := sched.RegisterEvery("model-training", cfg.Training.Interval, orch.TriggerAsync); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(cfg, pred, orch, reg,
		api.WithLogger(logger),
		api.WithDependency("database", st),
		api.WithDependency("redis", decisionCache),
		api.WithQueueDepth(decisionCache.PendingSamples),
		api.WithPredictionReader(decisionCache),
	)
	return server.Run(ctx)
}

func buildArtifactStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	if cfg.Artifacts.Backend == "memory" {
		return artifact.NewMemory(), nil
	}
	return artifact.NewS3(ctx, artifact.S3Config{
		Bucket:          cfg.Artifacts.Bucket,
		Prefix:          cfg.Artifacts.Prefix,
		Region:          cfg.Artifacts.Region,
		AccessKeyID:     cfg.Artifacts.AccessKeyID,
		SecretAccessKey: cfg.Artifacts.SecretAccessKey,
	})
}
