package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/knownlayers/internal/cache"
	"github.com/mohammed-shakir/knownlayers/internal/cache/lrustore"
	"github.com/mohammed-shakir/knownlayers/internal/cache/redisstore"
	"github.com/mohammed-shakir/knownlayers/internal/classifier"
	"github.com/mohammed-shakir/knownlayers/internal/core/config"
	"github.com/mohammed-shakir/knownlayers/internal/core/health"
	"github.com/mohammed-shakir/knownlayers/internal/core/observability"
	"github.com/mohammed-shakir/knownlayers/internal/core/server"
	"github.com/mohammed-shakir/knownlayers/internal/feed/kafkaconsumer"
	"github.com/mohammed-shakir/knownlayers/internal/feed/membership"
	"github.com/mohammed-shakir/knownlayers/internal/layerconfig"
	"github.com/mohammed-shakir/knownlayers/internal/logger"
	"github.com/mohammed-shakir/knownlayers/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	layersFlag := flag.String("layers", "", "known layer definitions (overrides LAYERS_FILE)")
	envFlag := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadDotEnv(*envFlag); err != nil {
		slog.Error("load dotenv", "err", err)
		return 1
	}
	cfg := config.FromEnv()
	if *layersFlag != "" {
		cfg.LayersFile = strings.TrimSpace(*layersFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "knownlayers",
		Component: "main",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if cfg.MetricsEnabled {
		observability.Init(p.Registerer())
	}

	reg, err := layerconfig.Load(cfg.LayersFile)
	if err != nil {
		appLog.Error("failed to load known layers", "file", cfg.LayersFile, "err", err)
		return 1
	}
	observability.SetKnownLayers(reg.Len())
	ctx := logger.WithRegistryVersion(context.Background(), reg.Version())
	appLog.InfoContext(ctx, "known layers loaded",
		"file", cfg.LayersFile,
		"layers", reg.Len(),
		"visible", len(reg.Visible()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCache(ctx, cfg)
	if err != nil {
		appLog.Error("classification cache setup failed", "cache", cfg.ClassifyCache, "err", err)
		return 1
	}
	defer closeStore()
	if rc, ok := store.(*redisstore.Client); ok && cfg.PurgeStaleCache {
		n, err := rc.PurgeStale(ctx, reg.Version())
		if err != nil {
			appLog.WarnContext(ctx, "stale classification purge failed", "err", err)
		} else {
			appLog.InfoContext(ctx, "stale classifications purged", "keys", n)
		}
	}

	opts := []classifier.Option{classifier.WithOpTimeout(cfg.CacheOpTimeout)}
	if store != nil {
		opts = append(opts, classifier.WithCache(store, cfg.ClassifyCacheTTL))
	}
	cls := classifier.New(reg, appLog, opts...)

	if cfg.Feed.Enabled {
		feedCtx := logger.WithComponent(ctx, "record_feed")
		feedCfg := kafkaconsumer.FromFeed(cfg.Feed)
		var feedOpts []kafkaconsumer.Option
		if cfg.Feed.ResultsTopic != "" {
			pub, err := membership.NewPublisher(feedCfg.Brokers, cfg.Feed.ResultsTopic, cfg.Feed.ResultsQueue, appLog)
			if err != nil {
				appLog.Error("membership publisher setup failed", "topic", cfg.Feed.ResultsTopic, "err", err)
				return 1
			}
			defer func() {
				if err := pub.Close(); err != nil {
					appLog.Error("membership publisher close", "err", err)
				}
			}()
			feedOpts = append(feedOpts, kafkaconsumer.WithPublisher(pub))
		}
		c := kafkaconsumer.New(feedCfg, appLog, cls, feedOpts...)
		feedCtx, stopFeed := context.WithCancel(feedCtx)
		feedDone := make(chan struct{})
		go func() {
			defer close(feedDone)
			if err := c.Start(feedCtx); err != nil {
				appLog.ErrorContext(feedCtx, "record feed consumer stopped", "err", err)
			}
		}()
		// runs before the publisher is closed
		defer func() {
			stopFeed()
			<-feedDone
		}()
	}

	appLog.InfoContext(ctx, "starting knownlayers",
		"addr", cfg.Addr,
		"version", Version,
		"cache", cfg.ClassifyCache,
		"feed", cfg.Feed.Enabled)

	deps := server.Deps{
		Classifier: cls,
		Readiness: health.ReporterFunc(func() health.Report {
			return health.Report{
				Ready:           reg.Len() > 0,
				Layers:          reg.Len(),
				RegistryVersion: reg.Version(),
				Cache:           cfg.ClassifyCache,
			}
		}),
		Metrics: p.Handler(),
	}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openCache(ctx context.Context, cfg config.Config) (cache.Interface, func(), error) {
	switch cfg.ClassifyCache {
	case "lru":
		return lrustore.New(cfg.ClassifyLRUSize, cfg.ClassifyCacheTTL), func() {}, nil
	case "redis":
		rc, err := redisstore.New(ctx, cfg.RedisAddr,
			redisstore.WithDB(cfg.RedisDB),
			redisstore.WithPoolSize(cfg.RedisPoolSize))
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
