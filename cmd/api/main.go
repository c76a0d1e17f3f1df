package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/resumeparser-backend/api/routes"
	"github.com/angelmondragon/resumeparser-backend/internal/extraction"
	"github.com/angelmondragon/resumeparser-backend/internal/resumes"
	"github.com/angelmondragon/resumeparser-backend/internal/tasks"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/db"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/metrics"
	"github.com/angelmondragon/resumeparser-backend/pkg/migrate"
	"github.com/angelmondragon/resumeparser-backend/pkg/redis"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage/backends"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeAutoRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		cache  resumes.StatusCache
		cacheP db.Pinger
	)
	if cfg.Redis.Enabled() {
		redisClient, rerr := redis.New(ctx, cfg.Redis, logg)
		if rerr != nil {
			return rerr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		cache, cacheP = redisClient, redisClient
	}

	store, err := backends.New(ctx, cfg.Storage, logg)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			err = multierr.Append(err, closer.Close())
		}()
	}

	extractor, err := extraction.New(cfg.Processing.Extractor)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	resumeMetrics := metrics.NewResumeMetrics(reg)

	dispatcher, err := tasks.New(tasks.Options{
		Workers:   cfg.Processing.Workers,
		QueueSize: cfg.Processing.QueueSize,
		Metrics:   metrics.NewTaskMetrics(reg),
	}, logg)
	if err != nil {
		return err
	}
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}

	repo := resumes.NewRepository(dbClient.DB())
	processor, err := resumes.NewProcessor(resumes.ProcessorParams{
		Logger:    logg,
		Repo:      repo,
		Store:     store,
		Extractor: extractor,
		Cache:     cache,
		CacheTTL:  cfg.Redis.StatusTTL,
		Metrics:   resumeMetrics,
		Delay:     cfg.Processing.Delay,
	})
	if err != nil {
		return err
	}

	resumeService, err := resumes.NewService(resumes.ServiceParams{
		Logger:          logg,
		Repo:            repo,
		Store:           store,
		Tasks:           dispatcher,
		Processor:       processor,
		Cache:           cache,
		CacheTTL:        cfg.Redis.StatusTTL,
		Metrics:         resumeMetrics,
		Upload:          cfg.Upload,
		EstimateSeconds: cfg.Processing.EstimateSeconds,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, cacheP, resumeService, reg),
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"storage":   cfg.Storage.Backend,
		"extractor": cfg.Processing.Extractor,
	})
	logg.Info(logCtx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down api server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.App.ShutdownTimeout)
		defer cancel()
		return multierr.Combine(
			server.Shutdown(shutdownCtx),
			dispatcher.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}
