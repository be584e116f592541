package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"mexiquense/facturacion/internal/cache"
	"mexiquense/facturacion/internal/config"
	"mexiquense/facturacion/internal/export"
	"mexiquense/facturacion/internal/logging"
	"mexiquense/facturacion/internal/service"
	"mexiquense/facturacion/internal/store"
	"mexiquense/facturacion/internal/store/memory"
	pgstore "mexiquense/facturacion/internal/store/postgres"
)

var errDatabaseRequired = errors.New("DATABASE_URL must be set for this command")

// runtime holds everything a command needs, plus the closers to release it.
type runtime struct {
	cfg     config.Config
	log     *logrus.Logger
	svc     *service.Service
	closers []func() error
}

func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

// open connects the repository and cache. Without DATABASE_URL it falls back
// to the seeded in-memory store unless requireDB is set.
func open(ctx context.Context, requireDB bool) (*runtime, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var repo store.Repository
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo = pg
		rt.closers = append(rt.closers, pg.Close)
		log.Debug("repository: postgres")
	case requireDB:
		return nil, errDatabaseRequired
	default:
		repo = memory.NewSeeded()
		log.Warn("repository: in-memory, data is lost on exit")
	}

	searchCache := cache.SearchCache(cache.NoopSearchCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSearchCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(connectCtx); err != nil {
			log.WithError(err).Warn("redis unavailable, search cache disabled")
			_ = redisCache.Close()
		} else {
			searchCache = redisCache
			rt.closers = append(rt.closers, redisCache.Close)
			log.Debug("cache: redis")
		}
	}

	renderer := export.NewRenderer(repo, export.Options{
		Dir: cfg.ExportDir,
		Letterhead: export.Letterhead{
			MarketName: cfg.MarketName,
			Title:      cfg.MarketTitle,
			Footer:     cfg.InvoiceFooter,
		},
		CompressPDF: cfg.ExportPDFCompress,
		Log:         log,
	})
	rt.svc = service.New(repo, renderer, searchCache, service.Options{
		SearchMinLength: cfg.SearchMinLength,
		SearchCacheTTL:  cfg.SearchCacheTTL,
		DefaultCustomer: cfg.DefaultCustomer,
		Log:             log,
	})
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.WithError(err).Warn("close failed")
		}
	}
}

func migrate(cfg config.Config, log logrus.FieldLogger) error {
	version, err := pgstore.Migrate(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	log.WithField("version", version).Info("database schema up to date")
	return nil
}
