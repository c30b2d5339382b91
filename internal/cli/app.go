package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/adapter/feed"
	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/oplog"
	"github.com/rl1809/inventory-sync/internal/core/service"
	"github.com/rl1809/inventory-sync/internal/core/store"
	"github.com/rl1809/inventory-sync/internal/logger"
	"github.com/rl1809/inventory-sync/internal/port"
)

type repository interface {
	port.ArticleRepository
	port.ChangeLogRepository
}

// App is the wired core shared by every command.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Log       *oplog.Log
	Inventory *service.InventoryService

	closers []func() error
}

func loadApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	zl, err := logger.New(cfg.Server.AppEnv, cfg.Logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	app, err := NewApp(ctx, cfg, zl)
	if err != nil {
		_ = zl.Sync()
		return nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return app, nil
}

// NewApp opens storage, the optional cache, recovers the change log and
// builds the inventory service.
func NewApp(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: zl}

	repo, err := app.openRepository(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var cache port.ArticleCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, rdb.Close)
		cache = storage.NewRedisAdapter(rdb)
		zl.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	articles, err := store.New(ctx, repo, cache, zl.Named("store"))
	if err != nil {
		app.Close()
		return nil, err
	}

	log, err := oplog.Open(ctx, repo, zl.Named("oplog"))
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Log = log
	app.Inventory = service.NewInventoryService(articles, log, zl.Named("inventory"),
		service.WithBatchPolicy(domain.BatchPolicy(cfg.Batch.Policy)))
	return app, nil
}

func (a *App) openRepository(ctx context.Context) (repository, error) {
	st := a.Config.Storage
	switch st.Backend {
	case "memory":
		a.Logger.Warn("using in-memory storage, state is lost on exit")
		return storage.NewMemoryAdapter(), nil
	case "mysql":
		adapter, err := storage.OpenMySQL(ctx, st.MySQLDSN, storage.MySQLOptions{
			MaxOpenConns:    st.MaxOpenConns,
			MaxIdleConns:    st.MaxIdleConns,
			ConnMaxLifetime: st.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, adapter.Close)
		a.Logger.Info("connected to mysql")
		return adapter, nil
	case "sqlite":
		adapter, err := storage.OpenSQLite(ctx, st.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, adapter.Close)
		a.Logger.Info("opened sqlite database", zap.String("path", st.SQLitePath))
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", st.Backend)
	}
}

// Publisher returns the change feed sink configured for the poller.
func (a *App) Publisher() port.FeedPublisher {
	if a.Config.Kafka.Enabled {
		a.Logger.Info("publishing change feed to kafka",
			zap.Strings("brokers", a.Config.Kafka.Brokers),
			zap.String("topic", a.Config.Kafka.Topic))
		return feed.NewKafkaPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic)
	}
	return feed.NewLogPublisher(a.Logger.Named("feed"))
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
