package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-installer/internal/allocator"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-installer/internal/snapshot"
)

// redisPingTimeout bounds the startup check against the shared cache.
const redisPingTimeout = 5 * time.Second

// openReplica opens the SQLite replica without touching its schema.
func openReplica(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openDatabase opens the SQLite replica and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := openReplica(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}

// openProvider builds the configured snapshot source. The returned db is
// non-nil only for the sqlite provider and must be closed by the caller.
func openProvider(ctx context.Context, cfg *config.Config, log *logging.Logger) (allocator.Provider, *database.DB, error) {
	switch cfg.Snapshot.Provider {
	case config.ProviderFile:
		log.Info("reading snapshots from fixture", "path", cfg.Snapshot.FilePath)
		return snapshot.NewFileProvider(cfg.Snapshot.FilePath), nil, nil

	case config.ProviderSQLite:
		db, err := openDatabase(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return snapshot.NewSQLiteProvider(db.DB), db, nil

	default:
		p, err := snapshot.NewHTTPProvider(snapshot.HTTPOptions{
			BaseURL: cfg.Snapshot.BaseURL,
			Shape:   snapshot.Shape(cfg.Snapshot.Shape),
			Token:   cfg.Snapshot.Token,
			Timeout: cfg.SnapshotTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating backend provider: %w", err)
		}
		log.Info("reading snapshots from backend", "base_url", cfg.Snapshot.BaseURL, "shape", cfg.Snapshot.Shape)
		return p, nil, nil
	}
}

// openCache builds the configured snapshot cache. A nil cache fetches on
// every call. closeFn is always safe to call.
func openCache(ctx context.Context, cfg *config.Config, log *logging.Logger) (cache allocator.Cache, closeFn func() error, err error) {
	closeFn = func() error { return nil }

	switch cfg.Cache.Backend {
	case config.CacheNone:
		log.Info("snapshot cache disabled")
		return nil, closeFn, nil

	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close() //nolint:errcheck // already failing
			return nil, closeFn, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("snapshot cache in redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix, "ttl", cfg.CacheTTL())
		return allocator.NewRedisCache(rdb,
			allocator.WithRedisPrefix(cfg.Redis.Prefix),
			allocator.WithRedisTTL(cfg.CacheTTL()),
		), rdb.Close, nil

	default:
		log.Info("snapshot cache in memory", "ttl", cfg.CacheTTL())
		return allocator.NewMemoryCache(cfg.CacheTTL()), closeFn, nil
	}
}

// oneShotService builds an uncached service for the scan and locate commands.
// The returned close function releases the replica when one was opened.
func (a *app) oneShotService(ctx context.Context) (*allocator.Service, func(), error) {
	provider, db, err := openProvider(ctx, a.cfg, a.log)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if db != nil {
			db.Close() //nolint:errcheck // read-only use
		}
	}

	svc, err := allocator.NewService(allocator.Options{
		Provider:     provider,
		Logger:       a.log.Component("allocator"),
		FetchTimeout: a.cfg.SnapshotTimeout(),
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return svc, release, nil
}
