package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/config"
	"github.com/carepoint/portal/internal/platform/db"
	"github.com/carepoint/portal/internal/platform/storage"
)

// backend is the opened storage driver.
type backend struct {
	kv     storage.KV
	health db.StorageHealth
	pool   *pgxpool.Pool
	close  func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	b := &backend{close: func() {}}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		b.kv = storage.NewMemory()
		logger.Warn().Msg("using in-memory storage, data is lost on restart")

	case config.StorageSQLite:
		s, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.kv = s
		b.health.Pinger = s
		b.close = func() { s.Close() }
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite storage")

	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		b.kv = storage.NewPostgres(pool)
		b.pool = pool
		b.health.Pinger = pool
		b.health.Pool = pool
		b.close = pool.Close
		logger.Info().Msg("connected to database")

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	b.health.Driver = cfg.StorageDriver
	if cfg.StorageEncryptionKey != "" {
		key, err := storage.ParseKey(cfg.StorageEncryptionKey)
		if err != nil {
			b.close()
			return nil, err
		}
		sealed, err := storage.NewSealed(b.kv, key)
		if err != nil {
			b.close()
			return nil, err
		}
		b.kv = sealed
		logger.Info().Msg("stored values are encrypted")
	}
	b.kv = storage.WithPrefix(b.kv, cfg.StoragePrefix)
	return b, nil
}
