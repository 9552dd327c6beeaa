// Package store selects and opens the configured storage backend.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/chatrelay/internal/adapters/store/memory"
	"github.com/dkeye/chatrelay/internal/adapters/store/postgres"
	"github.com/dkeye/chatrelay/internal/adapters/store/redis"
	"github.com/dkeye/chatrelay/internal/adapters/store/sqlite"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/core"
)

func Open(ctx context.Context, cfg config.StoreConfig) (core.Store, error) {
	var (
		st  core.Store
		err error
	)
	switch cfg.Driver {
	case "memory":
		st = memory.New()
	case "sqlite":
		st, err = sqlite.Open(ctx, cfg.DSN)
	case "postgres":
		st, err = postgres.Open(ctx, cfg.DSN)
	case "redis":
		st, err = redis.Open(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			MaxLen:   cfg.StreamMaxLen,
		})
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "adapters.store").Str("driver", cfg.Driver).Msg("store opened")
	return st, nil
}
