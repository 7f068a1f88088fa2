package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/repository/memory"
	"github.com/secmon-lab/standup/pkg/repository/rediscache"
	"github.com/secmon-lab/standup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Cache holds CLI flags for the first page cache backend
type Cache struct {
	backend   string
	addr      string
	password  string
	db        int
	ttl       time.Duration
	keyPrefix string
}

func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cache-backend",
			Usage:       "Page cache backend (memory or redis)",
			Category:    "Cache",
			Value:       "memory",
			Sources:     cli.EnvVars("STANDUP_CACHE_BACKEND"),
			Destination: &c.backend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port)",
			Category:    "Cache",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("STANDUP_REDIS_ADDR"),
			Destination: &c.addr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Cache",
			Sources:     cli.EnvVars("STANDUP_REDIS_PASSWORD"),
			Destination: &c.password,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Cache",
			Sources:     cli.EnvVars("STANDUP_REDIS_DB"),
			Destination: &c.db,
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "Expiry of cached pages in redis. 0 keeps them until cleared",
			Category:    "Cache",
			Value:       time.Hour,
			Sources:     cli.EnvVars("STANDUP_CACHE_TTL"),
			Destination: &c.ttl,
		},
		&cli.StringFlag{
			Name:        "cache-key-prefix",
			Usage:       "Prefix of redis keys",
			Category:    "Cache",
			Value:       rediscache.DefaultKeyPrefix,
			Sources:     cli.EnvVars("STANDUP_CACHE_KEY_PREFIX"),
			Destination: &c.keyPrefix,
		},
	}
}

func (c Cache) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", c.backend),
		slog.String("addr", c.addr),
		slog.Int("db", c.db),
		slog.Duration("ttl", c.ttl),
	)
}

// Configure returns the page cache and a function that releases it
func (c *Cache) Configure(ctx context.Context) (interfaces.PageCache, func(), error) {
	switch c.backend {
	case "memory", "":
		return memory.NewPageCache(), func() {}, nil

	case "redis":
		if c.addr == "" {
			return nil, nil, goerr.Wrap(ErrMissingOption, "redis-addr is required when using redis cache", goerr.V(FlagKey, "redis-addr"))
		}
		cache, err := rediscache.New(ctx, &redis.Options{
			Addr:     c.addr,
			Password: c.password,
			DB:       c.db,
		}, rediscache.WithTTL(c.ttl), rediscache.WithKeyPrefix(c.keyPrefix))
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize redis cache", goerr.V("addr", c.addr))
		}
		logging.Default().Info("Using redis page cache", "addr", c.addr, "db", c.db)

		closer := func() {
			if err := cache.Close(); err != nil {
				logging.Default().Error("failed to close redis cache", "error", err.Error())
			}
		}
		return cache, closer, nil

	default:
		return nil, nil, goerr.Wrap(ErrUnknownBackend, "invalid cache backend", goerr.V(BackendKey, c.backend))
	}
}
