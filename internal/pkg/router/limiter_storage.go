package router

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PayDemo/internal/pkg/cache"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
)

var (
	storageOnce sync.Once
	storage     fiber.Storage
)

// limiterStorage returns the shared Redis storage for rate limit counters,
// or nil (in-memory counters) when the cache is not reachable.
func limiterStorage() fiber.Storage {
	storageOnce.Do(func() {
		if env.GetEnv("RATE_LIMIT_STORAGE", "redis") != "redis" {
			return
		}
		if !cache.Available(context.Background(), 2*time.Second) {
			log.Warn("[Router] Cache unreachable, rate limits are per instance")
			return
		}

		host := "localhost"
		port := 6379
		opts := cache.GetClient().Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}

		// Separate database for limiter counters (cache and locks use DB 0)
		storage = redis.New(redis.Config{
			Host:     host,
			Port:     port,
			Username: opts.Username,
			Password: opts.Password,
			Database: env.GetInt("RATE_LIMIT_DB", 1),
			Reset:    false,
		})
	})
	return storage
}
