package ratelimit

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/ConfDesk/internal/pkg/cache"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/env"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"

	defaultMax        = 60
	defaultExpiration = time.Minute
)

// Config holds the limiter settings for the public API.
type Config struct {
	Storage    string
	Max        int
	Expiration time.Duration
}

// LoadConfig reads RATE_LIMIT_* settings.
func LoadConfig() Config {
	maxRequests, err := strconv.Atoi(env.GetEnv("RATE_LIMIT_MAX", strconv.Itoa(defaultMax)))
	if err != nil || maxRequests <= 0 {
		maxRequests = defaultMax
	}
	return Config{
		Storage:    env.GetEnv("RATE_LIMIT_STORAGE", StorageMemory),
		Max:        maxRequests,
		Expiration: env.GetDuration("RATE_LIMIT_WINDOW", defaultExpiration),
	}
}

// New builds the limiter. With redis storage the counters are shared by all
// instances behind the load balancer, so gateway retries cannot fan out.
func New(cfg Config) fiber.Handler {
	lc := limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}
	if cfg.Storage == StorageRedis {
		lc.Storage = newRedisStorage()
	}
	return limiter.New(lc)
}

func newRedisStorage() *redis.Storage {
	// Reuse the cache connection settings; limiter counters live in DB 2.
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		addr := client.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	log.Infof("[RateLimit] using redis storage at %s:%d", host, port)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 2,
		Reset:    false,
	})
}
