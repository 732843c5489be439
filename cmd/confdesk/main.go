package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/ConfDesk/app/controllers"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/audit"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/cache"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/database"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/env"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/ledger"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/payments"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/router"
)

const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

func main() {
	env.SetupEnvFile()

	app, shutdown := NewApplication()
	defer shutdown()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down ConfDesk")
		if err := app.Shutdown(); err != nil {
			log.Errorf("Shutdown failed: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Errorf("Server stopped: %v", err)
	}
}

// NewApplication wires store, audit trail and payment service into a fiber
// app. The returned func stops background workers.
func NewApplication() (*fiber.App, func()) {
	store := newLedgerStore(env.GetEnv("LEDGER_BACKEND", BackendMemory))
	trail, stopAudit := newAuditTrail()

	paymentCfg := payments.LoadConfig()
	opts := append(paymentCfg.Options(),
		payments.WithAuditor(trail),
		payments.WithErrorLogger(audit.NewErrorLogger()),
	)
	service := payments.NewService(store, opts...)

	app := fiber.New(fiber.Config{
		AppName:   "ConfDesk",
		BodyLimit: 64 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	metricsAuth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	})
	app.Get("/metrics", metricsAuth, monitor.New())

	controller := controllers.NewPaymentController(service, paymentCfg.WebhookSecret)
	if env.GetBool("METRICS_COUNTERS_ENABLED", false) {
		outcomes := counter.New(cache.GetClient())
		controller.WithCounter(outcomes)
		app.Get("/metrics/payments", metricsAuth, func(c *fiber.Ctx) error {
			snap, err := outcomes.Snapshot(c.UserContext())
			if err != nil {
				log.Errorf("[Metrics] payment counters unavailable: %v", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable"})
			}
			return c.JSON(snap)
		})
	}

	// SWAGGER / OPENAPI
	if specPath, ok := findOpenAPISpec(); ok {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	} else {
		log.Warn("OpenAPI document not found, /docs/api/v1 disabled")
	}

	// ROUTER
	router.InstallRouter(app, controller)

	return app, stopAudit
}

func newLedgerStore(backend string) ledger.Store {
	switch backend {
	case BackendDatabase:
		database.SetupDatabase()
		log.Infof("[Ledger] using %s database backend", env.GetEnv("DB_DRIVER", "mysql"))
		return ledger.NewGormStore(database.GetDB())
	case BackendRedis:
		cache.SetupCache()
		log.Info("[Ledger] using redis backend")
		return ledger.NewRedisStore(cache.GetClient())
	case BackendMemory:
		log.Warn("[Ledger] using in-memory backend, data is lost on restart")
		return ledger.NewMemoryStore()
	default:
		panic(fmt.Sprintf("unsupported LEDGER_BACKEND %q", backend))
	}
}

func newAuditTrail() (*audit.Trail, func()) {
	sinks := []audit.Sink{audit.LogSink{}}
	stop := func() {}

	if env.GetBool("AUDIT_DB_ENABLED", false) {
		if database.GetDB() == nil {
			database.SetupDatabase()
		}
		sinks = append(sinks, audit.NewGormSink(database.GetDB()))
	}

	s3Cfg, err := audit.LoadS3Config()
	if err != nil {
		log.Errorf("[Audit] archive disabled: %v", err)
		return audit.NewTrail(sinks...), stop
	}
	if s3Cfg.Enabled {
		client, err := audit.NewS3Client(context.Background(), s3Cfg)
		if err != nil {
			log.Errorf("[Audit] archive disabled: %v", err)
		} else {
			archive := audit.NewS3Sink(client, s3Cfg)
			archive.Start()
			sinks = append(sinks, archive)
			stop = archive.Stop
		}
	}
	return audit.NewTrail(sinks...), stop
}

func findOpenAPISpec() (string, bool) {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/confdesk to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		candidate := path + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
