package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/PayDemo/internal/pkg/cache"
	"github.com/ManuelReschke/PayDemo/internal/pkg/database"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
	"github.com/ManuelReschke/PayDemo/internal/pkg/metrics"
	"github.com/ManuelReschke/PayDemo/internal/pkg/payments"
	"github.com/ManuelReschke/PayDemo/internal/pkg/router"
)

func main() {
	app, services := NewApplication()
	services.Sweeper.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down...")
		services.Sweeper.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *payments.Services) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	metrics.Register()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/paydemo to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// webhook bodies are small, anything bigger is not from the provider
	app := fiber.New(fiber.Config{
		BodyLimit:   1 << 20,
		ReadTimeout: 30 * time.Second,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// prometheus metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), adaptor.HTTPHandler(promhttp.Handler()))

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	services := payments.NewFromEnv(database.GetDB(), cache.GetClient())
	router.InstallRouter(app, services)

	return app, services
}
