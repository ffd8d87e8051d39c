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
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/MarekWeber/RevRescue/app/repository"
	"github.com/MarekWeber/RevRescue/internal/pkg/cache"
	"github.com/MarekWeber/RevRescue/internal/pkg/database"
	"github.com/MarekWeber/RevRescue/internal/pkg/env"
	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/MarekWeber/RevRescue/internal/pkg/ratelimit"
	"github.com/MarekWeber/RevRescue/internal/pkg/recovery"
	"github.com/MarekWeber/RevRescue/internal/pkg/risk"
	"github.com/MarekWeber/RevRescue/internal/pkg/router"
	"github.com/MarekWeber/RevRescue/internal/pkg/s3export"
	"github.com/MarekWeber/RevRescue/internal/pkg/sweeper"
)

func main() {
	app := NewApplication()

	startSweeper()

	// shut the workers down cleanly on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		sweeper.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Repositories back the session controllers and the API key middleware.
	repository.InitializeFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/revrescue to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views: html.New(basePath+"views", ".html"),
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}

// startSweeper wires the background workers against the shared services. The
// ledger export only runs when a bucket is configured.
func startSweeper() {
	db := database.GetDB()

	var exporter sweeper.Exporter
	cfg, err := s3export.LoadConfig()
	if err != nil {
		log.Printf("ledger export disabled: %v", err)
	} else if cfg.IsEnabled() {
		exp, err := s3export.NewExporter(cfg, ledger.NewRepository(db))
		if err != nil {
			log.Printf("ledger export disabled: %v", err)
		} else {
			exporter = exp
		}
	}

	manager := sweeper.GetManager()
	manager.Configure(
		recovery.NewServiceFromDB(db),
		risk.NewServiceFromDB(db),
		ratelimit.RecomputeLimiter(),
		exporter,
	)
	manager.Start()
}
