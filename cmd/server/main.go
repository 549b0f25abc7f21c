// Package main is the entry point for the API server.
// It loads configuration, builds the services and serves the claim and
// refund API until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"disputehub/internal/app"
	"disputehub/internal/config"
	"disputehub/internal/handlers"
	"disputehub/internal/logger"
	"disputehub/internal/middleware"
	"disputehub/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.App.LogLevel, cfg.App.Name)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize", zap.Error(err))
	}
	defer deps.Close()

	checks := map[string]handlers.Check{"postgres": deps.Ping}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	server := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	})

	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: cfg.App.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Filing is the only write a buyer can repeat cheaply.
	server.Use("/api/claims", limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodPost || strings.TrimRight(c.Path(), "/") != "/api/claims"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(server, routes.Handlers{
		Auth:   middleware.NewAuthMiddleware(cfg.JWT.Secret, zlog.Named("auth")),
		Health: handlers.NewHealthHandler(version, checks),
		Claims: handlers.NewClaimHandler(deps.Claims),
		Refund: handlers.NewRefundHandler(deps.Refunds),
	})

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			zlog.Error("shutdown failed", zap.Error(err))
		}
	}()

	zlog.Info("server starting", zap.String("port", cfg.App.Port), zap.String("version", version))
	if err := server.Listen(":" + cfg.App.Port); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
}
