package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usersapi/internal/config"
	"usersapi/internal/logger"
	"usersapi/internal/repositories"
	"usersapi/internal/server"
	"usersapi/internal/services"
	"usersapi/pkg/rabbitmq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLog := logger.New(cfg.Env, cfg.LogLevel)

	// --- Initialize Repository ---
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err == nil {
		err = repo.EnsureSchema(ctx)
	}
	cancel()
	if err != nil {
		appLog.Error("failed to initialize storage", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			appLog.Error("failed to close storage", "error", err)
		}
	}()
	appLog.Info("storage ready", "driver", cfg.DBDriver)

	// --- Initialize RabbitMQ Client (optional) ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, appLog)
		if err != nil {
			appLog.Warn("events disabled: RabbitMQ unavailable", "error", err)
		} else {
			defer mqClient.Close()
			events = mqClient
			if err := mqClient.Consume(rabbitmq.LogEvents(appLog)); err != nil {
				appLog.Warn("failed to start event consumer", "error", err)
			}
		}
	}

	// --- Initialize Service and App ---
	userService := services.NewUserService(repo, cfg.BcryptSaltRounds, events, appLog)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := server.New(server.Options{
		Service:       userService,
		Logger:        appLog,
		Registry:      registry,
		AccessLog:     os.Stdout,
		CORSOrigins:   cfg.CORSOrigins,
		DBDriver:      cfg.DBDriver,
		EventsEnabled: events != nil,
	})

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		appLog.Info("starting server", "addr", cfg.Port, "env", cfg.Env)
		if err := app.Listen(cfg.Port); err != nil {
			appLog.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	appLog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLog.Error("error during shutdown", "error", err)
	}
	appLog.Info("server gracefully stopped")
}

// openRepository connects the backend selected by DB_DRIVER. The returned
// func releases its connections.
func openRepository(ctx context.Context, cfg *config.Config) (repositories.UserRepository, func() error, error) {
	switch cfg.DBDriver {
	case "mongo":
		client, err := repositories.ConnectMongo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }
		return repositories.NewMongoUserRepository(client.Database(cfg.DatabaseName)), closeFn, nil
	case "postgres", "sqlite":
		db, err := repositories.OpenGORM(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		return repositories.NewGORMUserRepository(db), sqlDB.Close, nil
	case "memory":
		return repositories.NewMemoryUserRepository(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
