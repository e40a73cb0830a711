package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbank-service/dbank_service/internal/api/handlers"
	"github.com/dbank-service/dbank_service/internal/api/routes"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/internal/infrastructure/database"
	"github.com/dbank-service/dbank_service/internal/infrastructure/di"
	"github.com/dbank-service/dbank_service/pkg/logger"
	"github.com/dbank-service/dbank_service/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection", "error", err)
		}
	}()

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to build dependency container", "error", err)
	}
	defer container.Close()

	paymentHandlers := handlers.NewPaymentHandlers(container.LedgerService, log)
	cardHandlers := handlers.NewCardHandlers(container.CardService, log)
	healthHandlers := handlers.NewHealthHandlers(db, container.Redis, log)

	router := routes.SetupRouter(cfg, log, paymentHandlers, cardHandlers, healthHandlers)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited gracefully")
}
