package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"oculoo/internal/config"
	"oculoo/internal/handler"
	"oculoo/internal/httpserver"
	"oculoo/internal/repository"
	"oculoo/internal/service/intake"
	"oculoo/pkg/db"
	"oculoo/pkg/logger"
	"oculoo/pkg/mq"
	"oculoo/pkg/outbox"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting oculoo api...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbox relay：启动时先把上次失败的事件放回队列
	dispatcher := outbox.NewDispatcher(outbox.NewRepository(dbConn), publisher, log).
		WithInterval(cfg.Outbox.Interval()).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	if n, err := dispatcher.ReplayFailed(ctx); err != nil {
		log.Error("Failed to replay failed outbox events", zap.Error(err))
	} else if n > 0 {
		log.Info("Replayed failed outbox events", zap.Int("count", n))
	}
	go dispatcher.Start(ctx)

	// Init Services & Handlers
	eventRepo := repository.NewEventRepository(dbConn, log)
	intakeService := intake.NewService(dbConn, eventRepo, log)
	medicationHandler := handler.NewMedicationHandler(intakeService, log)

	// Router
	router := httpserver.NewRouter(log, dbConn)
	router.RegisterMedicationRoutes(medicationHandler, cfg.JWT.Secret)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down api gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 停止 outbox relay
	cancel()

	log.Info("api shutdown complete")
}
