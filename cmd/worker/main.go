package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "oculoo/contracts/mq"
	"oculoo/internal/config"
	"oculoo/internal/httpserver"
	"oculoo/internal/mqhandler"
	"oculoo/internal/push"
	"oculoo/internal/repository"
	"oculoo/internal/service/dispatch"
	"oculoo/pkg/circuitbreaker"
	"oculoo/pkg/db"
	"oculoo/pkg/logger"
	"oculoo/pkg/mq"
	redisclient "oculoo/pkg/redis"
	"oculoo/pkg/util"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting oculoo worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	// Init Redis
	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	// Push transport
	var transport push.Transport
	if cfg.FCM.Enabled {
		fcm, err := push.NewFCMTransport(ctx, cfg.FCM, log)
		if err != nil {
			log.Fatal("FCM initialization failed", zap.Error(err))
		}
		transport = fcm
	} else {
		log.Warn("FCM disabled, push messages will only be logged")
		transport = push.NewLogTransport(log)
	}
	transport = push.NewBreakerTransport(transport, circuitbreaker.DefaultConfig(), log)

	// Init Repositories
	eventRepo := repository.NewEventRepository(dbConn, log)
	userRepo := repository.NewUserRepository(dbConn)
	guardianRepo := repository.NewGuardianRepository(dbConn)
	linkageRepo := repository.NewLinkageRepository(dbConn)
	notificationRepo := repository.NewGuardianNotificationRepository(dbConn, log)

	// Dispatch pipeline
	resolver := dispatch.NewGuardianResolver(linkageRepo, userRepo, log)
	tokens := dispatch.NewTokenResolver(log, userRepo, guardianRepo)
	worker := dispatch.NewDeliveryWorker(notificationRepo, tokens, transport, log)
	coordinator := dispatch.NewCoordinator(eventRepo, resolver, worker, log)

	guard := util.NewInFlightGuard(rdb, cfg.Dispatch.InFlightTTL(), log)
	medicationHandler := mqhandler.NewMedicationTakenHandler(eventRepo, coordinator, guard, log)

	// MQ Consumer for medication.taken
	log.Info("Initializing MQ consumer for medication.taken...",
		zap.String("queue", mqcontracts.QueueMedicationTakenNotify),
		zap.String("routing_key", mqcontracts.RoutingKeyMedicationTaken),
	)
	consumer, err := mq.NewConsumer(
		cfg.MQ.URL,
		mqcontracts.QueueMedicationTakenNotify,
		mqcontracts.RoutingKeyMedicationTaken,
		cfg.Dispatch.Prefetch,
		log,
	)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	consumer.SetHandler(medicationHandler.Handle)

	go func() {
		log.Info("Starting medication.taken consumer...")
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Fatal("Medication consumer failed", zap.Error(err))
		}
	}()

	// Retention sweeper
	sweeper := dispatch.NewSweeper(eventRepo, cfg.Retention.MaxAge(), cfg.Retention.Interval(), log)
	go sweeper.Start(ctx)

	// HTTP Server (for health checks and metrics)
	router := httpserver.NewRouter(log, dbConn)
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

	log.Info("worker is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker gracefully...")

	// Stop MQ consumer
	consumer.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("worker shutdown complete")
}
