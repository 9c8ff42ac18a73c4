package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopper-service/config"
	"shopper-service/internal/api"
	"shopper-service/internal/broker"
	"shopper-service/internal/dispatcher"
	"shopper-service/internal/redisclient"
	"shopper-service/internal/service"
	"shopper-service/internal/store"
	"shopper-service/internal/util"
	"shopper-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shopper service")

	tp, err := util.InitTracer("shopper-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.InitSchema(initCtx); err != nil {
		initCancel()
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	initCancel()

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	gateway := service.NewSimulatedGateway(cfg.Gateway.SuccessRate, cfg.Gateway.Delay)

	catalogService := service.NewCatalogService(db)
	cartService := service.NewCartService(db)
	walletService := service.NewWalletService(db, eventPublisher)
	checkoutService := service.NewCheckoutService(db, redisClient, gateway, cfg.Gateway.Timeout, eventPublisher)
	orderService := service.NewOrderService(db, eventPublisher)

	commandDispatcher := dispatcher.NewDispatcher(
		catalogService,
		cartService,
		checkoutService,
		orderService,
		db,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	eventConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notifier := worker.NewNotificationWorker(eventConsumer, redisClient)
	go func() {
		if err := notifier.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		catalogService,
		cartService,
		walletService,
		checkoutService,
		orderService,
		commandDispatcher,
		redisClient,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notifier.Stop()

	log.Println("Server exited")
}
