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

	"intake-service/config"
	"intake-service/internal/api"
	"intake-service/internal/broker"
	"intake-service/internal/catalog"
	"intake-service/internal/parser"
	"intake-service/internal/redisclient"
	"intake-service/internal/service"
	"intake-service/internal/store"
	"intake-service/internal/util"
	"intake-service/internal/vendor"
	"intake-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting intake service")

	tp, err := util.InitTracer("intake-service", cfg.Observ.JaegerEndpoint)
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

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicIntake)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	registry, err := vendor.LoadRegistry(cfg.Pipeline.VendorRegistryPath)
	if err != nil {
		log.Fatalf("Failed to load vendor registry: %v", err)
	}
	log.Printf("Vendor registry loaded: %d vendors", len(registry.Vendors()))

	detector := vendor.NewDetector(registry)
	parsers := parser.NewRegistry()

	catalogClient := catalog.NewClient(time.Duration(cfg.Pipeline.CatalogTimeoutSeconds) * time.Second)
	enricher := catalog.NewEnricher(redisClient, db, catalogClient,
		cfg.Pipeline.EnrichConcurrency,
		time.Duration(cfg.Pipeline.EnrichTimeoutSeconds)*time.Second)

	assembler := service.NewAssembler(db)
	pipeline := service.NewPipelineService(db, redisClient, registry, detector, parsers, enricher, assembler, eventPublisher, cfg.Pipeline)
	inventory := service.NewInventoryService(db, redisClient, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	intakeConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicIntake, cfg.Kafka.ConsumerGroup)
	intakeWorker := worker.NewIntakeWorker(intakeConsumer, db, pipeline)
	go func() {
		if err := intakeWorker.Start(workerCtx); err != nil {
			log.Printf("Intake worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(pipeline, inventory, db)
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
	intakeWorker.Stop()

	log.Println("Server exited")
}
