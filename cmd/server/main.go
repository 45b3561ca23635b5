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

	"lifecycle-service/config"
	"lifecycle-service/internal/api"
	"lifecycle-service/internal/broker"
	"lifecycle-service/internal/mailer"
	"lifecycle-service/internal/redisclient"
	"lifecycle-service/internal/service"
	"lifecycle-service/internal/store"
	"lifecycle-service/internal/util"
	"lifecycle-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting lifecycle service")

	tp, err := util.InitTracer("lifecycle-service", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLifecycle)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	smtpMailer := mailer.NewSMTPMailer(
		cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.From)

	cartTracker := service.NewCartTracker(db, redisClient, eventPublisher, cfg.Server.BaseURL)
	postPurchase := service.NewPostPurchaseService(db, cartTracker)
	sequencer := service.NewSequencer(db, db, smtpMailer, eventPublisher, redisClient,
		service.SequencerConfig{
			BaseURL:            cfg.Server.BaseURL,
			DiscountCodeSecond: cfg.Sequencer.DiscountCodeSecond,
			DiscountPctSecond:  cfg.Sequencer.DiscountPctSecond,
			DiscountCodeThird:  cfg.Sequencer.DiscountCodeThird,
			DiscountPctThird:   cfg.Sequencer.DiscountPctThird,
		})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	cartWorker := worker.NewCartEmailWorker(sequencer, cfg.Sequencer.CartTickInterval)
	go func() {
		if err := cartWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Cart email worker error: %v", err)
		}
	}()

	nurtureWorker := worker.NewNurtureEmailWorker(sequencer, cfg.Sequencer.NurtureTickInterval)
	go func() {
		if err := nurtureWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Nurture email worker error: %v", err)
		}
	}()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	orderWorker := worker.NewOrderEventsWorker(orderConsumer, postPurchase, redisClient)
	go func() {
		if err := orderWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Order events worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(cartTracker, postPurchase, sequencer)
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
	orderWorker.Stop()

	log.Println("Server exited")
}
