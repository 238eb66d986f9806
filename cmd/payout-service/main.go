package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Yab112/art-store-backend-sub001/internal/config"
	appkafka "github.com/Yab112/art-store-backend-sub001/internal/kafka"
	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider/paypal"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/webhook"
	"github.com/Yab112/art-store-backend-sub001/internal/withdrawal"
	"github.com/Yab112/art-store-backend-sub001/internal/withdrawal/handler"
	"github.com/Yab112/art-store-backend-sub001/internal/withdrawal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("payout-service")
	defer log.Close()

	store, err := storage.NewPostgreSQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "failed to connect to Postgres: "+err.Error())
	}
	defer store.Close()

	var producer *appkafka.Producer
	if cfg.Kafka.Enabled {
		producer = appkafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}

	payoutProvider := paypal.New(
		cfg.Payment.PayPalBaseURL, cfg.Payment.PayPalClientID,
		cfg.Payment.PayPalClientSecret, cfg.Payment.PayPalWebhookID,
		cfg.IsProduction(), log)

	var events webhook.EventPublisher
	if producer != nil {
		events = producer
	}
	processor := webhook.NewProcessor(payoutProvider, store, events, log)
	service := withdrawal.NewService(store, payoutProvider, "USD", log)
	payoutHandler := handler.NewPayoutHandler(processor, service, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := store.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/payment/paypal/webhook", payoutHandler.PayPalWebhook)

	admin := router.Group("/admin")
	{
		admin.POST("/withdrawals/:id/dispatch", payoutHandler.DispatchWithdrawal)
		admin.GET("/withdrawals/:id", payoutHandler.GetWithdrawal)
		admin.GET("/withdrawals", payoutHandler.ListWithdrawals)
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "payout service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "HTTP server error: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("SERVER", "forced shutdown: "+err.Error())
	}
	log.Info("SERVER", "server exited gracefully")
}
