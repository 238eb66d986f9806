package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/Yab112/art-store-backend-sub001/internal/auth"
	"github.com/Yab112/art-store-backend-sub001/internal/cart"
	"github.com/Yab112/art-store-backend-sub001/internal/config"
	"github.com/Yab112/art-store-backend-sub001/internal/database/migrations"
	appkafka "github.com/Yab112/art-store-backend-sub001/internal/kafka"
	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/order"
	"github.com/Yab112/art-store-backend-sub001/internal/order/db"
	"github.com/Yab112/art-store-backend-sub001/internal/order/order_api"
	"github.com/Yab112/art-store-backend-sub001/internal/payment"
	paymentapi "github.com/Yab112/art-store-backend-sub001/internal/payment/api"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider/chapa"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/provider/paypal"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("art-store")
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", "failed to connect to Postgres: "+err.Error())
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", "migrations failed: "+err.Error())
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", "failed to connect to Redis: "+err.Error())
	}

	// --- Kafka ---
	var producer *appkafka.Producer
	if cfg.Kafka.Enabled {
		producer = appkafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}

	// --- Services ---
	store := &db.DB{Bun: bunDB}
	cartStore := cart.NewStore(redisClient)

	commissionRate := func() float64 { return cfg.Platform.CommissionRate }
	orderService := order.NewOrderService(store, commissionRate, log)

	providers := map[models.PaymentProvider]provider.Provider{
		models.ProviderChapa: chapa.New(
			cfg.Payment.ChapaBaseURL, cfg.Payment.ChapaSecretKey,
			cfg.Payment.ChapaWebhookKey, cfg.IsProduction(), log),
		models.ProviderPayPal: paypal.New(
			cfg.Payment.PayPalBaseURL, cfg.Payment.PayPalClientID,
			cfg.Payment.PayPalClientSecret, cfg.Payment.PayPalWebhookID,
			cfg.IsProduction(), log),
	}

	var events payment.EventPublisher
	if producer != nil {
		events = producer
	}
	paymentService := payment.NewPaymentService(providers, orderService, store, cartStore, events, log)

	orderHandler := order_api.NewHandler(orderService, log)
	paymentHandler := paymentapi.NewHandler(paymentService, log)
	cartHandler := cart.NewHandler(cartStore)

	// --- Router ---
	r := chi.NewRouter()
	sessions := auth.Middleware(cfg.Platform.AuthSecret)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sessions)
			r.Post("/orders/create", orderHandler.CreateOrder)
			r.Get("/orders/my", orderHandler.GetMyOrders)
			r.Get("/cart", cartHandler.GetCart)
			r.Post("/cart/items", cartHandler.AddItem)
			r.Delete("/cart/items/{artworkId}", cartHandler.RemoveItem)
		})

		r.Post("/orders/{orderId}/complete", orderHandler.CompleteOrder)
		r.Get("/orders/{orderId}", orderHandler.GetOrder)
		r.Post("/payment/initialize", paymentHandler.InitializePayment)
		r.Post("/payment/verify", paymentHandler.VerifyPayment)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "art-store API listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "HTTP server error: "+err.Error())
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", "forced shutdown: "+err.Error())
	}
	log.Info("SERVER", "server exited gracefully")
}
