package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"verbs-tickets/internal/admin/admin_api"
	"verbs-tickets/internal/auth"
	"verbs-tickets/internal/blob"
	"verbs-tickets/internal/checkout"
	"verbs-tickets/internal/checkout/checkout_api"
	"verbs-tickets/internal/config"
	"verbs-tickets/internal/database/migrations"
	"verbs-tickets/internal/kafka"
	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/newsletter"
	"verbs-tickets/internal/newsletter/newsletter_api"
	"verbs-tickets/internal/notify"
	"verbs-tickets/internal/payments"
	"verbs-tickets/internal/ratelimit"
	"verbs-tickets/internal/store"
	"verbs-tickets/internal/upload/upload_api"
	"verbs-tickets/internal/webhook"
	"verbs-tickets/internal/webhook/webhook_api"
)

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	if cfg.Database.DSN == "" {
		log.Fatal("DATABASE", "POSTGRES_DSN not set")
	}

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	// The database container may still be starting; retry before giving up.
	var pingErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if pingErr = sqldb.Ping(); pingErr == nil {
			break
		}
		log.Warn("DATABASE", fmt.Sprintf("Ping attempt %d failed: %v", attempt, pingErr))
		time.Sleep(2 * time.Second)
	}
	if pingErr != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", pingErr))
	}

	log.Info("DATABASE", "Postgres connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	_ = godotenv.Load()

	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, cfg.Database.MigrationsDir, log)
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	db := store.New(bunDB)

	payments.Init(cfg.Stripe.SecretKey)
	stripeClient := payments.NewClient(log)

	// Rate limiting counts in Redis when available so the budget holds
	// across instances; otherwise in process.
	var counterStore ratelimit.CounterStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unavailable, using in-memory rate limiting: %v", err))
			counterStore = ratelimit.NewMemoryStore()
		} else {
			log.Info("REDIS", "Redis connection successful")
			counterStore = ratelimit.NewRedisStore(redisClient)
		}
	} else {
		counterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(counterStore, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)

	checkoutService := checkout.NewService(db, stripeClient, cfg.PublicSiteURL, log)
	checkoutHandler := checkout_api.NewHandler(checkoutService, log)

	reconciler := webhook.NewReconciler(db, stripeClient.VerifyWebhookSignature, cfg.Stripe.WebhookSecret, log)

	var audienceSync *notify.AudienceSync
	if cfg.Resend.APIKey != "" {
		mailer := notify.NewMailer(cfg.Resend.APIKey, cfg.Resend.FromOrders, log)
		reconciler.OnOrderCompleted(&webhook.ConfirmationEmailEffect{Mailer: mailer})
		reconciler.OnOrderRefunded(&webhook.RefundEmailEffect{Mailer: mailer})

		if cfg.Resend.AudienceID != "" {
			audienceSync = notify.NewAudienceSync(cfg.Resend.APIKey, cfg.Resend.AudienceID, log)
			reconciler.OnOrderCompleted(&webhook.AudienceSyncEffect{Syncer: audienceSync})
		}
	} else {
		log.Warn("MAILER", "RESEND_API_KEY not set, order email disabled")
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderCompleted, cfg.Kafka.Topics.OrderRefunded, log)
		defer producer.Close()
		reconciler.OnOrderCompleted(&webhook.PublishCompletedEffect{Publisher: producer})
		reconciler.OnOrderRefunded(&webhook.PublishRefundedEffect{Publisher: producer})
		log.Info("KAFKA", fmt.Sprintf("Order events enabled on %v", cfg.Kafka.Brokers))
	}

	webhookHandler := webhook_api.NewHandler(reconciler, log)

	var syncer newsletter.AudienceSyncer
	if audienceSync != nil {
		syncer = audienceSync
	}
	newsletterService := newsletter.NewService(db, syncer, log)
	newsletterHandler := newsletter_api.NewHandler(newsletterService, limiter, log)

	authMiddleware := auth.NewMiddleware(cfg.Auth, nil, log)

	blobClient := blob.NewClient(cfg.Blob.BaseURL, cfg.Blob.ReadWriteToken, nil, log)
	uploadHandler := upload_api.NewHandler(blobClient, log)

	adminHandler := admin_api.NewHandler(db, stripeClient, log)

	r := chi.NewRouter()

	r.Post("/api/checkout", checkoutHandler.Checkout)
	r.Post("/api/door-checkout", checkoutHandler.DoorCheckout)
	r.Post("/api/stripe-webhook", webhookHandler.HandleWebhook)
	r.Post("/api/newsletter/subscribe", newsletterHandler.Subscribe)
	r.Post("/admin/logout", authMiddleware.Logout)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAdmin)
		r.Post("/api/upload", uploadHandler.Upload)
		r.Post("/api/admin/event-djs", adminHandler.AddEventDJ)
		r.Post("/api/admin/ticket-tiers", adminHandler.CreateTicketTier)
		r.Put("/api/admin/ticket-tiers/{tierID}/price", adminHandler.UpdateTierPrice)
		r.Put("/api/admin/ticket-tiers/{tierID}/name", adminHandler.RenameTier)
		r.Post("/api/admin/orders/{orderID}/refund", adminHandler.RefundOrder)
		r.Post("/api/admin/events/{eventID}/archive", adminHandler.ArchiveEvent)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Ticketing service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("SERVER", "Shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("Forced shutdown: %v", err))
	}
	log.Info("SERVER", "Shutdown complete")
}
