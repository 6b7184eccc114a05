/**
 * @description
 * This is the main entry point for the booking-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the payment gateway client, Redis, the message broker, the stale
 * payment reaper, and the HTTP server. It wires everything together and starts
 * the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/stripeclient: Client for the payment gateway API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/inspecto/booking-service/internal/api"
	"github.com/inspecto/booking-service/internal/app"
	"github.com/inspecto/booking-service/internal/config"
	"github.com/inspecto/booking-service/internal/store"
	inrabbit "github.com/inspecto/booking-service/pkg/rabbitmq"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.GatewayWebhookSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"webhook secret must be configured\" env=GATEWAY_WEBHOOK_SECRET")
	}
	platformOwnerID, err := uuid.Parse(strings.TrimSpace(cfg.PlatformOwnerID))
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"platform owner id must be a uuid\" env=PLATFORM_OWNER_ID err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting booking-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for notification events. The service
	// degrades to a no-op publisher when the broker is unavailable.
	var producer inrabbit.Publisher
	rabbitProducer, err := inrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &inrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the payment gateway client.
	gatewayClient := stripeclient.NewClient(cfg.GatewayAPIBaseURL, cfg.GatewayAPIKey)

	// Redis backs the webhook dedupe guard and the booking rate limiter. Both
	// degrade gracefully when Redis is missing.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; dedupe and rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; dedupe and rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; dedupe and rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	var eventGuard app.EventGuard
	var rateLimiter *app.RedisBookingRateLimiter
	if redisClient != nil {
		eventGuard = app.NewRedisEventGuard(redisClient, "inspecto:webhook_event", time.Duration(cfg.WebhookDedupeTTLMinutes)*time.Minute)
		rateLimiter = app.NewRedisBookingRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	bookingService := app.NewService(app.ServiceParams{
		Repo:              repository,
		Gateway:           gatewayClient,
		EventProducer:     producer,
		EventGuard:        eventGuard,
		RateLimiter:       rateLimiter,
		Currency:          cfg.Currency,
		PlatformFeePaise:  cfg.PlatformFeePaise,
		PlatformOwnerID:   platformOwnerID,
		MinWithdrawal:     cfg.MinWithdrawalPaise,
		BookingRateLimit:  cfg.BookingRateLimitPerMinute,
		BookingRateWindow: time.Minute,
	})

	// Start the stale-payment reaper.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	reaper := app.NewReaper(
		bookingService,
		time.Duration(cfg.ReaperIntervalMinutes)*time.Minute,
		time.Duration(cfg.StalePaymentTimeoutMin)*time.Minute,
	)
	go reaper.Run(reaperCtx)

	// Initialize the API handlers and router.
	bookingHandlers := api.NewBookingHandlers(bookingService)
	router := api.BookingRoutes(bookingHandlers, cfg.AuthJWKSURL, cfg.GatewayWebhookSecret)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	stopReaper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
