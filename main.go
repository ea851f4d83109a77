package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/handlers"
	"ticket-checkout/internal/kafka"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/middleware"
	rediswrap "ticket-checkout/internal/redis"
	"ticket-checkout/internal/services"
	"ticket-checkout/internal/storage"
)

// Global logger instance
var log *logger.Logger

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func main() {
	log = logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Ticket checkout starting up...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", "Invalid configuration: "+err.Error())
	}
	log.Info("CONFIG", "Configuration loaded successfully")

	store, closeStore := openStore(cfg)
	defer closeStore()

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer kafkaProducer.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	pending := rediswrap.NewRedis(redisClient, cfg.Redis.PendingTTL)
	var marker services.ReconcileMarker
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := pending.Ping(pingCtx); err != nil {
		log.Warn("REDIS", "Redis unavailable, reconcile retries will not be deduplicated: "+err.Error())
	} else {
		marker = pending
		log.LogProcess("REDIS", "Redis connection successful")
	}
	cancelPing()

	stripeService, err := services.NewStripeService(cfg.Stripe, log)
	if err != nil {
		log.Fatal("STRIPE", "Failed to initialize Stripe service: "+err.Error())
	}
	log.LogProcess("SERVICE", "Stripe service initialized")

	checkoutService := services.NewCheckoutService(store, stripeService, kafkaProducer, marker, log, cfg.Checkout, cfg.Stripe.ReturnURL)
	basketService := services.NewBasketService(store, checkoutService, kafkaProducer, log)
	voucherService := services.NewVoucherService(store, checkoutService, kafkaProducer, log)
	orderService := services.NewOrderService(store, stripeService, kafkaProducer, log, cfg.Checkout)
	inventoryService := services.NewInventoryService(store, log, cfg.Checkout)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := inventoryService.EnsureSentinels(startupCtx); err != nil {
		log.Fatal("DATABASE", "Failed to write sentinel catalog: "+err.Error())
	}
	cancelStartup()
	log.LogProcess("SERVICE", "All services initialized")

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if !cfg.Kafka.MockMode {
		kafkaConsumer, err := kafka.NewConsumer(cfg.Kafka, log)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
		}
		defer kafkaConsumer.Close()

		go func() {
			log.LogKafka("START", cfg.Kafka.ReconcileTopic, "Starting reconcile consumer goroutine")
			if err := kafkaConsumer.ConsumeReconcileRequests(consumerCtx, checkoutService.HandleReconcileRequest); err != nil {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	}

	router := setupRouter(cfg, store, marker,
		handlers.NewInventoryHandler(inventoryService),
		handlers.NewOrderHandler(basketService, orderService),
		handlers.NewVoucherHandler(voucherService),
		handlers.NewCheckoutHandler(checkoutService),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "Health check available at: http://localhost"+cfg.Server.Port+"/health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("SHUTDOWN", "Server forced to shutdown: "+err.Error())
		return
	}

	log.Info("SHUTDOWN", "Ticket checkout shutdown completed successfully")
}

func openStore(cfg *config.Config) (storage.Store, func()) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("DATABASE", "Using in-memory storage, data is lost on restart")
		return storage.NewInMemoryStore(), func() {}
	}

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	return store, func() { store.Close() }
}

func setupRouter(cfg *config.Config, store storage.Store, marker services.ReconcileMarker,
	inventory *handlers.InventoryHandler, orders *handlers.OrderHandler,
	vouchers *handlers.VoucherHandler, checkout *handlers.CheckoutHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(log))
	router.Use(middleware.RateLimit(cfg.Server, log))

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		components := gin.H{"storage": "ok", "redis": "disabled"}
		if checker, ok := store.(healthChecker); ok {
			if err := checker.HealthCheck(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				components["storage"] = err.Error()
			}
		}
		if pinger, ok := marker.(*rediswrap.Redis); ok {
			components["redis"] = "ok"
			if err := pinger.Ping(c.Request.Context()); err != nil {
				components["redis"] = err.Error()
			}
		}

		c.JSON(status, gin.H{
			"status":     http.StatusText(status),
			"timestamp":  time.Now().UTC(),
			"service":    "ticket-checkout",
			"components": components,
		})
	})

	handlers.RegisterRoutes(router.Group("/api/v1"), inventory, orders, vouchers, checkout)

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
