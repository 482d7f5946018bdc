package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/configs"
	"github.com/ecomstream/transaction-processor/internal/handlers"
	"github.com/ecomstream/transaction-processor/internal/services"
	"github.com/ecomstream/transaction-processor/internal/store"
	"github.com/ecomstream/transaction-processor/internal/validation"
	"github.com/ecomstream/transaction-processor/pkg"
	"github.com/ecomstream/transaction-processor/pkg/cache"
	middleware "github.com/ecomstream/transaction-processor/pkg/middlewares"
)

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	// Partition stores: one per durable record set
	var (
		acceptedStore store.PartitionStore
		rejectedStore store.PartitionStore
		limiterClient *redis.Client
		cleanup       = func() {}
	)
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory partition stores; state does not survive restarts")
		acceptedStore = store.NewMemoryStore()
		rejectedStore = store.NewMemoryStore()
	default:
		acceptedClient, closeAccepted, err := connectRedis(ctx, logger, cfg, cfg.AcceptedDB)
		if err != nil {
			return nil, nil, err
		}
		rejectedClient, closeRejected, err := connectRedis(ctx, logger, cfg, cfg.RejectedDB)
		if err != nil {
			closeAccepted()
			return nil, nil, err
		}
		acceptedStore = store.NewRedisStore(acceptedClient, logger)
		rejectedStore = store.NewRedisStore(rejectedClient, logger)
		// The limiter counter shares the accepted DB; partition clears only
		// touch transaction keys, so the counter survives them.
		limiterClient = acceptedClient
		cleanup = func() {
			closeAccepted()
			closeRejected()
		}
	}

	// Setup dependencies
	recordValidator := validation.New()
	processor := services.NewProcessorService(logger, recordValidator, acceptedStore, rejectedStore)
	limiter := pkg.NewDistributedLimiter(limiterClient, "global:upload_rate", cfg.UploadRate, uploadBurst(cfg), time.Minute, logger)

	baseHandler := handlers.NewBaseHandler(logger)
	transactionHandler := handlers.NewTransactionHandler(logger, processor, limiter)

	// Router
	r := gin.Default()
	r.Use(middleware.TraceID())
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	transactionHandler.RegisterRoutes(r)
	baseHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	return srv, cleanup, nil
}

// connectRedis dials one logical DB, retrying with exponential backoff so a
// redis that is still starting up does not fail the whole service.
func connectRedis(ctx context.Context, logger *zap.Logger, cfg *configs.Config, db int) (*redis.Client, func(), error) {
	var (
		client *redis.Client
		closer func()
	)
	operation := func() error {
		var err error
		client, closer, err = cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       db,
			UseTLS:   cfg.RedisUseTLS,
		})
		if err != nil {
			logger.Warn("redis not ready, retrying",
				zap.String("addr", cfg.RedisAddr),
				zap.Int("db", db),
				zap.Error(err),
			)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ConnectRetry)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, nil, fmt.Errorf("connect redis db %d: %w", db, err)
	}
	return client, closer, nil
}

func uploadBurst(cfg *configs.Config) int {
	if cfg.UploadBurst > 0 {
		return cfg.UploadBurst
	}
	return cfg.UploadRate
}
