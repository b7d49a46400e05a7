package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"bizconnect/internal/adapter/api"
	"bizconnect/internal/adapter/api/handler"
	apimiddleware "bizconnect/internal/adapter/api/middleware"
	"bizconnect/internal/adapter/api/router"
	"bizconnect/internal/adapter/repository"
	domainrepo "bizconnect/internal/domain/repository"
	"bizconnect/internal/domain/service"
	"bizconnect/internal/infrastructure/database"
	"bizconnect/internal/infrastructure/events"
	"bizconnect/internal/infrastructure/firebase"
	"bizconnect/internal/infrastructure/jwtauth"
	"bizconnect/internal/infrastructure/metrics"
	"bizconnect/internal/infrastructure/ratelimit"
	"bizconnect/internal/infrastructure/storage"
	"bizconnect/internal/usecase"
	"bizconnect/pkg/config"
	"bizconnect/pkg/logger"
)

const jwtIssuer = "bizconnect"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	credentials := firebase.ClientOption(cfg.FirebaseCredentials, cfg.FirebaseServiceAccount)

	store, businessRepo, closeStore := openStore(ctx, cfg, credentials)
	defer closeStore()

	verifier := newVerifier(ctx, cfg, credentials)

	messageLimiter, httpLimiter, closeLimiter := newLimiters(ctx, cfg)
	defer closeLimiter()

	var publisher interface {
		usecase.EventPublisher
		Close() error
	} = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		logger.Info("Publishing message events to Kafka topic %s", cfg.KafkaMessageTopic)
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaMessageTopic)
	}
	defer publisher.Close()

	objectStorage := newObjectStorage(ctx, cfg)
	defer objectStorage.Close()

	m := metrics.New()

	conversationUseCase := usecase.NewConversationUseCase(store, businessRepo, messageLimiter, publisher, m)
	attachmentUseCase := usecase.NewAttachmentUseCase(objectStorage, cfg.MaxAttachmentBytes)

	handler.Setup(conversationUseCase, attachmentUseCase, cfg.StoreDriver)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.L().Infow("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.ContextTimeout(cfg.StoreTimeout))
	e.Use(apimiddleware.Metrics(m))
	e.Use(apimiddleware.RateLimit(httpLimiter))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)

	router.Setup(e, authMiddleware, m)
	router.SetupDevRouter(e, cfg.Environment)

	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown Error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, credentials []option.ClientOption) (domainrepo.ConversationStore, domainrepo.BusinessRepository, func()) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("Using in-memory conversation store, data is lost on restart")
		return repository.NewMemoryConversationStore(), nil, func() {}

	case "postgres":
		db, err := database.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open Postgres: %v", err)
		}
		if err := repository.MigrateGorm(db); err != nil {
			log.Fatalf("Failed to migrate Postgres schema: %v", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return repository.NewGormConversationStore(db), repository.NewGormBusinessRepository(db), closeDB

	case "firestore":
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, credentials...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		closeClient := func() { firestoreClient.Close() }
		return repository.NewFirestoreConversationStore(firestoreClient), repository.NewFirestoreBusinessRepository(firestoreClient), closeClient
	}

	log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	return nil, nil, nil
}

func newVerifier(ctx context.Context, cfg *config.Config, credentials []option.ClientOption) apimiddleware.TokenVerifier {
	if cfg.AuthMode == "jwt" {
		verifier := jwtauth.NewVerifier(cfg.JWTSecret, jwtIssuer)
		handler.SetupDevTokenHandler(verifier)
		return verifier
	}

	firebaseApp, err := firebase.NewApp(ctx, cfg.FirebaseProject, credentials...)
	if err != nil {
		log.Fatalf("%v", err)
	}
	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}
	return firebase.NewFirebaseAuthClient(authClient)
}

// newLimiters returns the per-user message limiter and the per-IP request limiter.
func newLimiters(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, ratelimit.Limiter, func()) {
	if cfg.RateLimitDriver == "redis" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		messages := ratelimit.NewRedisRateLimiter(client, "ratelimit:messages", cfg.RateLimitMessages, cfg.RateLimitWindow)
		requests := ratelimit.NewRedisRateLimiter(client, "ratelimit:http", cfg.HTTPRateLimitPerMinute, time.Minute)
		return messages, requests, func() { client.Close() }
	}

	messages := ratelimit.NewRateLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow)
	requests := ratelimit.NewRateLimiter(cfg.HTTPRateLimitPerMinute, time.Minute)
	messages.StartCleanupRoutine(ctx, 5*time.Minute)
	requests.StartCleanupRoutine(ctx, 5*time.Minute)
	return messages, requests, func() {}
}

func newObjectStorage(ctx context.Context, cfg *config.Config) service.ObjectStorage {
	if cfg.StorageBucket == "" {
		logger.Warn("STORAGE_BUCKET not set, attachments are kept in memory")
		return storage.NewMemoryStorage("local")
	}

	client, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.FirebaseServiceAccount, cfg.FirebaseCredentials)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	logger.Info("Uploading attachments to bucket %s (max %d bytes)", cfg.StorageBucket, cfg.MaxAttachmentBytes)
	return client
}
