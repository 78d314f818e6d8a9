package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KolBohdan/train-station-api-service/internal/adapters/crdb"
	mongoadapter "github.com/KolBohdan/train-station-api-service/internal/adapters/mongo"
	"github.com/KolBohdan/train-station-api-service/internal/adapters/rabbit"
	redisadapter "github.com/KolBohdan/train-station-api-service/internal/adapters/redis"
	"github.com/KolBohdan/train-station-api-service/internal/booking"
	"github.com/KolBohdan/train-station-api-service/internal/config"
	httphandler "github.com/KolBohdan/train-station-api-service/internal/http"
	"github.com/KolBohdan/train-station-api-service/internal/idempotency"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
	"github.com/KolBohdan/train-station-api-service/internal/outbox"
	"github.com/KolBohdan/train-station-api-service/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("station")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient, cfg.AvailabilityTTL)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	svc := booking.NewService(repo, cache, logger)
	handlers := httphandler.NewHandlers(cfg, svc, repo, idemp, catalog, audit, logger)
	router := httphandler.SetupRouter(handlers, logger, rl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The api drains its own outbox so a single-binary deployment still
	// publishes events; cmd/outbox-publisher runs the same loop standalone.
	go outbox.NewPublisher(repo, rabbitPub, logger).Run(ctx, 5*time.Second, 10)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
