package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/KolBohdan/train-station-api-service/internal/adapters/crdb"
	"github.com/KolBohdan/train-station-api-service/internal/adapters/rabbit"
	redisadapter "github.com/KolBohdan/train-station-api-service/internal/adapters/redis"
	"github.com/KolBohdan/train-station-api-service/internal/booking"
	"github.com/KolBohdan/train-station-api-service/internal/config"
	"github.com/KolBohdan/train-station-api-service/internal/domain"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient, cfg.AvailabilityTTL)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	consumer, err := rabbit.NewConsumer(conn, "availability.q", "order.created")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	worker := NewAvailabilityWorker(repo, cache, rabbitPub, logger, cfg.LookaheadWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)
	go worker.ConsumeOrders(ctx, consumer)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown availability worker")
}

// AvailabilityWorker keeps the redis availability counts warm for
// journeys departing inside the lookahead window and announces
// journeys that have sold out.
type AvailabilityWorker struct {
	repo      *crdb.Repository
	cache     *redisadapter.Cache
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
	lookahead time.Duration

	mu      sync.Mutex // guards soldOut; Run and ConsumeOrders race otherwise
	soldOut map[uuid.UUID]bool
}

func NewAvailabilityWorker(repo *crdb.Repository, cache *redisadapter.Cache, rabbitPub *rabbit.Publisher, logger observability.Logger, lookahead time.Duration) *AvailabilityWorker {
	return &AvailabilityWorker{
		repo:      repo,
		cache:     cache,
		rabbitPub: rabbitPub,
		logger:    logger,
		lookahead: lookahead,
		soldOut:   make(map[uuid.UUID]bool),
	}
}

func (w *AvailabilityWorker) Run(ctx context.Context, interval time.Duration) {
	svc := booking.NewService(w.repo, nil, w.logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			journeys, err := w.repo.ListJourneysBetween(ctx, now, now.Add(w.lookahead))
			if err != nil {
				w.logger.WithError(err).Error("failed to list journeys")
				continue
			}
			for _, j := range journeys {
				if err := w.refreshWithRetry(ctx, svc, j); err != nil {
					w.logger.WithError(err).WithField("journey_id", j.ID).Error("failed to refresh availability after retries")
				}
			}
		}
	}
}

// ConsumeOrders refreshes the cached counts for a journey as soon as a
// booking touches it, instead of waiting for the next ticker pass.
func (w *AvailabilityWorker) ConsumeOrders(ctx context.Context, consumer *rabbit.Consumer) {
	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		w.logger.WithError(err).Error("failed to start consuming order events")
		return
	}
	svc := booking.NewService(w.repo, nil, w.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var event struct {
				JourneyIDs []uuid.UUID `json:"journey_ids"`
			}
			if err := json.Unmarshal(d.Body, &event); err != nil {
				w.logger.WithError(err).Warn("malformed order event")
				d.Nack(false, false)
				continue
			}
			for _, id := range event.JourneyIDs {
				if err := w.refreshWithRetry(ctx, svc, domain.Journey{ID: id}); err != nil {
					w.logger.WithError(err).WithField("journey_id", id).Error("failed to refresh availability")
				}
			}
			d.Ack(false)
		}
	}
}

func (w *AvailabilityWorker) refreshWithRetry(ctx context.Context, svc *booking.Service, j domain.Journey) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		count, err := svc.AvailableCount(ctx, j.ID)
		if errors.Is(err, domain.ErrJourneyNotFound) {
			// Journey deleted since the event; drop its cached count.
			return w.cache.Invalidate(ctx, j.ID)
		}
		if err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		if err := w.cache.SetCount(ctx, j.ID, count); err != nil {
			w.logger.WithError(err).WithField("journey_id", j.ID).Warn("availability cache write failed")
		}

		w.mu.Lock()
		if count > 0 {
			delete(w.soldOut, j.ID)
			w.mu.Unlock()
			return nil
		}
		if w.soldOut[j.ID] {
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		payload, _ := json.Marshal(map[string]interface{}{"journey_id": j.ID})
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        payload,
		}
		if err := w.rabbitPub.Publish(ctx, "journey.sold_out", msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			return err
		}
		w.mu.Lock()
		w.soldOut[j.ID] = true
		w.mu.Unlock()
		return nil
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}
