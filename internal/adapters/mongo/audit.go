package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/KolBohdan/train-station-api-service/internal/domain"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogOrder(ctx context.Context, order domain.Order) error {
	places := make([]bson.M, 0, len(order.Tickets))
	for _, t := range order.Tickets {
		places = append(places, bson.M{
			"journey_id": t.JourneyID,
			"cargo":      t.Cargo,
			"seat":       t.Seat,
		})
	}
	data := map[string]interface{}{
		"order_id":   order.ID,
		"created_at": order.CreatedAt.Format(time.RFC3339),
		"tickets":    places,
	}
	return a.LogEvent(ctx, "order.created", order.UserID, data)
}
