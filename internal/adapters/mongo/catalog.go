package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KolBohdan/train-station-api-service/internal/domain"
	"github.com/KolBohdan/train-station-api-service/internal/observability"
)

// CatalogRepository is the display-side train catalog: denormalized
// train documents for list/detail endpoints and image references. The
// booking transaction never reads it; capacity resolution stays in the
// SQL store.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("trains"),
		logger: logger,
	}
}

type TrainDoc struct {
	ID            uuid.UUID `bson:"_id"`
	Name          string    `bson:"name"`
	CargoNum      int       `bson:"cargo_num"`
	PlacesInCargo int       `bson:"places_in_cargo"`
	Capacity      int       `bson:"capacity"`
	TrainType     string    `bson:"train_type"`
	ImageURL      string    `bson:"image_url"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (c *CatalogRepository) GetTrain(ctx context.Context, id uuid.UUID) (*TrainDoc, error) {
	var doc TrainDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get train doc")
		return nil, err
	}
	return &doc, nil
}

func (c *CatalogRepository) ListTrains(ctx context.Context) ([]TrainDoc, error) {
	cur, err := c.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []TrainDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpsertTrain syncs the read model after a catalog write.
func (c *CatalogRepository) UpsertTrain(ctx context.Context, train domain.Train, trainType string) error {
	now := time.Now()
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": train.ID},
		bson.M{
			"$set": bson.M{
				"name":            train.Name,
				"cargo_num":       train.CargoNum,
				"places_in_cargo": train.PlacesInCargo,
				"capacity":        train.Shape().Capacity(),
				"train_type":      trainType,
				"image_url":       train.ImageURL,
				"updated_at":      now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert train doc")
	}
	return err
}

func (c *CatalogRepository) SetTrainImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"image_url": imageURL, "updated_at": time.Now()}},
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to set train image")
	}
	return err
}
