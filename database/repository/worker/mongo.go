package workerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeserve/database"
	"homeserve/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoWorkerRepo struct {
	coll *mongo.Collection
}

func NewMongoWorkerRepo() WorkerRepository {
	return &MongoWorkerRepo{coll: database.MongoDatabase().Collection("workers")}
}

func (r *MongoWorkerRepo) GetWorkerProfile(ctx context.Context, workerID string) (*models.WorkerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var profile models.WorkerProfile
	if err := r.coll.FindOne(ctx, bson.M{"id": workerID}).Decode(&profile); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching worker with id %s: %w", workerID, err)
	}
	return &profile, nil
}

func (r *MongoWorkerRepo) SaveWorkerProfile(ctx context.Context, profile *models.WorkerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"id": profile.ID}, profile, opts); err != nil {
		return fmt.Errorf("error saving worker %s: %w", profile.ID, err)
	}
	return nil
}

// EnsureIndexes creates the unique id index on the workers collection.
func (r *MongoWorkerRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_id"),
	})
	if err != nil {
		return fmt.Errorf("failed to create worker indexes: %w", err)
	}
	return nil
}
