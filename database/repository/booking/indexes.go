package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the booking and outbox indexes. The partial unique
// index on the active slot is the storage-level double-booking guard.
func (repo *MongoBookingRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bookingIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys: bson.D{{Key: "workerId", Value: 1}, {Key: "serviceDate", Value: 1}, {Key: "serviceTime", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}).
				SetName("worker_active_slot_uq"),
		},
		{
			Keys:    bson.D{{Key: "workerId", Value: 1}, {Key: "serviceDate", Value: 1}, {Key: "active", Value: 1}, {Key: "startMinute", Value: 1}},
			Options: options.Index().SetName("worker_date_active_idx"),
		},
		{
			Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$exists": true}}).
				SetName("customer_idempotency_uq"),
		},
	}
	if _, err := repo.bookingColl.Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	outboxIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event.id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_event_id"),
		},
		{
			Keys:    bson.D{{Key: "dispatched", Value: 1}, {Key: "event.occurredAt", Value: 1}},
			Options: options.Index().SetName("dispatched_occurred_idx"),
		},
	}
	if _, err := repo.outboxColl.Indexes().CreateMany(ctx, outboxIndexes); err != nil {
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return nil
}
