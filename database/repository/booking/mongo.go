package bookingRepo

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
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoBookingRepo stores bookings in one collection and their pending events
// in an outbox collection, written together inside a transaction.
type MongoBookingRepo struct {
	bookingColl *mongo.Collection
	outboxColl  *mongo.Collection
}

// NewMongoBookingRepo uses the global client from database.InitDB.
func NewMongoBookingRepo() BookingRepository {
	return NewMongoBookingRepoFor(database.MongoDatabase())
}

func NewMongoBookingRepoFor(db *mongo.Database) *MongoBookingRepo {
	return &MongoBookingRepo{
		bookingColl: db.Collection("bookings"),
		outboxColl:  db.Collection("booking_outbox"),
	}
}

func overlapFilter(workerID, date string, start, end int) bson.M {
	return bson.M{
		"workerId":    workerID,
		"serviceDate": date,
		"active":      true,
		"startMinute": bson.M{"$lt": end},
		"endMinute":   bson.M{"$gt": start},
	}
}

func (repo *MongoBookingRepo) FindActiveBookingsForWorker(ctx context.Context, workerID, date string) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"workerId": workerID, "serviceDate": date, "active": true}
	opts := options.Find().SetSort(bson.D{{Key: "startMinute", Value: 1}})
	cursor, err := repo.bookingColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding active bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding active bookings: %w", err)
	}
	return bookings, nil
}

func (repo *MongoBookingRepo) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return repo.findOne(ctx, bson.M{"id": bookingID})
}

func (repo *MongoBookingRepo) FindBookingByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Booking, error) {
	return repo.findOne(ctx, bson.M{"customerId": customerID, "idempotencyKey": key})
}

func (repo *MongoBookingRepo) findOne(ctx context.Context, filter bson.M) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	if err := repo.bookingColl.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching booking: %w", err)
	}
	return &booking, nil
}

// withTransaction runs fn inside a session transaction with the same
// start/abort/commit shape used by the slot-booking path.
func (repo *MongoBookingRepo) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sess, err := repo.bookingColl.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
}

func (repo *MongoBookingRepo) InsertBooking(ctx context.Context, booking *models.Booking, event models.BookingEvent) error {
	err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if booking.Status.IsActive() {
			var clash models.Booking
			err := repo.bookingColl.FindOne(sc, overlapFilter(booking.WorkerID, booking.ServiceDate, booking.StartMinute, booking.EndMinute)).Decode(&clash)
			if err == nil {
				return &ConflictError{BookingID: clash.ID}
			}
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("overlap check failed: %w", err)
			}
		}

		if _, err := repo.bookingColl.InsertOne(sc, booking); err != nil {
			return err
		}
		if _, err := repo.outboxColl.InsertOne(sc, models.OutboxEvent{Event: event}); err != nil {
			return fmt.Errorf("insert outbox event failed: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		// The partial unique index on the active slot caught a racing insert.
		return &ConflictError{BookingID: repo.activeAt(ctx, booking)}
	}
	return fmt.Errorf("booking transaction failed: %w", err)
}

// activeAt looks up the active booking holding exactly booking's start, for
// conflict reporting only.
func (repo *MongoBookingRepo) activeAt(ctx context.Context, booking *models.Booking) string {
	b, err := repo.findOne(ctx, bson.M{
		"workerId":    booking.WorkerID,
		"serviceDate": booking.ServiceDate,
		"serviceTime": booking.ServiceTime,
		"active":      true,
	})
	if err != nil {
		return ""
	}
	return b.ID
}

func (repo *MongoBookingRepo) UpdateBookingStatus(ctx context.Context, upd models.StatusUpdate) (*models.Booking, error) {
	var updated models.Booking
	err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		set := bson.M{
			"status":    upd.NewStatus,
			"active":    upd.NewStatus.IsActive(),
			"notes":     upd.Notes,
			"updatedAt": upd.UpdatedAt,
		}
		if upd.CancelledBy != "" {
			set["cancelledBy"] = upd.CancelledBy
		}
		filter := bson.M{"id": upd.BookingID, "status": upd.ExpectedStatus}
		update := bson.M{"$set": set, "$inc": bson.M{"revision": 1}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		if err := repo.bookingColl.FindOneAndUpdate(sc, filter, update, opts).Decode(&updated); err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return err
			}
			n, cerr := repo.bookingColl.CountDocuments(sc, bson.M{"id": upd.BookingID})
			if cerr != nil {
				return cerr
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrStale
		}
		if _, err := repo.outboxColl.InsertOne(sc, models.OutboxEvent{Event: upd.Event}); err != nil {
			return fmt.Errorf("insert outbox event failed: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale) {
			return nil, err
		}
		return nil, fmt.Errorf("status transaction failed: %w", err)
	}
	return &updated, nil
}

func (repo *MongoBookingRepo) UpdateBookingDetails(ctx context.Context, booking *models.Booking, expectedRevision int, event models.BookingEvent) error {
	err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		filter := overlapFilter(booking.WorkerID, booking.ServiceDate, booking.StartMinute, booking.EndMinute)
		filter["id"] = bson.M{"$ne": booking.ID}
		var clash models.Booking
		err := repo.bookingColl.FindOne(sc, filter).Decode(&clash)
		if err == nil {
			return &ConflictError{BookingID: clash.ID}
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("overlap check failed: %w", err)
		}

		res, err := repo.bookingColl.ReplaceOne(sc, bson.M{
			"id":       booking.ID,
			"revision": expectedRevision,
			"status":   models.StatusPending,
		}, booking)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			n, cerr := repo.bookingColl.CountDocuments(sc, bson.M{"id": booking.ID})
			if cerr != nil {
				return cerr
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrStale
		}
		if _, err := repo.outboxColl.InsertOne(sc, models.OutboxEvent{Event: event}); err != nil {
			return fmt.Errorf("insert outbox event failed: %w", err)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrStale):
		return err
	case mongo.IsDuplicateKeyError(err):
		return &ConflictError{BookingID: repo.activeAt(ctx, booking)}
	}
	return fmt.Errorf("modify transaction failed: %w", err)
}

func (repo *MongoBookingRepo) PendingEvents(ctx context.Context, limit int) ([]models.BookingEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "event.occurredAt", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := repo.outboxColl.Find(ctx, bson.M{"dispatched": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error reading outbox: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.OutboxEvent
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error decoding outbox: %w", err)
	}
	events := make([]models.BookingEvent, len(rows))
	for i, r := range rows {
		events[i] = r.Event
	}
	return events, nil
}

func (repo *MongoBookingRepo) MarkEventsDispatched(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	_, err := repo.outboxColl.UpdateMany(ctx,
		bson.M{"event.id": bson.M{"$in": eventIDs}},
		bson.M{"$set": bson.M{"dispatched": true, "dispatchedAt": now}},
	)
	if err != nil {
		return fmt.Errorf("error marking outbox events dispatched: %w", err)
	}
	return nil
}

func (repo *MongoBookingRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return repo.bookingColl.Database().Client().Ping(ctx, readpref.Primary())
}
