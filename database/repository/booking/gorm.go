package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeserve/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type bookingRecord struct {
	ID             string                `gorm:"primaryKey;size:36"`
	CustomerID     string                `gorm:"size:64;not null;index"`
	WorkerID       string                `gorm:"size:64;not null"`
	ServiceID      string                `gorm:"size:64"`
	ServiceDate    string                `gorm:"size:10;not null"`
	ServiceTime    string                `gorm:"size:5;not null"`
	DurationHours  float64               `gorm:"not null"`
	StartMinute    int                   `gorm:"not null"`
	EndMinute      int                   `gorm:"not null"`
	Location       string                `gorm:"size:64"`
	Emergency      bool                  `gorm:"not null;default:false"`
	Price          models.PriceBreakdown `gorm:"serializer:json"`
	TotalAmount    float64               `gorm:"not null"`
	PaymentStatus  string                `gorm:"size:16"`
	Status         string                `gorm:"size:16;not null;index"`
	Active         bool                  `gorm:"not null"`
	CancelledBy    string                `gorm:"size:16"`
	Notes          string                `gorm:"type:text"`
	Address        *models.Address       `gorm:"serializer:json"`
	Series         *models.SeriesRef     `gorm:"serializer:json"`
	IdempotencyKey *string               `gorm:"size:128"`
	Revision       int                   `gorm:"not null;default:0"`
	CreatedAt      time.Time             `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time             `gorm:"autoUpdateTime:false"`
}

func (bookingRecord) TableName() string { return "bookings" }

type outboxRecord struct {
	ID           string              `gorm:"primaryKey;size:36"`
	BookingID    string              `gorm:"size:36;index"`
	Kind         string              `gorm:"size:32"`
	Event        models.BookingEvent `gorm:"serializer:json"`
	OccurredAt   time.Time           `gorm:"index"`
	Dispatched   bool                `gorm:"not null;default:false;index"`
	DispatchedAt *time.Time
}

func (outboxRecord) TableName() string { return "booking_outbox" }

func toRecord(b *models.Booking) bookingRecord {
	r := bookingRecord{
		ID:            b.ID,
		CustomerID:    b.CustomerID,
		WorkerID:      b.WorkerID,
		ServiceID:     b.ServiceID,
		ServiceDate:   b.ServiceDate,
		ServiceTime:   b.ServiceTime,
		DurationHours: b.DurationHours,
		StartMinute:   b.StartMinute,
		EndMinute:     b.EndMinute,
		Location:      b.Location,
		Emergency:     b.Emergency,
		Price:         b.Price,
		TotalAmount:   b.TotalAmount,
		PaymentStatus: string(b.PaymentStatus),
		Status:        string(b.Status),
		Active:        b.Active,
		CancelledBy:   string(b.CancelledBy),
		Notes:         b.Notes,
		Address:       b.Address,
		Series:        b.Series,
		Revision:      b.Revision,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.IdempotencyKey != "" {
		k := b.IdempotencyKey
		r.IdempotencyKey = &k
	}
	return r
}

func (r bookingRecord) toModel() models.Booking {
	b := models.Booking{
		ID:            r.ID,
		CustomerID:    r.CustomerID,
		WorkerID:      r.WorkerID,
		ServiceID:     r.ServiceID,
		ServiceDate:   r.ServiceDate,
		ServiceTime:   r.ServiceTime,
		DurationHours: r.DurationHours,
		StartMinute:   r.StartMinute,
		EndMinute:     r.EndMinute,
		Location:      r.Location,
		Emergency:     r.Emergency,
		Price:         r.Price,
		TotalAmount:   r.TotalAmount,
		PaymentStatus: models.PaymentStatus(r.PaymentStatus),
		Status:        models.BookingStatus(r.Status),
		Active:        r.Active,
		CancelledBy:   models.Party(r.CancelledBy),
		Notes:         r.Notes,
		Address:       r.Address,
		Series:        r.Series,
		Revision:      r.Revision,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.IdempotencyKey != nil {
		b.IdempotencyKey = *r.IdempotencyKey
	}
	return b
}

func newOutboxRecord(e models.BookingEvent) outboxRecord {
	return outboxRecord{
		ID:         e.ID,
		BookingID:  e.BookingID,
		Kind:       string(e.Kind),
		Event:      e,
		OccurredAt: e.OccurredAt,
	}
}

// GormBookingRepo is the Postgres store. Writes for one worker and date are
// serialized with a transaction-scoped advisory lock, and overlapping rows
// are locked FOR UPDATE before insert.
type GormBookingRepo struct {
	db *gorm.DB
}

func NewGormBookingRepo(db *gorm.DB) *GormBookingRepo {
	return &GormBookingRepo{db: db}
}

// Migrate creates the tables and the partial indexes AutoMigrate cannot express.
func (r *GormBookingRepo) Migrate() error {
	if err := r.db.AutoMigrate(&bookingRecord{}, &outboxRecord{}); err != nil {
		return err
	}
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_slot_uq ON bookings (worker_id, service_date, service_time) WHERE active`,
		`CREATE INDEX IF NOT EXISTS bookings_worker_day_active_idx ON bookings (worker_id, service_date, start_minute) WHERE active`,
		`CREATE UNIQUE INDEX IF NOT EXISTS bookings_idempotency_uq ON bookings (customer_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	}
	for _, s := range stmts {
		if err := r.db.Exec(s).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func lockWorkerDay(tx *gorm.DB, workerID, date string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", workerID+"|"+date).Error
}

func overlapping(tx *gorm.DB, b *models.Booking) (string, error) {
	var existing bookingRecord
	err := tx.Model(&bookingRecord{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("worker_id = ? AND service_date = ? AND active", b.WorkerID, b.ServiceDate).
		Where("start_minute < ? AND end_minute > ?", b.EndMinute, b.StartMinute).
		Where("id <> ?", b.ID).
		Take(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return "", err
}

func (r *GormBookingRepo) FindActiveBookingsForWorker(ctx context.Context, workerID, date string) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rows []bookingRecord
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND service_date = ? AND active", workerID, date).
		Order("start_minute ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error finding active bookings: %w", err)
	}
	out := make([]models.Booking, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (r *GormBookingRepo) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return r.first(ctx, "id = ?", bookingID)
}

func (r *GormBookingRepo) FindBookingByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Booking, error) {
	return r.first(ctx, "customer_id = ? AND idempotency_key = ?", customerID, key)
}

func (r *GormBookingRepo) first(ctx context.Context, query string, args ...interface{}) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var row bookingRecord
	if err := r.db.WithContext(ctx).Where(query, args...).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching booking: %w", err)
	}
	b := row.toModel()
	return &b, nil
}

func (r *GormBookingRepo) InsertBooking(ctx context.Context, booking *models.Booking, event models.BookingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWorkerDay(tx, booking.WorkerID, booking.ServiceDate); err != nil {
			return err
		}
		if booking.Status.IsActive() {
			clashID, err := overlapping(tx, booking)
			if err != nil {
				return err
			}
			if clashID != "" {
				return &ConflictError{BookingID: clashID}
			}
		}
		rec := toRecord(booking)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		out := newOutboxRecord(event)
		return tx.Create(&out).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ConflictError{}
	}
	return fmt.Errorf("booking transaction failed: %w", err)
}

func (r *GormBookingRepo) UpdateBookingStatus(ctx context.Context, upd models.StatusUpdate) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var row bookingRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"status":     string(upd.NewStatus),
			"active":     upd.NewStatus.IsActive(),
			"notes":      upd.Notes,
			"updated_at": upd.UpdatedAt,
			"revision":   gorm.Expr("revision + 1"),
		}
		if upd.CancelledBy != "" {
			fields["cancelled_by"] = string(upd.CancelledBy)
		}
		res := tx.Model(&bookingRecord{}).
			Where("id = ? AND status = ?", upd.BookingID, string(upd.ExpectedStatus)).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&bookingRecord{}).Where("id = ?", upd.BookingID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrStale
		}
		out := newOutboxRecord(upd.Event)
		if err := tx.Create(&out).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", upd.BookingID).Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale) {
			return nil, err
		}
		return nil, fmt.Errorf("status transaction failed: %w", err)
	}
	b := row.toModel()
	return &b, nil
}

func (r *GormBookingRepo) UpdateBookingDetails(ctx context.Context, booking *models.Booking, expectedRevision int, event models.BookingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWorkerDay(tx, booking.WorkerID, booking.ServiceDate); err != nil {
			return err
		}
		if booking.Status.IsActive() {
			clashID, err := overlapping(tx, booking)
			if err != nil {
				return err
			}
			if clashID != "" {
				return &ConflictError{BookingID: clashID}
			}
		}
		rec := toRecord(booking)
		res := tx.Model(&bookingRecord{}).
			Where("id = ? AND revision = ? AND status = ?", booking.ID, expectedRevision, string(models.StatusPending)).
			Select("*").
			Omit("id", "created_at").
			Updates(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&bookingRecord{}).Where("id = ?", booking.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrStale
		}
		out := newOutboxRecord(event)
		return tx.Create(&out).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrStale):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ConflictError{}
	}
	return fmt.Errorf("modify transaction failed: %w", err)
}

func (r *GormBookingRepo) PendingEvents(ctx context.Context, limit int) ([]models.BookingEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rows []outboxRecord
	err := r.db.WithContext(ctx).
		Where("dispatched = ?", false).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error reading outbox: %w", err)
	}
	events := make([]models.BookingEvent, len(rows))
	for i, row := range rows {
		events[i] = row.Event
	}
	return events, nil
}

func (r *GormBookingRepo) MarkEventsDispatched(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&outboxRecord{}).
		Where("id IN ?", eventIDs).
		Updates(map[string]interface{}{"dispatched": true, "dispatched_at": now}).Error
	if err != nil {
		return fmt.Errorf("error marking outbox events dispatched: %w", err)
	}
	return nil
}

func (r *GormBookingRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
