package bookingRepo

import (
	"context"
	"errors"
	"fmt"

	"homeserve/models"
)

var (
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("slot already booked")
	// ErrNotFound means no booking has the requested id.
	ErrNotFound = errors.New("booking not found")
	// ErrStale means a compare-and-set lost to a concurrent write.
	ErrStale = errors.New("booking changed concurrently")
)

// ConflictError reports the active booking that already holds the slot.
// BookingID may be empty when the store could not identify it.
type ConflictError struct {
	BookingID string
}

func (e *ConflictError) Error() string {
	if e.BookingID == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s by booking %s", ErrConflict, e.BookingID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// BookingRepository persists bookings together with their outbox events. Every
// mutating call writes the booking and its event in one atomic step.
type BookingRepository interface {
	FindActiveBookingsForWorker(ctx context.Context, workerID, date string) ([]models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	FindBookingByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Booking, error)

	// InsertBooking returns a *ConflictError when an active booking for the
	// same worker overlaps the new one.
	InsertBooking(ctx context.Context, booking *models.Booking, event models.BookingEvent) error
	// UpdateBookingStatus applies upd only while the booking is still in
	// upd.ExpectedStatus; otherwise it returns ErrStale.
	UpdateBookingStatus(ctx context.Context, upd models.StatusUpdate) (*models.Booking, error)
	// UpdateBookingDetails replaces a pending booking whose revision still
	// equals expectedRevision. The caller bumps booking.Revision.
	UpdateBookingDetails(ctx context.Context, booking *models.Booking, expectedRevision int, event models.BookingEvent) error

	PendingEvents(ctx context.Context, limit int) ([]models.BookingEvent, error)
	MarkEventsDispatched(ctx context.Context, eventIDs []string) error

	Ping(ctx context.Context) error
}

func firstOverlap(bookings []models.Booking, start, end int, excludeID string) (string, bool) {
	for _, b := range bookings {
		if b.ID != excludeID && b.Status.IsActive() && b.Overlaps(start, end) {
			return b.ID, true
		}
	}
	return "", false
}

var (
	_ BookingRepository = (*MemoryBookingRepo)(nil)
	_ BookingRepository = (*MongoBookingRepo)(nil)
	_ BookingRepository = (*GormBookingRepo)(nil)
)
