package booking

import (
	"context"
	"time"

	bookingRepo "homeserve/database/repository/booking"
	workerRepo "homeserve/database/repository/worker"
	"homeserve/models"
	"homeserve/services/pricing"
	"homeserve/utils"

	"go.uber.org/zap"
)

// BookingService is the booking lifecycle manager.
type BookingService interface {
	CheckAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error)
	Quote(ctx context.Context, req QuoteRequest) (models.PriceBreakdown, error)
	Create(ctx context.Context, req CreateRequest) (*models.Booking, error)
	CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error)
	Get(ctx context.Context, bookingID string) (*models.Booking, error)
	Transition(ctx context.Context, bookingID string, target models.BookingStatus, notes string) (*models.Booking, error)
	Modify(ctx context.Context, bookingID string, req ModifyRequest) (*models.Booking, error)
}

// Identity resolves who is calling. Authentication itself happens upstream.
type Identity interface {
	CurrentRequesterID(ctx context.Context) (string, error)
	HasAdminCapability(ctx context.Context, id string) bool
}

// Locker serializes writes that touch the same worker and date.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Kicker is nudged after each committed write so events leave the outbox
// without waiting for the next poll.
type Kicker interface {
	Kick()
}

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	Store    bookingRepo.BookingRepository
	Workers  workerRepo.WorkerRepository
	Pricing  *pricing.Calculator
	Identity Identity
	Locker   Locker
	Outbox   Kicker

	// Now and Location define "today" for past-date checks and the wall
	// clock used for surge pricing.
	Now      func() time.Time
	Location *time.Location
	Logger   *zap.Logger

	MaxRetries int
}

const defaultMaxRetries = 3

func (s *DefaultBookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.location())
	}
	return time.Now().In(s.location())
}

func (s *DefaultBookingService) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *DefaultBookingService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return utils.GetLogger()
}

func (s *DefaultBookingService) retries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return defaultMaxRetries
}

func (s *DefaultBookingService) kick() {
	if s.Outbox != nil {
		s.Outbox.Kick()
	}
}

var _ BookingService = (*DefaultBookingService)(nil)
