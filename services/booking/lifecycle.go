package booking

import (
	"context"
	"errors"
	"strings"

	bookingRepo "homeserve/database/repository/booking"
	workerRepo "homeserve/database/repository/worker"
	"homeserve/models"
	"homeserve/services/pricing"
	"homeserve/services/recurrence"
	"homeserve/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRequest is a request for one booking.
type CreateRequest struct {
	CustomerID     string                 `json:"customerId"`
	WorkerID       string                 `json:"workerId"`
	ServiceID      string                 `json:"serviceId"`
	Date           string                 `json:"date"`
	Time           string                 `json:"time"`
	DurationHours  float64                `json:"durationHours"`
	Notes          string                 `json:"notes,omitempty"`
	Address        *models.Address        `json:"address,omitempty"`
	Location       string                 `json:"location,omitempty"`
	Emergency      bool                   `json:"emergency"`
	Recurrence     *models.RecurrencePlan `json:"recurrence,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
}

// QuoteRequest prices a prospective booking without reserving anything.
type QuoteRequest struct {
	WorkerID      string                 `json:"workerId"`
	ServiceID     string                 `json:"serviceId"`
	Date          string                 `json:"date"`
	Time          string                 `json:"time"`
	DurationHours float64                `json:"durationHours"`
	Location      string                 `json:"location,omitempty"`
	Emergency     bool                   `json:"emergency"`
	Recurrence    *models.RecurrencePlan `json:"recurrence,omitempty"`
}

func (s *DefaultBookingService) requester(ctx context.Context) (string, error) {
	id, err := s.Identity.CurrentRequesterID(ctx)
	if err != nil || id == "" {
		return "", utils.NewForbiddenError("no authenticated requester")
	}
	return id, nil
}

// authorize returns the role the requester plays on b: its customer, its
// worker, or an administrator.
func (s *DefaultBookingService) authorize(ctx context.Context, b *models.Booking, requesterID string) (models.Party, error) {
	if party, ok := b.PartyOf(requesterID); ok {
		return party, nil
	}
	if s.Identity.HasAdminCapability(ctx, requesterID) {
		return models.PartyAdmin, nil
	}
	return "", utils.NewForbiddenError("requester is not a party to this booking")
}

func (s *DefaultBookingService) loadBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, utils.NewValidationError("bookingId", "is required")
	}
	b, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return nil, utils.NewNotFoundError("booking", bookingID)
		}
		return nil, utils.NewStoreUnavailableError("getBooking", err)
	}
	return b, nil
}

func (s *DefaultBookingService) loadWorker(ctx context.Context, workerID string) (*models.WorkerProfile, error) {
	w, err := s.Workers.GetWorkerProfile(ctx, workerID)
	if err != nil {
		if errors.Is(err, workerRepo.ErrNotFound) {
			return nil, utils.NewNotFoundError("worker", workerID)
		}
		return nil, utils.NewStoreUnavailableError("getWorker", err)
	}
	if !w.Active {
		return nil, utils.NewNotFoundError("worker", workerID)
	}
	return w, nil
}

// price re-derives the charge from the worker's stored rate card; client
// supplied amounts are never used.
func (s *DefaultBookingService) price(w *models.WorkerProfile, serviceID string, win window, location string, emergency bool, plan *models.RecurrencePlan) (models.PriceBreakdown, error) {
	rate := w.RateFor(serviceID)
	if rate <= 0 {
		return models.PriceBreakdown{}, utils.NewValidationError("serviceId", "worker has no rate for this service")
	}
	return s.Pricing.ComputePrice(pricing.Input{
		BaseRate:      rate,
		DurationHours: win.hoursOf(),
		ScheduledAt:   win.at,
		Location:      location,
		Tier:          w.ExperienceTier,
		Emergency:     emergency,
		Recurrence:    plan,
	})
}

func (w window) hoursOf() float64 {
	return float64(w.end-w.start) / 60
}

func validateCreate(req CreateRequest) error {
	switch {
	case strings.TrimSpace(req.CustomerID) == "":
		return utils.NewValidationError("customerId", "is required")
	case strings.TrimSpace(req.WorkerID) == "":
		return utils.NewValidationError("workerId", "is required")
	case strings.TrimSpace(req.ServiceID) == "":
		return utils.NewValidationError("serviceId", "is required")
	case req.CustomerID == req.WorkerID:
		return utils.NewValidationError("workerId", "customer cannot book themselves")
	}
	if req.Recurrence != nil {
		if err := recurrence.Validate(*req.Recurrence); err != nil {
			return err
		}
	}
	return nil
}

// Quote returns the authoritative price for a prospective booking.
func (s *DefaultBookingService) Quote(ctx context.Context, req QuoteRequest) (models.PriceBreakdown, error) {
	if _, err := s.requester(ctx); err != nil {
		return models.PriceBreakdown{}, err
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		return models.PriceBreakdown{}, utils.NewValidationError("workerId", "is required")
	}
	if req.Recurrence != nil {
		if err := recurrence.Validate(*req.Recurrence); err != nil {
			return models.PriceBreakdown{}, err
		}
	}
	win, err := s.parseWindow(req.Date, req.Time, req.DurationHours)
	if err != nil {
		return models.PriceBreakdown{}, err
	}
	w, err := s.loadWorker(ctx, req.WorkerID)
	if err != nil {
		return models.PriceBreakdown{}, err
	}
	return s.price(w, req.ServiceID, win, req.Location, req.Emergency, req.Recurrence)
}

// Create books a single slot in pending status.
func (s *DefaultBookingService) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	requesterID, err := s.requester(ctx)
	if err != nil {
		return nil, err
	}
	if requesterID != req.CustomerID {
		return nil, utils.NewForbiddenError("bookings can only be created for yourself")
	}
	var series *models.SeriesRef
	if req.Recurrence != nil {
		series = &models.SeriesRef{SeriesID: uuid.New().String(), Plan: *req.Recurrence}
	}
	return s.create(ctx, req, series)
}

func (s *DefaultBookingService) create(ctx context.Context, req CreateRequest, series *models.SeriesRef) (*models.Booking, error) {
	logger := s.logger()
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	win, err := s.parseWindow(req.Date, req.Time, req.DurationHours)
	if err != nil {
		return nil, err
	}
	worker, err := s.loadWorker(ctx, req.WorkerID)
	if err != nil {
		return nil, err
	}

	release, err := s.Locker.Acquire(ctx, lockKey(req.WorkerID, win.date))
	if err != nil {
		logger.Warn("could not acquire worker lease", zap.String("workerID", req.WorkerID), zap.Error(err))
		return nil, utils.NewStoreUnavailableError("acquireLease", err)
	}
	defer release()

	if existing, err := s.findIdempotent(ctx, req.CustomerID, req.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	avail, err := s.availableFor(ctx, req.WorkerID, win, "")
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, utils.NewSlotUnavailableError(avail.ConflictingBookingID)
	}

	var plan *models.RecurrencePlan
	if series != nil {
		plan = &series.Plan
	}
	breakdown, err := s.price(worker, req.ServiceID, win, req.Location, req.Emergency, plan)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := &models.Booking{
		ID:             uuid.New().String(),
		CustomerID:     req.CustomerID,
		WorkerID:       req.WorkerID,
		ServiceID:      req.ServiceID,
		ServiceDate:    win.date,
		ServiceTime:    win.clock,
		DurationHours:  req.DurationHours,
		StartMinute:    win.start,
		EndMinute:      win.end,
		Location:       req.Location,
		Emergency:      req.Emergency,
		Price:          breakdown,
		TotalAmount:    breakdown.Total,
		PaymentStatus:  models.PaymentPending,
		Status:         models.StatusPending,
		Active:         true,
		Notes:          strings.TrimSpace(req.Notes),
		Address:        req.Address,
		Series:         series,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	event := newEvent(*b, models.EventBookingCreated, "", now)
	event.Notice = createdNotice.build(*b, models.PartyCustomer)

	if err := s.Store.InsertBooking(ctx, b, event); err != nil {
		var conflict *bookingRepo.ConflictError
		if errors.As(err, &conflict) {
			if existing, ferr := s.findIdempotent(ctx, req.CustomerID, req.IdempotencyKey); ferr == nil && existing != nil {
				return existing, nil
			}
			return nil, utils.NewSlotUnavailableError(conflict.BookingID)
		}
		logger.Error("booking insert failed", zap.String("workerID", req.WorkerID), zap.Error(err))
		return nil, utils.NewStoreUnavailableError("insertBooking", err)
	}
	s.kick()

	logger.Info("booking created",
		zap.String("bookingID", b.ID),
		zap.String("workerID", b.WorkerID),
		zap.String("date", b.ServiceDate),
		zap.String("time", b.ServiceTime),
		zap.Float64("total", b.TotalAmount))
	return b, nil
}

// findIdempotent returns the booking already committed under key, or nil.
func (s *DefaultBookingService) findIdempotent(ctx context.Context, customerID, key string) (*models.Booking, error) {
	if key == "" {
		return nil, nil
	}
	b, err := s.Store.FindBookingByIdempotencyKey(ctx, customerID, key)
	if err == nil {
		return b, nil
	}
	if errors.Is(err, bookingRepo.ErrNotFound) {
		return nil, nil
	}
	return nil, utils.NewStoreUnavailableError("findByIdempotencyKey", err)
}

// Get returns a booking to one of its parties or an administrator.
func (s *DefaultBookingService) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	requesterID, err := s.requester(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, b, requesterID); err != nil {
		return nil, err
	}
	return b, nil
}
