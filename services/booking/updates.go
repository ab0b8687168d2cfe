package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bookingRepo "homeserve/database/repository/booking"
	"homeserve/models"
	"homeserve/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errContended = errors.New("booking kept changing under concurrent updates")

// ModifyRequest edits a pending booking. Nil fields are left unchanged.
type ModifyRequest struct {
	Date          *string         `json:"date,omitempty"`
	Time          *string         `json:"time,omitempty"`
	DurationHours *float64        `json:"durationHours,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	Address       *models.Address `json:"address,omitempty"`
	Location      *string         `json:"location,omitempty"`
	Emergency     *bool           `json:"emergency,omitempty"`
}

func newEvent(b models.Booking, kind models.EventKind, previous models.BookingStatus, at time.Time) models.BookingEvent {
	return models.BookingEvent{
		ID:             uuid.New().String(),
		BookingID:      b.ID,
		Kind:           kind,
		PreviousStatus: previous,
		NewStatus:      b.Status,
		CustomerID:     b.CustomerID,
		WorkerID:       b.WorkerID,
		ServiceDate:    b.ServiceDate,
		ServiceTime:    b.ServiceTime,
		OccurredAt:     at,
	}
}

// stamp never lets UpdatedAt move backwards, even if the clock does.
func (s *DefaultBookingService) stamp(prev time.Time) time.Time {
	now := s.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

func mergeNotes(existing, added string) string {
	added = strings.TrimSpace(added)
	switch {
	case added == "":
		return existing
	case existing == "":
		return added
	}
	return existing + "\n" + added
}

// Transition moves a booking to target. A concurrent change is re-read and
// re-validated, so a transition that became illegal reports InvalidTransition.
func (s *DefaultBookingService) Transition(ctx context.Context, bookingID string, target models.BookingStatus, notes string) (*models.Booking, error) {
	logger := s.logger()
	requesterID, err := s.requester(ctx)
	if err != nil {
		return nil, err
	}
	if !KnownStatus(target) {
		return nil, utils.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}

	for attempt := 0; attempt < s.retries(); attempt++ {
		current, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		actor, err := s.authorize(ctx, current, requesterID)
		if err != nil {
			return nil, err
		}
		if !CanTransition(current.Status, target) {
			return nil, utils.NewInvalidTransitionError(string(current.Status), string(target))
		}

		upd := models.StatusUpdate{
			BookingID:      current.ID,
			ExpectedStatus: current.Status,
			NewStatus:      target,
			Notes:          mergeNotes(current.Notes, notes),
			UpdatedAt:      s.stamp(current.UpdatedAt),
		}
		if target == models.StatusCancelled {
			upd.CancelledBy = actor
		}
		next := *current
		next.Status = target
		upd.Event = newEvent(next, models.EventStatusChanged, current.Status, upd.UpdatedAt)
		upd.Event.Notice = noticeFor(*current, target, actor)

		updated, err := s.Store.UpdateBookingStatus(ctx, upd)
		switch {
		case err == nil:
			s.kick()
			logger.Info("booking status changed",
				zap.String("bookingID", updated.ID),
				zap.String("from", string(current.Status)),
				zap.String("to", string(target)),
				zap.String("by", string(actor)))
			return updated, nil
		case errors.Is(err, bookingRepo.ErrStale):
			logger.Debug("status changed concurrently, re-validating",
				zap.String("bookingID", bookingID), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, bookingRepo.ErrNotFound):
			return nil, utils.NewNotFoundError("booking", bookingID)
		default:
			logger.Error("status update failed", zap.String("bookingID", bookingID), zap.Error(err))
			return nil, utils.NewStoreUnavailableError("updateBookingStatus", err)
		}
	}
	return nil, utils.NewStoreUnavailableError("updateBookingStatus", errContended)
}

// Modify edits a booking that is still pending, re-checking availability and
// re-pricing it. Only the customer or an administrator may modify.
func (s *DefaultBookingService) Modify(ctx context.Context, bookingID string, req ModifyRequest) (*models.Booking, error) {
	logger := s.logger()
	requesterID, err := s.requester(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.retries(); attempt++ {
		current, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		actor, err := s.authorize(ctx, current, requesterID)
		if err != nil {
			return nil, err
		}
		if actor == models.PartyWorker {
			return nil, utils.NewForbiddenError("workers cannot modify booking details")
		}
		if current.Status != models.StatusPending {
			return nil, &utils.AppError{
				Code:    utils.CodeInvalidTransition,
				Message: fmt.Sprintf("booking is %s; only pending bookings can be modified", current.Status),
			}
		}

		updated, release, err := s.applyModification(ctx, current, req)
		if err != nil {
			return nil, err
		}
		event := newEvent(*updated, models.EventBookingModified, current.Status, updated.UpdatedAt)
		event.Notice = modifiedNotice.build(*updated, actor)

		err = s.Store.UpdateBookingDetails(ctx, updated, current.Revision, event)
		release()
		var conflict *bookingRepo.ConflictError
		switch {
		case err == nil:
			s.kick()
			logger.Info("booking modified",
				zap.String("bookingID", updated.ID),
				zap.Int("revision", updated.Revision),
				zap.Float64("total", updated.TotalAmount))
			return updated, nil
		case errors.As(err, &conflict):
			return nil, utils.NewSlotUnavailableError(conflict.BookingID)
		case errors.Is(err, bookingRepo.ErrStale):
			continue
		case errors.Is(err, bookingRepo.ErrNotFound):
			return nil, utils.NewNotFoundError("booking", bookingID)
		default:
			logger.Error("booking modify failed", zap.String("bookingID", bookingID), zap.Error(err))
			return nil, utils.NewStoreUnavailableError("updateBookingDetails", err)
		}
	}
	return nil, utils.NewStoreUnavailableError("updateBookingDetails", errContended)
}

// applyModification builds the replacement booking under the worker lease for
// its new date. The caller must release the lease once the write is done.
func (s *DefaultBookingService) applyModification(ctx context.Context, current *models.Booking, req ModifyRequest) (*models.Booking, func(), error) {
	next := *current
	date, clock, hours := current.ServiceDate, current.ServiceTime, current.DurationHours
	if req.Date != nil {
		date = *req.Date
	}
	if req.Time != nil {
		clock = *req.Time
	}
	if req.DurationHours != nil {
		hours = *req.DurationHours
	}
	if req.Location != nil {
		next.Location = strings.TrimSpace(*req.Location)
	}
	if req.Emergency != nil {
		next.Emergency = *req.Emergency
	}
	if req.Address != nil {
		addr := *req.Address
		next.Address = &addr
	}
	if req.Notes != nil {
		next.Notes = strings.TrimSpace(*req.Notes)
	}

	win, err := s.parseWindow(date, clock, hours)
	if err != nil {
		return nil, nil, err
	}
	worker, err := s.loadWorker(ctx, current.WorkerID)
	if err != nil {
		return nil, nil, err
	}

	release, err := s.Locker.Acquire(ctx, lockKey(current.WorkerID, win.date))
	if err != nil {
		return nil, nil, utils.NewStoreUnavailableError("acquireLease", err)
	}
	ok := false
	defer func() {
		if !ok {
			release()
		}
	}()

	avail, err := s.availableFor(ctx, current.WorkerID, win, current.ID)
	if err != nil {
		return nil, nil, err
	}
	if !avail.Available {
		return nil, nil, utils.NewSlotUnavailableError(avail.ConflictingBookingID)
	}

	var plan *models.RecurrencePlan
	if current.Series != nil {
		plan = &current.Series.Plan
	}
	breakdown, err := s.price(worker, current.ServiceID, win, next.Location, next.Emergency, plan)
	if err != nil {
		return nil, nil, err
	}

	next.ServiceDate = win.date
	next.ServiceTime = win.clock
	next.DurationHours = hours
	next.StartMinute = win.start
	next.EndMinute = win.end
	next.Price = breakdown
	next.TotalAmount = breakdown.Total
	next.Revision = current.Revision + 1
	next.UpdatedAt = s.stamp(current.UpdatedAt)
	ok = true
	return &next, release, nil
}
