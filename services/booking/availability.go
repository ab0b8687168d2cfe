package booking

import (
	"context"
	"math"
	"strings"
	"time"

	"homeserve/models"
	"homeserve/utils"

	"go.uber.org/zap"
)

const minutesPerDay = 24 * 60

// AvailabilityQuery asks whether a worker is free for a window.
// ExcludeBookingID ignores one booking, used when a booking is moved.
type AvailabilityQuery struct {
	WorkerID         string
	Date             string
	Time             string
	DurationHours    float64
	ExcludeBookingID string
}

type Availability struct {
	Available            bool   `json:"available"`
	ConflictingBookingID string `json:"conflictingBookingId,omitempty"`
}

// window is a validated booking slot on one calendar day.
type window struct {
	date  string
	clock string
	start int // minutes from midnight
	end   int // exclusive
	at    time.Time
}

// parseWindow validates date, time and duration and rejects windows that
// start in the past or run past midnight.
func (s *DefaultBookingService) parseWindow(date, clock string, hours float64) (window, error) {
	loc := s.location()
	day, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return window{}, utils.NewValidationError("date", "must be YYYY-MM-DD")
	}
	tod, err := time.Parse(models.TimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return window{}, utils.NewValidationError("time", "must be HH:MM")
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return window{}, utils.NewValidationError("durationHours", "must be greater than zero")
	}

	start := tod.Hour()*60 + tod.Minute()
	end := start + int(math.Round(hours*60))
	if end <= start {
		return window{}, utils.NewValidationError("durationHours", "must be at least one minute")
	}
	if end > minutesPerDay {
		return window{}, utils.NewValidationError("durationHours", "booking must end by midnight")
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) {
		return window{}, utils.NewValidationError("date", "must not be in the past")
	}
	at := day.Add(time.Duration(start) * time.Minute)
	if !at.After(now) {
		return window{}, utils.NewValidationError("time", "must be in the future")
	}

	return window{
		date:  day.Format(models.DateLayout),
		clock: tod.Format(models.TimeLayout),
		start: start,
		end:   end,
		at:    at,
	}, nil
}

// CheckAvailability reports whether the worker is free for the window. A
// store failure is an error, never "available".
func (s *DefaultBookingService) CheckAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	if strings.TrimSpace(q.WorkerID) == "" {
		return Availability{}, utils.NewValidationError("workerId", "is required")
	}
	w, err := s.parseWindow(q.Date, q.Time, q.DurationHours)
	if err != nil {
		return Availability{}, err
	}
	return s.availableFor(ctx, q.WorkerID, w, q.ExcludeBookingID)
}

func (s *DefaultBookingService) availableFor(ctx context.Context, workerID string, w window, excludeID string) (Availability, error) {
	bookings, err := s.Store.FindActiveBookingsForWorker(ctx, workerID, w.date)
	if err != nil {
		s.logger().Error("availability read failed",
			zap.String("workerID", workerID), zap.String("date", w.date), zap.Error(err))
		return Availability{}, utils.NewStoreUnavailableError("findActiveBookings", err)
	}
	for _, b := range bookings {
		if b.ID == excludeID || !b.Status.IsActive() {
			continue
		}
		if b.Overlaps(w.start, w.end) {
			return Availability{Available: false, ConflictingBookingID: b.ID}, nil
		}
	}
	return Availability{Available: true}, nil
}
