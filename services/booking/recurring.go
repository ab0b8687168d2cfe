package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeserve/models"
	"homeserve/services/recurrence"
	"homeserve/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultOngoingPageSize = 12

// RecurringRequest books every occurrence of Plan starting at AnchorDate.
// Ongoing plans are booked a page at a time; pass the returned NextCursor and
// SeriesID back to continue the same series.
type RecurringRequest struct {
	CreateRequest
	AnchorDate string                `json:"anchorDate"`
	Plan       models.RecurrencePlan `json:"plan"`
	SeriesID   string                `json:"seriesId,omitempty"`
	Cursor     int                   `json:"cursor,omitempty"`
	PageSize   int                   `json:"pageSize,omitempty"`
}

// OccurrenceResult is the outcome for one date of a series.
type OccurrenceResult struct {
	Date                 string          `json:"date"`
	Booking              *models.Booking `json:"booking,omitempty"`
	ErrorCode            utils.ErrorCode `json:"errorCode,omitempty"`
	Error                string          `json:"error,omitempty"`
	ConflictingBookingID string          `json:"conflictingBookingId,omitempty"`
}

type RecurringResult struct {
	SeriesID   string             `json:"seriesId"`
	Results    []OccurrenceResult `json:"results"`
	Booked     int                `json:"booked"`
	Failed     int                `json:"failed"`
	NextCursor int                `json:"nextCursor"`
	Done       bool               `json:"done"`
}

// CreateRecurring feeds each occurrence to the single-booking path. One
// failed date never aborts the rest of the page.
func (s *DefaultBookingService) CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error) {
	logger := s.logger()
	requesterID, err := s.requester(ctx)
	if err != nil {
		return nil, err
	}
	if requesterID != req.CustomerID {
		return nil, utils.NewForbiddenError("bookings can only be created for yourself")
	}
	if err := recurrence.Validate(req.Plan); err != nil {
		return nil, err
	}
	anchor, err := time.ParseInLocation(models.DateLayout, req.AnchorDate, s.location())
	if err != nil {
		return nil, utils.NewValidationError("anchorDate", "must be YYYY-MM-DD")
	}

	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = recurrence.MaxPageSize
		if req.Plan.Ongoing {
			pageSize = defaultOngoingPageSize
		}
	}
	page, err := recurrence.PageOf(req.Plan, anchor, req.Cursor, pageSize)
	if err != nil {
		return nil, err
	}

	seriesID := req.SeriesID
	if seriesID == "" {
		seriesID = uuid.New().String()
	}
	series := &models.SeriesRef{SeriesID: seriesID, Plan: req.Plan}

	result := &RecurringResult{
		SeriesID:   seriesID,
		Results:    make([]OccurrenceResult, 0, len(page.Dates)),
		NextCursor: page.NextOffset,
		Done:       page.Done,
	}
	for _, d := range page.Dates {
		occ := req.CreateRequest
		occ.Date = d.Format(models.DateLayout)
		occ.Recurrence = &series.Plan
		if req.IdempotencyKey != "" {
			occ.IdempotencyKey = fmt.Sprintf("%s:%s", req.IdempotencyKey, occ.Date)
		}

		out := OccurrenceResult{Date: occ.Date}
		b, err := s.create(ctx, occ, series)
		if err != nil {
			var ae *utils.AppError
			if errors.As(err, &ae) {
				out.ErrorCode = ae.Code
				out.Error = ae.Message
				out.ConflictingBookingID = ae.BookingID
			} else {
				out.Error = err.Error()
			}
			result.Failed++
		} else {
			out.Booking = b
			result.Booked++
		}
		result.Results = append(result.Results, out)
	}

	logger.Info("recurring booking page processed",
		zap.String("seriesID", seriesID),
		zap.Int("booked", result.Booked),
		zap.Int("failed", result.Failed),
		zap.Int("nextCursor", result.NextCursor),
		zap.Bool("done", result.Done))
	return result, nil
}
