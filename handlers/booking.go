package handlers

import (
	"net/http"
	"strconv"

	"homeserve/models"
	"homeserve/services/booking"
	"homeserve/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking service over HTTP.
type BookingHandler struct {
	BookingService booking.BookingService
}

func NewBookingHandler(svc booking.BookingService) *BookingHandler {
	return &BookingHandler{BookingService: svc}
}

// CreateBookingHandler handles POST /api/bookings.
func (h *BookingHandler) CreateBookingHandler(c *gin.Context) {
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	b, err := h.BookingService.Create(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("booking created", zap.String("bookingID", b.ID))
	c.JSON(http.StatusCreated, b)
}

// QuoteHandler handles POST /api/bookings/quote.
func (h *BookingHandler) QuoteHandler(c *gin.Context) {
	var req booking.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	quote, err := h.BookingService.Quote(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreateRecurringHandler handles POST /api/bookings/recurring. The response
// is 201 when every date was booked and 207 when some failed.
func (h *BookingHandler) CreateRecurringHandler(c *gin.Context) {
	var req booking.RecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	res, err := h.BookingService.CreateRecurring(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	getLogger(c).Info("recurring booking page",
		zap.String("seriesID", res.SeriesID), zap.Int("booked", res.Booked), zap.Int("failed", res.Failed))
	c.JSON(status, res)
}

// GetBookingHandler handles GET /api/bookings/:id.
func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	b, err := h.BookingService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ModifyBookingHandler handles PATCH /api/bookings/:id.
func (h *BookingHandler) ModifyBookingHandler(c *gin.Context) {
	var req booking.ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	b, err := h.BookingService.Modify(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type transitionInput struct {
	Status models.BookingStatus `json:"status" binding:"required"`
	Notes  string               `json:"notes"`
}

// TransitionHandler handles POST /api/bookings/:id/status.
func (h *BookingHandler) TransitionHandler(c *gin.Context) {
	var input transitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	b, err := h.BookingService.Transition(c.Request.Context(), c.Param("id"), input.Status, input.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("booking transitioned",
		zap.String("bookingID", b.ID), zap.String("status", string(b.Status)))
	c.JSON(http.StatusOK, b)
}

// AvailabilityHandler handles
// GET /api/workers/:id/availability?date=&time=&duration=&exclude=.
func (h *BookingHandler) AvailabilityHandler(c *gin.Context) {
	hours, err := strconv.ParseFloat(c.DefaultQuery("duration", "1"), 64)
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("duration", "must be a number of hours"))
		return
	}
	got, err := h.BookingService.CheckAvailability(c.Request.Context(), booking.AvailabilityQuery{
		WorkerID:         c.Param("id"),
		Date:             c.Query("date"),
		Time:             c.Query("time"),
		DurationHours:    hours,
		ExcludeBookingID: c.Query("exclude"),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// HealthHandler handles GET /health.
func HealthHandler(c *gin.Context) {
	health := utils.GetHealthStatus()
	status := http.StatusOK
	if !health.CheckedAt.IsZero() && !health.Store {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "dependencies": health})
}
