package handlers

import (
	"homeserve/services/booking"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the endpoint handlers the router mounts.
type HandlerBundle struct {
	// Booking endpoints
	CreateBooking   gin.HandlerFunc
	QuoteBooking    gin.HandlerFunc
	CreateRecurring gin.HandlerFunc
	GetBooking      gin.HandlerFunc
	ModifyBooking   gin.HandlerFunc
	TransitionState gin.HandlerFunc

	// Worker endpoints
	WorkerAvailability gin.HandlerFunc

	Health gin.HandlerFunc
}

// NewHandlerBundle wires every handler to the booking service.
func NewHandlerBundle(svc booking.BookingService) *HandlerBundle {
	bh := NewBookingHandler(svc)
	return &HandlerBundle{
		CreateBooking:      bh.CreateBookingHandler,
		QuoteBooking:       bh.QuoteHandler,
		CreateRecurring:    bh.CreateRecurringHandler,
		GetBooking:         bh.GetBookingHandler,
		ModifyBooking:      bh.ModifyBookingHandler,
		TransitionState:    bh.TransitionHandler,
		WorkerAvailability: bh.AvailabilityHandler,
		Health:             HealthHandler,
	}
}
