package routes

import (
	"time"

	"homeserve/handlers"
	"homeserve/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterBookingRoutes sets up the endpoints for the booking engine.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	bookingGroup := r.Group("/api/bookings")
	{
		bookingGroup.Use(middleware.JWTAuthMiddleware())
		bookingGroup.POST("", hb.CreateBooking)
		bookingGroup.POST("/quote", hb.QuoteBooking)
		bookingGroup.POST("/recurring", hb.CreateRecurring)
		bookingGroup.GET("/:id", hb.GetBooking)
		bookingGroup.PATCH("/:id", hb.ModifyBooking)
		bookingGroup.POST("/:id/status", hb.TransitionState)
	}
}

// RegisterWorkerRoutes registers worker-facing read endpoints.
func RegisterWorkerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/workers")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.GET("/:id/availability", hb.WorkerAvailability)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.Health)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, requestsPerMin int) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(requestsPerMin))

	RegisterHealthRoute(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterWorkerRoutes(r, hb)
}
