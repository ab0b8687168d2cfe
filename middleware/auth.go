package middleware

import (
	"net/http"
	"strings"

	"homeserve/services/booking"
	"homeserve/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWTAuthMiddleware verifies the bearer token and places the requester and
// any admin capability on the request context for the booking service.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := utils.ExtractClaims(tokenString)
		if err != nil {
			zap.L().Debug("rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		ctx := booking.WithRequester(c.Request.Context(), claims.Subject)
		for _, capability := range claims.Capabilities {
			if capability == utils.CapabilityAdmin {
				ctx = booking.WithAdminCapability(ctx)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set("requesterID", claims.Subject)
		c.Next()
	}
}
