package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/observability"
	"messenger-service/internal/services"
)

// RequestID propagates the caller's X-Request-Id or assigns a fresh one, and
// attaches it to the request context for event correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.ClientMetaFromRequest(c.Request).RequestID
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(observability.HeaderRequestID, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
