package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
	"messenger-service/internal/services"
)

const requestIDContextKey = "requestID"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(observability.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if userID := c.GetInt64("userID"); userID != 0 {
		return &userID
	}
	return nil
}

// currentUser returns the authenticated caller set by the auth middleware.
func currentUser(c *gin.Context) int64 {
	return c.GetInt64("userID")
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError writes a classified service error, or a 500 for store failures.
func respondError(c *gin.Context, log *zap.Logger, err error, fallback string) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		status := http.StatusBadRequest
		switch svcErr.Kind {
		case services.KindForbidden:
			status = http.StatusForbidden
		case services.KindNotFound:
			status = http.StatusNotFound
		case services.KindConflict:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": svcErr.Msg})
		return
	}
	log.Error(fallback, zap.String("path", c.FullPath()), zap.String("request_id", requestIDFromContext(c)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
