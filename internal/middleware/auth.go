package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// TokenVerifier validates a bearer credential.
type TokenVerifier interface {
	Verify(raw string) (auth.Claims, error)
}

// UserLoader resolves the account behind a credential.
type UserLoader interface {
	GetUser(ctx context.Context, userID int64) (models.User, error)
}

// AuthMiddleware validates the Authorization header and stores the caller's id as "userID".
func AuthMiddleware(tokens TokenVerifier, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		raw, ok := auth.ParseBearer(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if _, err := users.GetUser(c.Request.Context(), claims.UserID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Next()
	}
}
