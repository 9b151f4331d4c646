package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/services"
	"messenger-service/internal/telemetry"
)

// UserHandler serves profiles, search, status and blocking.
type UserHandler struct {
	users *services.UserService
	audit *telemetry.AuditEmitter
	log   *zap.Logger
}

func NewUserHandler(users *services.UserService, audit *telemetry.AuditEmitter, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, audit: audit, log: log}
}

func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), currentUser(c), c.Query("q"))
	if err != nil {
		respondError(c, h.log, err, "failed to search users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type updateProfileRequest struct {
	DisplayName *string        `json:"displayName"`
	Bio         *string        `json:"bio"`
	Status      *models.Status `json:"status"`
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), models.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, h.log, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) Status(c *gin.Context) {
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	status, err := h.users.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, "failed to load status")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *UserHandler) Block(c *gin.Context) {
	target, ok := idParam(c, "userId")
	if !ok {
		return
	}
	userID := currentUser(c)
	if err := h.users.Block(c.Request.Context(), userID, target); err != nil {
		respondError(c, h.log, err, "failed to block user")
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.LevelSecurity, "user blocked", requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"message": "user blocked"})
}

func (h *UserHandler) Unblock(c *gin.Context) {
	target, ok := idParam(c, "userId")
	if !ok {
		return
	}
	if err := h.users.Unblock(c.Request.Context(), currentUser(c), target); err != nil {
		respondError(c, h.log, err, "failed to unblock user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user unblocked"})
}
