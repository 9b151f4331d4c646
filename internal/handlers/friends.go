package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/services"
)

// FriendHandler serves the friend list and friend requests.
type FriendHandler struct {
	friends *services.FriendService
	log     *zap.Logger
}

func NewFriendHandler(friends *services.FriendService, log *zap.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, log: log}
}

func (h *FriendHandler) List(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "failed to fetch friends")
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *FriendHandler) Requests(c *gin.Context) {
	reqs, err := h.friends.ListPending(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "failed to fetch friend requests")
		return
	}
	if reqs == nil {
		reqs = []models.FriendRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

type sendFriendRequestRequest struct {
	UserID  int64   `json:"userId" binding:"required"`
	Message *string `json:"message"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req sendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fr, err := h.friends.SendRequest(c.Request.Context(), currentUser(c), req.UserID, req.Message)
	if err != nil {
		respondError(c, h.log, err, "failed to send friend request")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": fr})
}

type respondFriendRequestRequest struct {
	Status models.FriendRequestStatus `json:"status" binding:"required"`
}

func (h *FriendHandler) Respond(c *gin.Context) {
	reqID, ok := idParam(c, "requestId")
	if !ok {
		return
	}
	var req respondFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fr, err := h.friends.Respond(c.Request.Context(), currentUser(c), reqID, req.Status)
	if err != nil {
		respondError(c, h.log, err, "failed to respond to friend request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": fr})
}

func (h *FriendHandler) Remove(c *gin.Context) {
	friendID, ok := idParam(c, "friendId")
	if !ok {
		return
	}
	if err := h.friends.RemoveFriend(c.Request.Context(), currentUser(c), friendID); err != nil {
		respondError(c, h.log, err, "failed to remove friend")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend removed"})
}
