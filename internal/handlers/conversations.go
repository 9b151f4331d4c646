package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/services"
)

// ConversationHandler serves conversations and their message history.
type ConversationHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageService
	reads         *services.ReadTracker
	log           *zap.Logger
}

func NewConversationHandler(conversations *services.ConversationService, messages *services.MessageService, reads *services.ReadTracker, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages, reads: reads, log: log}
}

func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.conversations.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err, "failed to fetch conversations")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	conv, err := h.conversations.Get(c.Request.Context(), currentUser(c), convID)
	if err != nil {
		respondError(c, h.log, err, "failed to fetch conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

type createConversationRequest struct {
	UserIDs     []int64 `json:"userIds" binding:"required"`
	IsGroup     bool    `json:"isGroup"`
	Name        *string `json:"name"`
	GroupAvatar *string `json:"groupAvatar"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, created, err := h.conversations.Create(c.Request.Context(), currentUser(c), services.CreateConversationInput{
		UserIDs:     req.UserIDs,
		IsGroup:     req.IsGroup,
		Name:        req.Name,
		GroupAvatar: req.GroupAvatar,
	})
	if err != nil {
		respondError(c, h.log, err, "failed to create conversation")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"conversation": conv})
}

// Messages pages history backwards from ?before (RFC 3339), tie-broken by ?beforeId.
func (h *ConversationHandler) Messages(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &t
	}
	var cursor *models.HistoryCursor
	if before != nil {
		cursor = &models.HistoryCursor{Before: *before}
	}
	if raw := c.Query("beforeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 || cursor == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid beforeId"})
			return
		}
		cursor.BeforeID = id
	}
	limit := services.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := h.messages.List(c.Request.Context(), currentUser(c), convID, cursor, limit)
	if err != nil {
		respondError(c, h.log, err, "failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type postMessageRequest struct {
	Content     *string            `json:"content"`
	Attachments models.Attachments `json:"attachments"`
	ReplyTo     *int64             `json:"replyTo"`
}

func (h *ConversationHandler) PostMessage(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), currentUser(c), services.SendInput{
		ConversationID: convID,
		Content:        req.Content,
		Attachments:    req.Attachments,
		ReplyToID:      req.ReplyTo,
		Source:         "http",
	})
	if err != nil {
		respondError(c, h.log, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	count, err := h.reads.MarkConversationRead(c.Request.Context(), currentUser(c), convID)
	if err != nil {
		respondError(c, h.log, err, "failed to mark conversation read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

type addParticipantsRequest struct {
	UserIDs []int64 `json:"userIds" binding:"required"`
}

func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	var req addParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.conversations.AddParticipants(c.Request.Context(), currentUser(c), convID, req.UserIDs)
	if err != nil {
		respondError(c, h.log, err, "failed to add participants")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	conv, err := h.conversations.RemoveParticipant(c.Request.Context(), currentUser(c), convID, userID)
	if err != nil {
		respondError(c, h.log, err, "failed to remove participant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

type updateConversationRequest struct {
	Name        *string `json:"name"`
	GroupAvatar *string `json:"groupAvatar"`
}

func (h *ConversationHandler) Update(c *gin.Context) {
	convID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.conversations.Update(c.Request.Context(), currentUser(c), convID, req.Name, req.GroupAvatar)
	if err != nil {
		respondError(c, h.log, err, "failed to update conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}
