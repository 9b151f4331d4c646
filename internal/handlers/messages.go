package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/services"
)

// MessageHandler serves mutations of single messages.
type MessageHandler struct {
	messages *services.MessageService
	log      *zap.Logger
}

func NewMessageHandler(messages *services.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

func (h *MessageHandler) Delete(c *gin.Context) {
	msgID, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), currentUser(c), msgID); err != nil {
		respondError(c, h.log, err, "failed to delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	msgID, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.messages.Edit(c.Request.Context(), currentUser(c), msgID, req.Content)
	if err != nil {
		respondError(c, h.log, err, "failed to edit message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type reactRequest struct {
	Type string `json:"type" binding:"required"`
}

func (h *MessageHandler) React(c *gin.Context) {
	msgID, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.messages.React(c.Request.Context(), currentUser(c), msgID, req.Type)
	if err != nil {
		respondError(c, h.log, err, "failed to add reaction")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *MessageHandler) Unreact(c *gin.Context) {
	msgID, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	msg, err := h.messages.Unreact(c.Request.Context(), currentUser(c), msgID)
	if err != nil {
		respondError(c, h.log, err, "failed to remove reaction")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
