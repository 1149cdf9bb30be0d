package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// MessageHandler exposes REST fallbacks for clients without a live websocket.
// Mutations still fan out through the hub so connected participants see them.
type MessageHandler struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, conversations repositories.ConversationRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
		hub:           hub,
		audit:         audit,
	}
}

// SendMessage creates a message over HTTP and broadcasts it to the room.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Content  string             `json:"content" binding:"required"`
		Kind     models.MessageKind `json:"type"`
		ReplyTo  *int               `json:"reply_to"`
		FileURL  *string            `json:"file_url"`
		FileName *string            `json:"file_name"`
		FileSize *int64             `json:"file_size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), repositories.CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Kind:           kind,
		ReplyTo:        req.ReplyTo,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	if err := h.conversations.SetLastMessage(c.Request.Context(), conversationID, msg.ID, msg.CreatedAt); err != nil {
		log.Printf("update last message for conversation %d: %v", conversationID, err)
	}
	h.hub.Broadcast(conversationID, models.EventMessageNew, models.NewMessagePayload{Message: msg})

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// DeleteForEveryone tombstones a message for all participants.
func (h *MessageHandler) DeleteForEveryone(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messages.Get(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		}
		return
	}

	if err := h.messages.DeleteForAll(c.Request.Context(), messageID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete for everyone"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		}
		return
	}

	h.hub.Broadcast(msg.ConversationID, models.EventMessageDeleted, models.DeletedPayload{
		MessageID: messageID,
		Scope:     models.DeleteScopeEveryone,
	})
	h.audit.EmitMessageAction(c.Request.Context(), "delete_for_everyone", msg.ConversationID, messageID, userID, requestIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DeleteForMe hides a message from the caller only.
func (h *MessageHandler) DeleteForMe(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.messages.HideForUser(c.Request.Context(), messageID, userID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
