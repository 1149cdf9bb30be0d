package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/presence"
)

// PresenceHandler exposes presence lookups.
type PresenceHandler struct {
	coordinator *presence.Coordinator
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(coordinator *presence.Coordinator) *PresenceHandler {
	return &PresenceHandler{coordinator: coordinator}
}

// GetStatus returns the current presence of a user.
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	status, lastSeen, err := h.coordinator.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"status":    status,
		"last_seen": lastSeen,
	})
}
