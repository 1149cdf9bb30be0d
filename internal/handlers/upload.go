package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/media"
)

const maxUploadBytes = 25 << 20

// UploadHandler accepts message attachments.
type UploadHandler struct {
	store media.ObjectStore
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(store media.ObjectStore) *UploadHandler {
	return &UploadHandler{store: store}
}

// Upload stores a multipart file and returns the fields the client passes
// along when sending the message.
func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	obj, err := h.store.Save(c.Request.Context(), header.Filename, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_url":  obj.URL,
		"type":      obj.Kind,
		"file_name": header.Filename,
		"file_size": obj.Size,
	})
}
