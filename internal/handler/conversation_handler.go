package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codehelp-go/internal/service"
	"codehelp-go/pkg/log"
)

// ConversationHandler serves conversation transcripts.
type ConversationHandler struct {
	service service.ChatService
}

// NewConversationHandler creates a ConversationHandler.
func NewConversationHandler(service service.ChatService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversation returns the last turns of ?conversation_id=, oldest first.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Query("conversation_id"))
	if err != nil {
		log.Errorf("[ConversationHandler] load history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve conversation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    history,
	})
}
