// Package handler contains the HTTP controllers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codehelp-go/internal/service"
	"codehelp-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins
	},
}

// ChatHandler serves chat turns over HTTP and WebSocket.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SubmitRequest is the body of POST /api/v1/chat.
type SubmitRequest struct {
	ConversationID string `json:"conversation_id"`
	Task           string `json:"task"`
}

// Submit handles one chat turn.
func (h *ChatHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "invalid request body", "data": nil})
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "task must not be empty", "data": nil})
		return
	}

	res, err := h.chatService.Submit(c.Request.Context(), req.ConversationID, req.Task)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": res})
}

// wsMessage is a WebSocket frame in either direction.
type wsMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Task           string `json:"task,omitempty"`
	Response       string `json:"response,omitempty"`
	Intent         string `json:"intent,omitempty"`
	Error          string `json:"error,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// Handle serves a WebSocket session. Each incoming frame is either plain task
// text or a JSON {"task": "..."} object; each gets one response frame.
func (h *ChatHandler) Handle(c *gin.Context) {
	conversationID := c.Query("conversation_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("[ChatHandler] websocket upgrade failed", err)
		return
	}
	defer conn.Close()
	log.Infof("[ChatHandler] websocket connected, conversation: %s", conversationID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] websocket read failed: %v", err)
			}
			return
		}

		task := string(message)
		convID := conversationID
		if len(message) > 0 && message[0] == '{' {
			var in wsMessage
			if err := json.Unmarshal(message, &in); err == nil {
				task = in.Task
				if in.ConversationID != "" {
					convID = in.ConversationID
				}
			}
		}
		if strings.TrimSpace(task) == "" {
			writeWS(conn, wsMessage{Type: "error", Error: "task must not be empty"})
			continue
		}

		res, err := h.chatService.Submit(c.Request.Context(), convID, task)
		if err != nil {
			log.Errorf("[ChatHandler] submit failed: %v", err)
			writeWS(conn, wsMessage{Type: "error", Error: serviceErrorMessage(err)})
			return
		}
		writeWS(conn, wsMessage{Type: "response", Response: res.Response, Intent: string(res.Intent)})
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	b, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("[ChatHandler] websocket write failed: %v", err)
	}
}

func serviceErrorMessage(err error) string {
	if errors.Is(err, service.ErrMissingCredential) {
		return "the assistant is not configured: missing llm api key"
	}
	return "the assistant is temporarily unavailable"
}

func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrMissingCredential) {
		status = http.StatusServiceUnavailable
	}
	log.Errorf("[ChatHandler] submit failed: %v", err)
	c.JSON(status, gin.H{"code": status, "message": serviceErrorMessage(err), "data": nil})
}
