// Package service contains the business logic of the coding assistant.
package service

import (
	"context"
	"strings"
	"time"

	"codehelp-go/internal/model"
	"codehelp-go/pkg/log"
	"codehelp-go/pkg/tasks"
)

// EmptyResponseMessage is shown when a turn produced no text at all.
const EmptyResponseMessage = "The model returned an empty response."

// DefaultConversationID is used when the caller does not name a conversation.
const DefaultConversationID = "default"

const auditTimeout = 5 * time.Second

// AuditSink receives a record for every finished turn.
type AuditSink interface {
	Publish(ctx context.Context, record tasks.TurnRecord) error
}

// SubmitResult is the reply to one submitted task.
type SubmitResult struct {
	Response string       `json:"response"`
	Intent   model.Intent `json:"intent"`
}

// ChatService handles user turns end to end.
type ChatService interface {
	// Submit runs one task through the assistant. The only error is ErrMissingCredential.
	Submit(ctx context.Context, conversationID, task string) (SubmitResult, error)
	// History returns the visible transcript, oldest first.
	History(ctx context.Context, conversationID string) ([]model.ConversationTurn, error)
}

type chatService struct {
	orchestrator Orchestrator
	memory       *MemoryManager
	audit        AuditSink
}

// NewChatService creates a ChatService. audit may be nil.
func NewChatService(orchestrator Orchestrator, memory *MemoryManager, audit AuditSink) ChatService {
	return &chatService{
		orchestrator: orchestrator,
		memory:       memory,
		audit:        audit,
	}
}

func (s *chatService) Submit(ctx context.Context, conversationID, task string) (SubmitResult, error) {
	conversationID = normalizeConversationID(conversationID)

	unlock := s.memory.Lock(conversationID)
	defer unlock()

	if err := s.memory.TrimShortTerm(ctx, conversationID); err != nil {
		log.Warnf("[ChatService] short-term trim failed for %s: %v", conversationID, err)
	}

	result, err := s.orchestrator.Run(ctx, conversationID, task)
	if err != nil {
		return SubmitResult{}, err
	}

	response := result.Response
	if strings.TrimSpace(response) == "" {
		response = EmptyResponseMessage
	}
	response = s.memory.GuardDuplicate(ctx, conversationID, response)

	turn := model.ConversationTurn{
		UserText:  task,
		BotText:   response,
		Intent:    result.Intent,
		Timestamp: model.Now(),
	}
	s.memory.Record(ctx, conversationID, turn)
	s.publish(conversationID, turn)

	log.Infow("[ChatService] turn completed", "conversation", conversationID, "intent", result.Intent, "path", strings.Join(result.Path, "->"))
	return SubmitResult{Response: response, Intent: result.Intent}, nil
}

func (s *chatService) History(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return s.memory.Transcript(ctx, normalizeConversationID(conversationID))
}

// publish sends the audit record with its own deadline so a cancelled request
// still gets audited.
func (s *chatService) publish(conversationID string, turn model.ConversationTurn) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	record := tasks.TurnRecord{
		ConversationID: conversationID,
		Timestamp:      time.Time(turn.Timestamp),
		Intent:         string(turn.Intent),
		UserTask:       turn.UserText,
		Response:       turn.BotText,
	}
	if err := s.audit.Publish(ctx, record); err != nil {
		log.Errorf("[ChatService] audit publish failed: %v", err)
	}
}

func normalizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultConversationID
	}
	return id
}
