// Package repository provides the data access layer.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"codehelp-go/internal/model"
)

// ConversationRepository stores two turn lists per conversation: the short-term
// turns fed back to the model, and the transcript shown to the caller.
type ConversationRepository interface {
	GetTurns(ctx context.Context, conversationID string) ([]model.ConversationTurn, error)
	SaveTurns(ctx context.Context, conversationID string, turns []model.ConversationTurn) error
	GetTranscript(ctx context.Context, conversationID string) ([]model.ConversationTurn, error)
	SaveTranscript(ctx context.Context, conversationID string, turns []model.ConversationTurn) error
}

func turnsKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:turns", conversationID)
}

func transcriptKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:transcript", conversationID)
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewConversationRepository creates a Redis-backed ConversationRepository.
// Keys expire ttl after the last write (7 days when ttl <= 0).
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func (r *redisConversationRepository) GetTurns(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return r.get(ctx, turnsKey(conversationID))
}

func (r *redisConversationRepository) SaveTurns(ctx context.Context, conversationID string, turns []model.ConversationTurn) error {
	return r.set(ctx, turnsKey(conversationID), turns)
}

func (r *redisConversationRepository) GetTranscript(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return r.get(ctx, transcriptKey(conversationID))
}

func (r *redisConversationRepository) SaveTranscript(ctx context.Context, conversationID string, turns []model.ConversationTurn) error {
	return r.set(ctx, transcriptKey(conversationID), turns)
}

func (r *redisConversationRepository) get(ctx context.Context, key string) ([]model.ConversationTurn, error) {
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.ConversationTurn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	var turns []model.ConversationTurn
	if err := json.Unmarshal([]byte(jsonData), &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return turns, nil
}

func (r *redisConversationRepository) set(ctx context.Context, key string, turns []model.ConversationTurn) error {
	jsonData, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

type memoryConversationRepository struct {
	mu   sync.RWMutex
	data map[string][]model.ConversationTurn
}

// NewMemoryConversationRepository keeps conversations in process memory.
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{data: make(map[string][]model.ConversationTurn)}
}

func (r *memoryConversationRepository) GetTurns(_ context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return r.get(turnsKey(conversationID)), nil
}

func (r *memoryConversationRepository) SaveTurns(_ context.Context, conversationID string, turns []model.ConversationTurn) error {
	r.set(turnsKey(conversationID), turns)
	return nil
}

func (r *memoryConversationRepository) GetTranscript(_ context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return r.get(transcriptKey(conversationID)), nil
}

func (r *memoryConversationRepository) SaveTranscript(_ context.Context, conversationID string, turns []model.ConversationTurn) error {
	r.set(transcriptKey(conversationID), turns)
	return nil
}

// get and set copy so callers never share the stored backing array.
func (r *memoryConversationRepository) get(key string) []model.ConversationTurn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.ConversationTurn{}, r.data[key]...)
}

func (r *memoryConversationRepository) set(key string, turns []model.ConversationTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = append([]model.ConversationTurn{}, turns...)
}
