package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"codehelp-go/internal/config"
	"codehelp-go/internal/index"
	"codehelp-go/internal/model"
	"codehelp-go/internal/repository"
	"codehelp-go/pkg/log"
)

// DuplicateResponseMessage replaces a reply identical to the previous one.
const DuplicateResponseMessage = "Please rephrase or ask a different question."

const (
	defaultShortTermTurns  = 4
	defaultTranscriptTurns = 8
	defaultRecallK         = 5
)

// MemoryManager owns per-conversation short-term turns, the caller-facing
// transcript, and the shared long-term memory index.
type MemoryManager struct {
	repo     repository.ConversationRepository
	longTerm index.VectorIndex

	shortTermTurns  int
	transcriptTurns int
	recallK         int

	locks keyedMutex
}

// NewMemoryManager creates a MemoryManager. longTerm may be nil, which disables
// long-term writes and recall.
func NewMemoryManager(repo repository.ConversationRepository, longTerm index.VectorIndex, cfg config.MemoryConfig) *MemoryManager {
	m := &MemoryManager{
		repo:            repo,
		longTerm:        longTerm,
		shortTermTurns:  cfg.ShortTermTurns,
		transcriptTurns: cfg.TranscriptTurns,
		recallK:         cfg.RecallK,
	}
	if m.shortTermTurns <= 0 {
		m.shortTermTurns = defaultShortTermTurns
	}
	if m.transcriptTurns <= 0 {
		m.transcriptTurns = defaultTranscriptTurns
	}
	if m.recallK <= 0 {
		m.recallK = defaultRecallK
	}
	return m
}

// Lock serializes turns of one conversation. Call the returned func to release.
func (m *MemoryManager) Lock(conversationID string) func() {
	return m.locks.lock(conversationID)
}

// ShortTerm returns the stored short-term turns, oldest first.
func (m *MemoryManager) ShortTerm(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return m.repo.GetTurns(ctx, conversationID)
}

// Transcript returns at most the last 8 turns, oldest first.
func (m *MemoryManager) Transcript(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return m.repo.GetTranscript(ctx, conversationID)
}

// TrimShortTerm cuts the short-term turns to the most recent 4 when more are stored.
func (m *MemoryManager) TrimShortTerm(ctx context.Context, conversationID string) error {
	turns, err := m.repo.GetTurns(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(turns) <= m.shortTermTurns {
		return nil
	}
	return m.repo.SaveTurns(ctx, conversationID, turns[len(turns)-m.shortTermTurns:])
}

// GuardDuplicate returns DuplicateResponseMessage when response matches the
// previous turn's reply after trimming, otherwise response unchanged.
func (m *MemoryManager) GuardDuplicate(ctx context.Context, conversationID, response string) string {
	transcript, err := m.repo.GetTranscript(ctx, conversationID)
	if err != nil {
		log.Warnf("[MemoryManager] cannot read transcript for duplicate check: %v", err)
		return response
	}
	if len(transcript) == 0 {
		return response
	}
	if strings.TrimSpace(transcript[len(transcript)-1].BotText) == strings.TrimSpace(response) {
		log.Warnf("[MemoryManager] repeated response detected in conversation %s", conversationID)
		return DuplicateResponseMessage
	}
	return response
}

// Record persists a finished turn. Every write is best-effort: failures are
// logged and never surface to the caller.
func (m *MemoryManager) Record(ctx context.Context, conversationID string, turn model.ConversationTurn) {
	if err := m.appendShortTerm(ctx, conversationID, turn); err != nil {
		log.Errorf("[MemoryManager] short-term memory write failed: %v", err)
	}
	if err := m.appendTranscript(ctx, conversationID, turn); err != nil {
		log.Errorf("[MemoryManager] transcript write failed: %v", err)
	}
	if m.longTerm != nil {
		doc := model.Document{
			Content: turn.UserText,
			Metadata: model.Metadata{
				Intent:   string(turn.Intent),
				Response: turn.BotText,
			},
		}
		if err := m.longTerm.Upsert(ctx, []model.Document{doc}); err != nil {
			log.Errorf("[MemoryManager] long-term memory write failed: %v", err)
		}
	}
}

// Recall renders the turns most similar to task as "input:/output:" lines.
// Returns "" when nothing is stored or the index fails.
func (m *MemoryManager) Recall(ctx context.Context, task string) string {
	if m.longTerm == nil {
		return ""
	}
	results, err := m.longTerm.Query(ctx, task, m.recallK)
	if err != nil {
		log.Warnf("[MemoryManager] long-term recall failed: %v", err)
		return ""
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("input: %s\noutput: %s", r.Content, r.Metadata.Response))
	}
	return strings.Join(lines, "\n")
}

func (m *MemoryManager) appendShortTerm(ctx context.Context, conversationID string, turn model.ConversationTurn) error {
	turns, err := m.repo.GetTurns(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(turns) > m.shortTermTurns {
		turns = turns[len(turns)-m.shortTermTurns:]
	}
	return m.repo.SaveTurns(ctx, conversationID, append(turns, turn))
}

func (m *MemoryManager) appendTranscript(ctx context.Context, conversationID string, turn model.ConversationTurn) error {
	transcript, err := m.repo.GetTranscript(ctx, conversationID)
	if err != nil {
		return err
	}
	transcript = append(transcript, turn)
	if len(transcript) > m.transcriptTurns {
		transcript = transcript[len(transcript)-m.transcriptTurns:]
	}
	return m.repo.SaveTranscript(ctx, conversationID, transcript)
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
