package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codehelp-go/internal/model"
	"codehelp-go/pkg/database"
)

func TestMemoryConversationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConversationRepository()

	turns, err := repo.GetTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	in := []model.ConversationTurn{{UserText: "q", BotText: "a", Intent: model.IntentChat}}
	require.NoError(t, repo.SaveTurns(ctx, "c1", in))
	in[0].UserText = "mutated"

	turns, _ = repo.GetTurns(ctx, "c1")
	require.Len(t, turns, 1)
	assert.Equal(t, "q", turns[0].UserText)

	transcript, _ := repo.GetTranscript(ctx, "c1")
	assert.Empty(t, transcript, "turns and transcript are stored separately")

	other, _ := repo.GetTurns(ctx, "c2")
	assert.Empty(t, other)
}

func TestIndexEntryRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	knowledge := NewIndexEntryRepository(db, "knowledge")
	memory := NewIndexEntryRepository(db, "memory")
	require.NoError(t, knowledge.AutoMigrate())

	require.NoError(t, knowledge.BatchCreate(ctx, []*model.IndexEntry{
		{DocID: "a", Content: "first", Embedding: []float32{1, 0}},
		{DocID: "b", Content: "second", Embedding: []float32{0, 1}},
	}))
	require.NoError(t, memory.BatchCreate(ctx, []*model.IndexEntry{{DocID: "m", Content: "mem"}}))

	entries, err := knowledge.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Content)
	assert.Equal(t, []float32{0, 1}, entries[1].Embedding)

	memEntries, err := memory.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, memEntries, 1)

	require.NoError(t, knowledge.DeleteAll(ctx))
	entries, _ = knowledge.FindAll(ctx)
	assert.Empty(t, entries)
	memEntries, _ = memory.FindAll(ctx)
	assert.Len(t, memEntries, 1)
}
