package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codehelp-go/internal/config"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/embedding"
)

func TestNewBackend_SQLiteCollections(t *testing.T) {
	ctx := context.Background()
	var cfg config.Config
	cfg.Index.Backend = BackendSQLite
	embedder := embedding.NewHashingClient(64)

	knowledgeDir := t.TempDir()
	knowledge, err := NewBackend(cfg, embedder, CollectionKnowledge, knowledgeDir)
	require.NoError(t, err)
	_, err = Open(ctx, knowledge, knowledgeDir, func() ([]model.Document, error) { return corpusDocs(), nil })
	require.NoError(t, err)
	assert.Equal(t, 3, knowledge.Len())
	assert.Equal(t, StateBuilt, ResolveState(knowledgeDir))

	memoryDir := t.TempDir()
	memory, err := NewBackend(cfg, embedder, CollectionMemory, memoryDir)
	require.NoError(t, err)
	state, err := OpenEmpty(ctx, memory, memoryDir)
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
	assert.Equal(t, 0, memory.Len())
}

func TestNewBackend_Unknown(t *testing.T) {
	var cfg config.Config
	cfg.Index.Backend = "chroma"
	_, err := NewBackend(cfg, embedding.NewHashingClient(8), CollectionKnowledge, t.TempDir())
	assert.ErrorContains(t, err, "unknown index backend")
}
