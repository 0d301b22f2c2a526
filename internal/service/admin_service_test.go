package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codehelp-go/internal/index"
	"codehelp-go/internal/model"
)

func TestSearchService(t *testing.T) {
	_, err := NewSearchService(nil).Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	results, err := NewSearchService(knowledgeIndex()).Search(context.Background(), "anagram", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mbpp_1", results[0].TaskID)
	assert.Equal(t, "mbpp", results[0].Source)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestAdminService_Rebuild(t *testing.T) {
	ctx := context.Background()
	knowledge := &fakeIndex{}
	memory := &fakeIndex{docs: []model.Document{{Content: "old turn"}}}
	docs := []model.Document{{Content: "a"}, {Content: "b"}}
	svc := NewAdminService(knowledge, memory, "sqlite", t.TempDir(), func() ([]model.Document, error) { return docs, nil })

	n, err := svc.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st := svc.IndexStatus(ctx)
	assert.Equal(t, "sqlite", st.Backend)
	assert.Equal(t, "absent", st.State, "fake index writes no marker")
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 1, st.MemoryDocuments)
}

func TestAdminService_RebuildFailures(t *testing.T) {
	ctx := context.Background()

	empty := NewAdminService(&fakeIndex{}, nil, "sqlite", t.TempDir(), func() ([]model.Document, error) { return nil, nil })
	_, err := empty.RebuildIndex(ctx)
	assert.ErrorIs(t, err, index.ErrMissingCorpus)

	broken := NewAdminService(&fakeIndex{}, nil, "sqlite", t.TempDir(), func() ([]model.Document, error) { return nil, errors.New("no file") })
	_, err = broken.RebuildIndex(ctx)
	assert.ErrorContains(t, err, "no file")

	_, err = NewAdminService(nil, nil, "sqlite", t.TempDir(), nil).RebuildIndex(ctx)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}
