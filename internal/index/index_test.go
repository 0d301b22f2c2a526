package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codehelp-go/internal/model"
	"codehelp-go/internal/repository"
	"codehelp-go/pkg/database"
	"codehelp-go/pkg/embedding"
)

type countingEmbedder struct {
	embedding.Client
	mu      sync.Mutex
	batches int
}

func (c *countingEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches++
	c.mu.Unlock()
	return c.Client.CreateEmbeddings(ctx, texts)
}

// constantEmbedder maps every text to the same vector, so every score ties.
type constantEmbedder struct{}

func (constantEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{1, 1}, nil
}

func (constantEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}

func (constantEmbedder) ModelVersion() string { return "constant" }

func newSQLiteIndex(t *testing.T, dir string, embedder embedding.Client) *GormIndex {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	return NewGormIndex(repository.NewIndexEntryRepository(db, "knowledge"), embedder, dir, "knowledge", "sqlite")
}

func corpusDocs() []model.Document {
	return []model.Document{
		{Content: "Write a function to reverse a string", Metadata: model.Metadata{Source: "mbpp", TaskID: "mbpp_1", CanonicalSolution: "def rev(s):\n    return s[::-1]"}},
		{Content: "Check whether a number is prime", Metadata: model.Metadata{Source: "humaneval", TaskID: "HumanEval/2", CanonicalSolution: "def is_prime(n): ..."}},
		{Content: "Sort a list of tuples by the second element", Metadata: model.Metadata{Source: "codeparrot", TaskID: "codeparrot_3", CanonicalSolution: "sorted(xs, key=lambda t: t[1])"}},
	}
}

func TestResolveState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	assert.Equal(t, StateAbsent, ResolveState(dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "ResolveState must not create the directory")

	require.NoError(t, writeManifest(dir, manifest{Backend: "sqlite"}))
	assert.Equal(t, StateBuilt, ResolveState(dir))
	assert.Equal(t, "built", StateBuilt.String())
}

func TestOpen_MissingCorpus(t *testing.T) {
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(64))

	_, err := Open(context.Background(), idx, dir, func() ([]model.Document, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrMissingCorpus)
	assert.Equal(t, StateAbsent, ResolveState(dir))

	_, err = Open(context.Background(), idx, dir, nil)
	assert.ErrorIs(t, err, ErrMissingCorpus)
}

func TestOpen_CorpusFileAbsent(t *testing.T) {
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(64))
	absent := filepath.Join(dir, "absent.csv")

	_, err := Open(context.Background(), idx, dir, func() ([]model.Document, error) {
		_, err := os.Open(absent)
		return nil, err
	})
	assert.ErrorIs(t, err, ErrMissingCorpus)
	assert.ErrorContains(t, err, "absent.csv")
	assert.Equal(t, StateAbsent, ResolveState(dir))
}

func TestOpen_LoaderErrorIsNotMissingCorpus(t *testing.T) {
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(64))

	_, err := Open(context.Background(), idx, dir, func() ([]model.Document, error) {
		return nil, os.ErrPermission
	})
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.NotErrorIs(t, err, ErrMissingCorpus)
}

func TestBuildQueryAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	embedder := &countingEmbedder{Client: embedding.NewHashingClient(256)}

	idx := newSQLiteIndex(t, dir, embedder)
	state, err := Open(ctx, idx, dir, func() ([]model.Document, error) { return corpusDocs(), nil })
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
	assert.Equal(t, StateBuilt, ResolveState(dir))
	assert.Equal(t, 3, idx.Len())

	results, err := idx.Query(ctx, "reverse a string", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mbpp_1", results[0].Metadata.TaskID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	built := embedder.batches
	reloaded := newSQLiteIndex(t, dir, embedder)
	state, err = Open(ctx, reloaded, dir, func() ([]model.Document, error) {
		t.Fatal("corpus must not be loaded on reload")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateBuilt, state)
	assert.Equal(t, built, embedder.batches, "reload must not re-embed")

	again, err := reloaded.Query(ctx, "reverse a string", 2)
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

func TestQuery_EmptyIndexAndZeroK(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(32))
	_, err := OpenEmpty(ctx, idx, dir)
	require.NoError(t, err)
	assert.Equal(t, StateBuilt, ResolveState(dir))

	results, err := idx.Query(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Upsert(ctx, corpusDocs()))
	results, err = idx.Query(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, constantEmbedder{})
	require.NoError(t, idx.Build(ctx, corpusDocs()))

	for i := 0; i < 3; i++ {
		results, err := idx.Query(ctx, "q", 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "mbpp_1", results[0].Metadata.TaskID)
		assert.Equal(t, "HumanEval/2", results[1].Metadata.TaskID)
		assert.Equal(t, "codeparrot_3", results[2].Metadata.TaskID)
	}
}

func TestUpsertAppendsWithoutRebuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(128))
	require.NoError(t, idx.Build(ctx, corpusDocs()[:1]))

	require.NoError(t, idx.Upsert(ctx, []model.Document{{
		Content:  "how do I sort tuples",
		Metadata: model.Metadata{Intent: "explain", Response: "use sorted with a key"},
	}}))
	assert.Equal(t, 2, idx.Len())

	m, err := readManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count)

	results, err := idx.Query(ctx, "sort tuples", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "use sorted with a key", results[0].Metadata.Response)
}

func TestReload_ModelMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, newSQLiteIndex(t, dir, embedding.NewHashingClient(64)).Build(ctx, corpusDocs()))

	err := newSQLiteIndex(t, dir, embedding.NewHashingClient(128)).Reload(ctx)
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestOpen_RebuildsOnModelMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, newSQLiteIndex(t, dir, embedding.NewHashingClient(64)).Build(ctx, corpusDocs()))

	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(128))
	state, err := Open(ctx, idx, dir, func() ([]model.Document, error) { return corpusDocs()[:2], nil })
	require.NoError(t, err)
	assert.Equal(t, StateBuilt, state)
	assert.Equal(t, 2, idx.Len())

	m, err := readManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "hashing-fnv32a-128", m.ModelVersion)
}

func TestConcurrentQueryAndUpsert(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx := newSQLiteIndex(t, dir, embedding.NewHashingClient(64))
	require.NoError(t, idx.Build(ctx, corpusDocs()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := idx.Query(ctx, "prime number", 2)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Upsert(ctx, []model.Document{{Content: "memory turn"}}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 7, idx.Len())
}

func TestTopK(t *testing.T) {
	got := topK([]candidate{{0, 0.5}, {1, 0.9}, {2, 0.5}, {3, 0.1}}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].pos)
	assert.Equal(t, 0, got[1].pos)
	assert.Equal(t, 2, got[2].pos)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, cosine(a, norm(a), b, norm(b)), 1e-9)
	assert.InDelta(t, 1.0, cosine(a, norm(a), a, norm(a)), 1e-9)
	assert.Zero(t, cosine(a, norm(a), []float32{1, 0, 0}, 1))
	assert.Zero(t, cosine([]float32{0, 0}, 0, a, norm(a)))
}
