package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"codehelp-go/internal/model"
	"codehelp-go/internal/repository"
	"codehelp-go/pkg/embedding"
	"codehelp-go/pkg/log"
)

// GormIndex keeps entries in a SQL table through gorm and scores them in memory.
type GormIndex struct {
	mu sync.RWMutex

	repo       repository.IndexEntryRepository
	embedder   embedding.Client
	dir        string
	collection string
	backend    string

	entries []*model.IndexEntry
	norms   []float64
}

// NewGormIndex creates an index whose marker lives in dir and whose rows live in repo.
// backend is recorded in the marker ("sqlite" or "mysql").
func NewGormIndex(repo repository.IndexEntryRepository, embedder embedding.Client, dir, collection, backend string) *GormIndex {
	return &GormIndex{
		repo:       repo,
		embedder:   embedder,
		dir:        dir,
		collection: collection,
		backend:    backend,
	}
}

func (g *GormIndex) Build(ctx context.Context, docs []model.Document) error {
	entries, err := g.embedDocuments(ctx, docs)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := removeManifest(g.dir); err != nil {
		return fmt.Errorf("remove marker: %w", err)
	}
	if err := g.repo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate index_entries: %w", err)
	}
	if err := g.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear collection %s: %w", g.collection, err)
	}
	if err := g.repo.BatchCreate(ctx, entries); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}

	g.entries = entries
	g.norms = make([]float64, len(entries))
	for i, e := range entries {
		g.norms[i] = norm(e.Embedding)
	}

	now := time.Now()
	if err := writeManifest(g.dir, manifest{
		Backend:      g.backend,
		Collection:   g.collection,
		ModelVersion: g.embedder.ModelVersion(),
		Count:        len(entries),
		BuiltAt:      now,
		UpdatedAt:    now,
	}); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	log.Infof("[Index] built %s collection with %d entries", g.collection, len(entries))
	return nil
}

func (g *GormIndex) Reload(ctx context.Context) error {
	m, err := readManifest(g.dir)
	if err != nil {
		return fmt.Errorf("read marker: %w", err)
	}
	if m.ModelVersion != "" && m.ModelVersion != g.embedder.ModelVersion() {
		return fmt.Errorf("%w: built with %s, configured %s", ErrModelMismatch, m.ModelVersion, g.embedder.ModelVersion())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.repo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate index_entries: %w", err)
	}
	entries, err := g.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	g.entries = entries
	g.norms = make([]float64, len(entries))
	for i, e := range entries {
		g.norms[i] = norm(e.Embedding)
	}
	log.Infof("[Index] reloaded %s collection with %d entries", g.collection, len(entries))
	return nil
}

func (g *GormIndex) Query(ctx context.Context, text string, k int) ([]model.ScoredDocument, error) {
	if k <= 0 {
		return []model.ScoredDocument{}, nil
	}

	g.mu.RLock()
	entries, norms := g.entries, g.norms
	g.mu.RUnlock()
	if len(entries) == 0 {
		return []model.ScoredDocument{}, nil
	}

	q, err := g.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qNorm := norm(q)

	cands := make([]candidate, len(entries))
	for i, e := range entries {
		cands[i] = candidate{pos: i, score: cosine(q, qNorm, e.Embedding, norms[i])}
	}

	top := topK(cands, k)
	out := make([]model.ScoredDocument, 0, len(top))
	for _, c := range top {
		out = append(out, model.ScoredDocument{Document: entries[c.pos].Document(), Score: c.score})
	}
	return out, nil
}

func (g *GormIndex) Upsert(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	entries, err := g.embedDocuments(ctx, docs)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.repo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate index_entries: %w", err)
	}
	if err := g.repo.BatchCreate(ctx, entries); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}

	// fresh slices so concurrent readers keep a consistent snapshot
	nextEntries := make([]*model.IndexEntry, 0, len(g.entries)+len(entries))
	nextEntries = append(append(nextEntries, g.entries...), entries...)
	nextNorms := make([]float64, 0, len(nextEntries))
	nextNorms = append(nextNorms, g.norms...)
	for _, e := range entries {
		nextNorms = append(nextNorms, norm(e.Embedding))
	}
	g.entries, g.norms = nextEntries, nextNorms

	m, err := readManifest(g.dir)
	if err != nil {
		m = manifest{Backend: g.backend, Collection: g.collection, ModelVersion: g.embedder.ModelVersion(), BuiltAt: time.Now()}
	}
	m.Count = len(g.entries)
	m.UpdatedAt = time.Now()
	if err := writeManifest(g.dir, m); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

func (g *GormIndex) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *GormIndex) embedDocuments(ctx context.Context, docs []model.Document) ([]*model.IndexEntry, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := g.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	entries := make([]*model.IndexEntry, len(docs))
	version := g.embedder.ModelVersion()
	for i, d := range docs {
		entries[i] = &model.IndexEntry{
			DocID:             uuid.NewString(),
			Content:           d.Content,
			Source:            d.Metadata.Source,
			TaskID:            d.Metadata.TaskID,
			CanonicalSolution: d.Metadata.CanonicalSolution,
			Intent:            d.Metadata.Intent,
			Response:          d.Metadata.Response,
			Embedding:         vectors[i],
			ModelVersion:      version,
		}
	}
	return entries, nil
}
