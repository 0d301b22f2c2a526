package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codehelp-go/internal/model"
	"codehelp-go/pkg/embedding"
	"codehelp-go/pkg/es"
	"codehelp-go/pkg/log"
)

// ESIndex stores vectors in an Elasticsearch dense_vector field and queries with knn.
// The marker file in dir still decides build versus reload.
type ESIndex struct {
	mu sync.RWMutex

	client     *es.Client
	embedder   embedding.Client
	dir        string
	indexName  string
	collection string

	created bool
	count   int64
}

func NewESIndex(client *es.Client, embedder embedding.Client, dir, indexName, collection string) *ESIndex {
	return &ESIndex{
		client:     client,
		embedder:   embedder,
		dir:        dir,
		indexName:  indexName,
		collection: collection,
	}
}

func (e *ESIndex) Build(ctx context.Context, docs []model.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := removeManifest(e.dir); err != nil {
		return fmt.Errorf("remove marker: %w", err)
	}
	if err := e.client.DeleteIndex(ctx, e.indexName); err != nil {
		return fmt.Errorf("drop index %s: %w", e.indexName, err)
	}
	e.created = false
	e.count = 0

	if err := e.appendLocked(ctx, docs); err != nil {
		return err
	}

	now := time.Now()
	if err := writeManifest(e.dir, manifest{
		Backend:      "elasticsearch",
		Collection:   e.collection,
		ModelVersion: e.embedder.ModelVersion(),
		Count:        int(e.count),
		BuiltAt:      now,
		UpdatedAt:    now,
	}); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	log.Infof("[Index] built elasticsearch index %s with %d documents", e.indexName, e.count)
	return nil
}

func (e *ESIndex) Reload(ctx context.Context) error {
	m, err := readManifest(e.dir)
	if err != nil {
		return fmt.Errorf("read marker: %w", err)
	}
	if m.ModelVersion != "" && m.ModelVersion != e.embedder.ModelVersion() {
		return fmt.Errorf("%w: built with %s, configured %s", ErrModelMismatch, m.ModelVersion, e.embedder.ModelVersion())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err := e.client.IndexExists(ctx, e.indexName)
	if err != nil {
		return err
	}
	e.created = exists
	e.count = 0
	if exists {
		if e.count, err = e.client.Count(ctx, e.indexName); err != nil {
			return err
		}
	}
	log.Infof("[Index] attached to elasticsearch index %s (%d documents)", e.indexName, e.count)
	return nil
}

func (e *ESIndex) Query(ctx context.Context, text string, k int) ([]model.ScoredDocument, error) {
	if k <= 0 {
		return []model.ScoredDocument{}, nil
	}
	e.mu.RLock()
	empty := !e.created || e.count == 0
	e.mu.RUnlock()
	if empty {
		return []model.ScoredDocument{}, nil
	}

	q, err := e.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if norm(q) == 0 {
		return []model.ScoredDocument{}, nil
	}
	hits, err := e.client.KnnSearch(ctx, e.indexName, q, k)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Source.Seq < hits[j].Source.Seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]model.ScoredDocument, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.ScoredDocument{
			Document: model.Document{
				Content: h.Source.Content,
				Metadata: model.Metadata{
					Source:            h.Source.Source,
					TaskID:            h.Source.TaskID,
					CanonicalSolution: h.Source.CanonicalSolution,
					Intent:            h.Source.Intent,
					Response:          h.Source.Response,
				},
			},
			Score: h.Score,
		})
	}
	return out, nil
}

func (e *ESIndex) Upsert(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.appendLocked(ctx, docs); err != nil {
		return err
	}

	m, err := readManifest(e.dir)
	if err != nil {
		m = manifest{Backend: "elasticsearch", Collection: e.collection, ModelVersion: e.embedder.ModelVersion(), BuiltAt: time.Now()}
	}
	m.Count = int(e.count)
	m.UpdatedAt = time.Now()
	return writeManifest(e.dir, m)
}

func (e *ESIndex) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int(e.count)
}

// appendLocked embeds docs and bulk-indexes them, creating the index on first use.
// Caller holds e.mu.
func (e *ESIndex) appendLocked(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := e.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	if !e.created {
		exists, err := e.client.IndexExists(ctx, e.indexName)
		if err != nil {
			return err
		}
		if !exists {
			if err := e.client.CreateIndex(ctx, e.indexName, len(vectors[0])); err != nil {
				return err
			}
		}
		e.created = true
	}

	version := e.embedder.ModelVersion()
	esDocs := make([]model.EsDocument, 0, len(docs))
	for i, d := range docs {
		// cosine dense_vector fields reject zero-magnitude vectors
		if norm(vectors[i]) == 0 {
			log.Warnf("[ESIndex] skipping document with zero embedding: %.40q", d.Content)
			continue
		}
		esDocs = append(esDocs, model.EsDocument{
			DocID:             uuid.NewString(),
			Seq:               e.count + int64(len(esDocs)),
			Content:           d.Content,
			Source:            d.Metadata.Source,
			TaskID:            d.Metadata.TaskID,
			CanonicalSolution: d.Metadata.CanonicalSolution,
			Intent:            d.Metadata.Intent,
			Response:          d.Metadata.Response,
			Vector:            vectors[i],
			ModelVersion:      version,
		})
	}

	switch len(esDocs) {
	case 0:
		return nil
	case 1:
		if err := e.client.IndexDocument(ctx, e.indexName, esDocs[0]); err != nil {
			return fmt.Errorf("index document: %w", err)
		}
	default:
		if err := e.client.BulkIndex(ctx, e.indexName, esDocs); err != nil {
			return fmt.Errorf("bulk index: %w", err)
		}
	}
	e.count += int64(len(esDocs))
	return nil
}
