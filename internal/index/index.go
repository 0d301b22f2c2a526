// Package index implements the persistent vector index used for corpus
// retrieval and long-term conversation memory.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"codehelp-go/internal/model"
	"codehelp-go/pkg/log"
)

var (
	// ErrMissingCorpus is returned when no index artifact exists and there are no documents to build one.
	ErrMissingCorpus = errors.New("no index artifact and no corpus documents to build one")
	// ErrModelMismatch is returned on reload when the artifact was built with a different embedder.
	ErrModelMismatch = errors.New("index was built with a different embedding model")
)

// VectorIndex stores documents with their embeddings and answers similarity queries.
// Writes are serialized per instance; queries may run concurrently.
type VectorIndex interface {
	// Build replaces the index contents with docs and writes the marker file last.
	Build(ctx context.Context, docs []model.Document) error
	// Reload attaches to an existing artifact without re-embedding.
	Reload(ctx context.Context) error
	// Query returns at most k documents, most similar first. Ties keep insertion order.
	Query(ctx context.Context, text string, k int) ([]model.ScoredDocument, error)
	// Upsert appends docs without rebuilding.
	Upsert(ctx context.Context, docs []model.Document) error
	Len() int
}

// State says whether an index artifact is already present on disk.
type State int

const (
	StateAbsent State = iota
	StateBuilt
)

func (s State) String() string {
	if s == StateBuilt {
		return "built"
	}
	return "absent"
}

// ResolveState inspects dir for the marker file. It never creates or modifies anything.
func ResolveState(dir string) State {
	info, err := os.Stat(filepath.Join(dir, markerFile))
	if err != nil || info.IsDir() {
		return StateAbsent
	}
	return StateBuilt
}

// CorpusLoader produces the documents to build from. It is only called when a build is needed.
type CorpusLoader func() ([]model.Document, error)

// Open reloads the index in dir when its marker exists; otherwise it loads the
// corpus and builds. An artifact built with another embedding model is rebuilt.
// A build with an empty corpus is ErrMissingCorpus.
func Open(ctx context.Context, idx VectorIndex, dir string, load CorpusLoader) (State, error) {
	state := ResolveState(dir)
	if state == StateBuilt {
		log.Infof("[Index] reloading existing index from %s", dir)
		err := idx.Reload(ctx)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, ErrModelMismatch) || load == nil {
			return state, fmt.Errorf("reload index %s: %w", dir, err)
		}
		log.Warnf("[Index] %v, rebuilding", err)
	}

	var docs []model.Document
	if load != nil {
		var err error
		docs, err = load()
		if errors.Is(err, fs.ErrNotExist) {
			return state, fmt.Errorf("%w: %v", ErrMissingCorpus, err)
		}
		if err != nil {
			return state, fmt.Errorf("load corpus: %w", err)
		}
	}
	if len(docs) == 0 {
		return state, ErrMissingCorpus
	}

	log.Infof("[Index] building new index in %s from %d documents", dir, len(docs))
	if err := idx.Build(ctx, docs); err != nil {
		return state, fmt.Errorf("build index %s: %w", dir, err)
	}
	return state, nil
}

// OpenEmpty reloads the index in dir, or builds an empty one when absent.
// Used for the conversation memory index, which starts with no documents.
func OpenEmpty(ctx context.Context, idx VectorIndex, dir string) (State, error) {
	state := ResolveState(dir)
	if state == StateBuilt {
		err := idx.Reload(ctx)
		if !errors.Is(err, ErrModelMismatch) {
			return state, err
		}
		log.Warnf("[Index] %v, starting an empty index", err)
	}
	return state, idx.Build(ctx, nil)
}
