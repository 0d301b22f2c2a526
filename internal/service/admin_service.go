package service

import (
	"context"
	"fmt"

	"codehelp-go/internal/index"
	"codehelp-go/pkg/log"
)

// IndexStatus describes the loaded indexes.
type IndexStatus struct {
	Backend         string `json:"backend"`
	State           string `json:"state"`
	Documents       int    `json:"documents"`
	MemoryDocuments int    `json:"memory_documents"`
}

// AdminService performs maintenance on the knowledge index.
type AdminService interface {
	IndexStatus(ctx context.Context) IndexStatus
	// RebuildIndex re-embeds the corpus into the knowledge index and returns
	// the number of documents indexed.
	RebuildIndex(ctx context.Context) (int, error)
}

type adminService struct {
	knowledge index.VectorIndex
	memory    index.VectorIndex
	backend   string
	dir       string
	load      index.CorpusLoader
}

// NewAdminService creates an AdminService. memory may be nil.
func NewAdminService(knowledge, memory index.VectorIndex, backend, dir string, load index.CorpusLoader) AdminService {
	return &adminService{knowledge: knowledge, memory: memory, backend: backend, dir: dir, load: load}
}

func (s *adminService) IndexStatus(ctx context.Context) IndexStatus {
	st := IndexStatus{Backend: s.backend, State: index.ResolveState(s.dir).String()}
	if s.knowledge != nil {
		st.Documents = s.knowledge.Len()
	}
	if s.memory != nil {
		st.MemoryDocuments = s.memory.Len()
	}
	return st
}

func (s *adminService) RebuildIndex(ctx context.Context) (int, error) {
	if s.knowledge == nil {
		return 0, ErrIndexUnavailable
	}
	docs, err := s.load()
	if err != nil {
		return 0, fmt.Errorf("load corpus: %w", err)
	}
	if len(docs) == 0 {
		return 0, index.ErrMissingCorpus
	}
	log.Infof("[AdminService] rebuilding %s index from %d documents", s.backend, len(docs))
	if err := s.knowledge.Build(ctx, docs); err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	return len(docs), nil
}
