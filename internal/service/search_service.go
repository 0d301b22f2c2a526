package service

import (
	"context"
	"errors"

	"codehelp-go/internal/index"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/log"
)

// ErrIndexUnavailable is returned by SearchService when no knowledge index is loaded.
var ErrIndexUnavailable = errors.New("knowledge index is not available")

// SearchResult is one scored corpus example.
type SearchResult struct {
	Content           string  `json:"content"`
	Source            string  `json:"source"`
	TaskID            string  `json:"task_id"`
	CanonicalSolution string  `json:"canonical_solution"`
	Score             float64 `json:"score"`
}

// SearchService exposes raw knowledge-index queries for inspecting retrieval.
type SearchService interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

type searchService struct {
	index index.VectorIndex
}

// NewSearchService creates a SearchService over idx.
func NewSearchService(idx index.VectorIndex) SearchService {
	return &searchService{index: idx}
}

func (s *searchService) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if s.index == nil {
		return nil, ErrIndexUnavailable
	}
	log.Infof("[SearchService] query: '%s', topK: %d", query, topK)

	hits, err := s.index.Query(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, toSearchResult(h))
	}
	return results, nil
}

func toSearchResult(d model.ScoredDocument) SearchResult {
	return SearchResult{
		Content:           d.Content,
		Source:            d.Metadata.Source,
		TaskID:            d.Metadata.TaskID,
		CanonicalSolution: d.Metadata.CanonicalSolution,
		Score:             d.Score,
	}
}
