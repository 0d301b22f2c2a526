package service

import (
	"context"
	"fmt"
	"strings"

	"codehelp-go/internal/index"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/log"
)

const (
	DefaultRetrievalK = 8
	snippetLines      = 6
)

// RetrievalService turns similar corpus examples into prompt context.
type RetrievalService interface {
	// GetContext never fails; an unavailable index yields "".
	GetContext(ctx context.Context, query string, k int) string
}

type retrievalService struct {
	index index.VectorIndex
}

// NewRetrievalService creates a RetrievalService over idx. A nil idx always yields "".
func NewRetrievalService(idx index.VectorIndex) RetrievalService {
	return &retrievalService{index: idx}
}

func (s *retrievalService) GetContext(ctx context.Context, query string, k int) string {
	if s.index == nil {
		log.Warnf("[RetrievalService] no index available, continuing without context")
		return ""
	}
	results, err := s.index.Query(ctx, query, k)
	if err != nil {
		log.Warnf("[RetrievalService] retrieval failed: %v", err)
		return ""
	}
	return FormatContext(results)
}

// FormatContext renders results as labeled example blocks separated by a blank line.
func FormatContext(results []model.ScoredDocument) string {
	pieces := make([]string, 0, len(results))
	for _, r := range results {
		source := r.Metadata.Source
		if source == "" {
			source = "unknown"
		}
		pieces = append(pieces, fmt.Sprintf(
			"# From %s dataset\nExample task:\n%s\n\nExample solution:\n%s\n",
			strings.ToUpper(source),
			strings.TrimSpace(r.Content),
			strings.TrimSpace(firstLines(r.Metadata.CanonicalSolution, snippetLines)),
		))
	}
	return strings.TrimSpace(strings.Join(pieces, "\n\n"))
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
