package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"codehelp-go/internal/index"
	"codehelp-go/pkg/corpus"
)

func TestIsCorpusError(t *testing.T) {
	assert.True(t, isCorpusError(fmt.Errorf("%w: open data/kb.csv: no such file or directory", index.ErrMissingCorpus)))
	assert.True(t, isCorpusError(fmt.Errorf("load corpus: %w", corpus.ErrDuplicateTaskID)))
	assert.True(t, isCorpusError(fmt.Errorf("load corpus: %w", corpus.ErrMissingColumn)))

	assert.False(t, isCorpusError(fmt.Errorf("build index: %w", errors.New("connection refused"))))
	assert.False(t, isCorpusError(fmt.Errorf("reload index: %w", index.ErrModelMismatch)))
}
