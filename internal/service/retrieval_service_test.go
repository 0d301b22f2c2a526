package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"codehelp-go/internal/model"
)

func TestGetContext_Unavailable(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", NewRetrievalService(nil).GetContext(ctx, "q", 8))
	assert.Equal(t, "", NewRetrievalService(&fakeIndex{}).GetContext(ctx, "q", 8))
	assert.Equal(t, "", NewRetrievalService(&fakeIndex{
		docs:     []model.Document{{Content: "x"}},
		queryErr: errors.New("boom"),
	}).GetContext(ctx, "q", 8))
}

func TestGetContext_Formats(t *testing.T) {
	idx := &fakeIndex{docs: []model.Document{
		{Content: " Reverse a string ", Metadata: model.Metadata{Source: "mbpp", CanonicalSolution: "def rev(s):\n    return s[::-1]"}},
		{Content: "Mystery", Metadata: model.Metadata{CanonicalSolution: "1\n2\n3\n4\n5\n6\n7\n8"}},
	}}

	got := NewRetrievalService(idx).GetContext(context.Background(), "reverse", 8)

	want := "# From MBPP dataset\nExample task:\nReverse a string\n\nExample solution:\ndef rev(s):\n    return s[::-1]\n" +
		"\n\n" +
		"# From UNKNOWN dataset\nExample task:\nMystery\n\nExample solution:\n1\n2\n3\n4\n5\n6"
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"reverse"}, idx.queries)
}

func TestGetContext_RespectsK(t *testing.T) {
	idx := &fakeIndex{}
	for i := 0; i < 12; i++ {
		idx.docs = append(idx.docs, model.Document{Content: "task", Metadata: model.Metadata{Source: "mbpp"}})
	}
	got := NewRetrievalService(idx).GetContext(context.Background(), "q", DefaultRetrievalK)
	assert.Equal(t, DefaultRetrievalK, strings.Count(got, "# From MBPP dataset"))
}
