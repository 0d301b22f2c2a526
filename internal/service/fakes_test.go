package service

import (
	"context"
	"sync"

	"codehelp-go/internal/model"
	"codehelp-go/pkg/llm"
	"codehelp-go/pkg/tasks"
)

// fakeLLM answers every request with respond and remembers what it was sent.
type fakeLLM struct {
	mu       sync.Mutex
	requests []llm.Request
	respond  func(req llm.Request) (llm.Result, error)
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (llm.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeLLM) calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

func okResult(content string) func(llm.Request) (llm.Result, error) {
	return func(llm.Request) (llm.Result, error) {
		return llm.Result{Kind: llm.KindOK, Content: content}, nil
	}
}

// fakeIndex keeps documents in insertion order and returns the first k.
type fakeIndex struct {
	mu       sync.Mutex
	docs     []model.Document
	queryErr error
	queries  []string
}

func (f *fakeIndex) Build(_ context.Context, docs []model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append([]model.Document(nil), docs...)
	return nil
}

func (f *fakeIndex) Reload(context.Context) error { return nil }

func (f *fakeIndex) Query(_ context.Context, text string, k int) ([]model.ScoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if k > len(f.docs) {
		k = len(f.docs)
	}
	out := make([]model.ScoredDocument, 0, k)
	for _, d := range f.docs[:max(k, 0)] {
		out = append(out, model.ScoredDocument{Document: d, Score: 1})
	}
	return out, nil
}

func (f *fakeIndex) Upsert(_ context.Context, docs []model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeIndex) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakeClassifier struct{ intent model.Intent }

func (f fakeClassifier) Classify(context.Context, string) model.Intent { return f.intent }

// fakeGateway records the prompt and role of each call.
type fakeGateway struct {
	response string
	err      error
	prompts  []string
	roles    []model.Intent
}

func (f *fakeGateway) Complete(_ context.Context, prompt string, role model.Intent) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.roles = append(f.roles, role)
	return f.response, f.err
}

type fakeRecaller struct{ history string }

func (f fakeRecaller) Recall(context.Context, string) string { return f.history }

type recordingSink struct {
	mu      sync.Mutex
	records []tasks.TurnRecord
}

func (r *recordingSink) Publish(_ context.Context, record tasks.TurnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}
