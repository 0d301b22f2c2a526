package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codehelp-go/internal/config"
	"codehelp-go/internal/model"
	"codehelp-go/internal/repository"
	"codehelp-go/pkg/llm"
)

const anagramCode = "def is_anagram(a, b):\n    return sorted(a) == sorted(b)"

type chatFixture struct {
	service   ChatService
	memory    *MemoryManager
	longTerm  *fakeIndex
	knowledge *fakeIndex
	client    *fakeLLM
	sink      *recordingSink
}

// newChatFixture wires the real classifier and gateway to a fake upstream:
// routing calls (user message only) get intent, completion calls get reply.
func newChatFixture(t *testing.T, apiKey, intent string, reply func(llm.Request) (llm.Result, error)) *chatFixture {
	t.Helper()
	f := &chatFixture{
		longTerm:  &fakeIndex{},
		knowledge: &fakeIndex{},
		sink:      &recordingSink{},
	}
	for i := 0; i < 12; i++ {
		f.knowledge.docs = append(f.knowledge.docs, model.Document{
			Content:  fmt.Sprintf("Write a function for task %d", i),
			Metadata: model.Metadata{Source: "mbpp", TaskID: fmt.Sprintf("mbpp_%d", i), CanonicalSolution: "pass"},
		})
	}
	f.client = &fakeLLM{respond: func(req llm.Request) (llm.Result, error) {
		if len(req.Messages) == 1 {
			return llm.Result{Kind: llm.KindOK, Content: intent}, nil
		}
		return reply(req)
	}}

	noWait := func(context.Context, time.Duration) error { return nil }
	classifier := NewIntentService(f.client, config.RouterConfig{}, apiKey).(*intentService)
	classifier.wait = noWait
	gateway := NewCompletionService(f.client, config.LLMConfig{APIKey: apiKey}).(*completionService)
	gateway.wait = noWait

	f.memory = NewMemoryManager(repository.NewMemoryConversationRepository(), f.longTerm, config.MemoryConfig{})
	orchestrator := NewOrchestrator(classifier, NewRetrievalService(f.knowledge), gateway, f.memory, DefaultRetrievalK)
	f.service = NewChatService(orchestrator, f.memory, f.sink)
	return f
}

func TestSubmit_AnagramEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, "key", "generate", okResult(anagramCode))
	task := "write a function to check if two strings are anagrams"

	res, err := f.service.Submit(ctx, "c1", task)
	require.NoError(t, err)
	assert.Equal(t, model.IntentGenerate, res.Intent)
	assert.Equal(t, anagramCode, res.Response)

	calls := f.client.calls()
	require.Len(t, calls, 2, "one routing call, one completion call")
	prompt := calls[1].Messages[1].Content
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "### Output:"))
	blocks := strings.Count(prompt, "# From MBPP dataset")
	assert.Greater(t, blocks, 0)
	assert.LessOrEqual(t, blocks, 8)
	assert.Contains(t, prompt, "### Task:\n"+task)

	shortTerm, err := f.memory.ShortTerm(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, shortTerm, 1)
	assert.Equal(t, task, shortTerm[0].UserText)
	assert.Equal(t, anagramCode, shortTerm[0].BotText)

	require.Equal(t, 1, f.longTerm.Len())
	assert.Equal(t, task, f.longTerm.docs[0].Content)
	assert.Equal(t, anagramCode, f.longTerm.docs[0].Metadata.Response)

	history, err := f.service.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.IntentGenerate, history[0].Intent)

	require.Len(t, f.sink.records, 1)
	assert.Equal(t, "c1", f.sink.records[0].ConversationID)
	assert.Equal(t, "generate", f.sink.records[0].Intent)
}

func TestSubmit_SecondTurnRecallsFirst(t *testing.T) {
	ctx := context.Background()
	n := 0
	f := newChatFixture(t, "key", "generate", func(llm.Request) (llm.Result, error) {
		n++
		return llm.Result{Kind: llm.KindOK, Content: fmt.Sprintf("answer %d", n)}, nil
	})

	_, err := f.service.Submit(ctx, "c1", "reverse a list")
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, "c1", "reverse a string")
	require.NoError(t, err)

	calls := f.client.calls()
	last := calls[len(calls)-1].Messages[1].Content
	assert.Contains(t, last, "### Relevant previous examples:\ninput: reverse a list\noutput: answer 1")
}

func TestSubmit_DuplicateResponse(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, "key", "chat", okResult("X"))

	first, err := f.service.Submit(ctx, "c1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "X", first.Response)

	second, err := f.service.Submit(ctx, "c1", "hi again")
	require.NoError(t, err)
	assert.Equal(t, DuplicateResponseMessage, second.Response)
}

func TestSubmit_WarningsAreResponses(t *testing.T) {
	f := newChatFixture(t, "key", "chat", func(llm.Request) (llm.Result, error) {
		return llm.Result{Kind: llm.KindUpstreamError, ErrorMessage: "quota exceeded"}, nil
	})

	res, err := f.service.Submit(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Upstream API error: quota exceeded", res.Response)

	history, err := f.service.History(context.Background(), DefaultConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubmit_EmptyResponse(t *testing.T) {
	gw := &fakeGateway{response: "   "}
	memory := NewMemoryManager(repository.NewMemoryConversationRepository(), nil, config.MemoryConfig{})
	svc := NewChatService(NewOrchestrator(fakeClassifier{model.IntentChat}, NewRetrievalService(nil), gw, nil, 8), memory, nil)

	res, err := svc.Submit(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, EmptyResponseMessage, res.Response)
}

func TestSubmit_MissingCredential(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, "", "generate", okResult("unused"))

	_, err := f.service.Submit(ctx, "c1", "write code")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Empty(t, f.client.calls())

	history, err := f.service.History(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, f.sink.records)
}

func TestSubmit_ConversationsIndependent(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, "key", "chat", okResult("same"))

	a, err := f.service.Submit(ctx, "a", "hi")
	require.NoError(t, err)
	b, err := f.service.Submit(ctx, "b", "hi")
	require.NoError(t, err)
	assert.Equal(t, "same", a.Response)
	assert.Equal(t, "same", b.Response)
}
