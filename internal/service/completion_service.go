package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codehelp-go/internal/config"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/llm"
	"codehelp-go/pkg/log"
)

// ErrMissingCredential means no completion API key is configured.
var ErrMissingCredential = errors.New("no llm api key configured (set llm.api_key or OPENROUTER_API_KEY)")

// Warnings returned in place of a model answer.
const (
	WarnTimeout       = "Timeout: the request took too long. Try reducing max_tokens."
	WarnNoChoice      = "No valid response from the model."
	WarnNoOutput      = "The model returned no usable output."
	warnUpstreamFmt   = "Upstream API error: %s"
	warnNetworkFmt    = "Network or API error: %v"
	warnUnexpectedFmt = "Unexpected error: %v"
)

const (
	defaultGenerateSystemPrompt = `You are a professional Python coding assistant specializing in code generation, debugging, and algorithmic problem solving.

Your responses must:
- Be professional, concise, and logically structured.
- Follow clean coding practices (PEP8 compliant).
- Include exactly ONE full function implementation unless otherwise stated.
- Avoid explanations, markdown syntax, or conversational filler.
- Never include system messages, RAG context, or examples in the final code.
- Assume the user has intermediate coding knowledge.

You have expertise in:
- Python algorithms and data structures.
- Mathematics, recursion, and optimization.
- Writing robust, correct, and efficient Python code.
`
	defaultExplainSystemPrompt = `You are a helpful AI coding tutor.
Your goal is to explain code, algorithms, and debugging steps in a clear, concise, and educational manner.

Guidelines:
- Give step-by-step reasoning.
- Be concise but informative.
- Use plain English (no over-technical jargon unless necessary).
- Do not generate new code unless explicitly asked.
`
	defaultChatSystemPrompt = "You are a friendly and knowledgeable AI assistant."
)

// leakedReasoningMarkers are openers that signal chain-of-thought leaking into content.
var leakedReasoningMarkers = []string{"let's think", "let me think", "lets think"}

// CompletionGateway sends one prompt to the completion API and always returns
// displayable text. The only error is ErrMissingCredential.
type CompletionGateway interface {
	Complete(ctx context.Context, prompt string, role model.Intent) (string, error)
}

type completionService struct {
	client        llm.Client
	cfg           config.LLMConfig
	systemPrompts map[model.Intent]string
	wait          func(ctx context.Context, d time.Duration) error
}

// NewCompletionService creates a CompletionGateway backed by client.
func NewCompletionService(client llm.Client, cfg config.LLMConfig) CompletionGateway {
	prompts := map[model.Intent]string{
		model.IntentGenerate: defaultGenerateSystemPrompt,
		model.IntentExplain:  defaultExplainSystemPrompt,
		model.IntentChat:     defaultChatSystemPrompt,
	}
	if cfg.SystemPrompt.Generate != "" {
		prompts[model.IntentGenerate] = cfg.SystemPrompt.Generate
	}
	if cfg.SystemPrompt.Explain != "" {
		prompts[model.IntentExplain] = cfg.SystemPrompt.Explain
	}
	if cfg.SystemPrompt.Chat != "" {
		prompts[model.IntentChat] = cfg.SystemPrompt.Chat
	}
	return &completionService{
		client:        client,
		cfg:           cfg,
		systemPrompts: prompts,
		wait:          sleepContext,
	}
}

func (s *completionService) Complete(ctx context.Context, prompt string, role model.Intent) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", ErrMissingCredential
	}

	if err := s.wait(ctx, s.cfg.PacingDelay); err != nil {
		return fmt.Sprintf(warnUnexpectedFmt, err), nil
	}

	systemPrompt, ok := s.systemPrompts[role]
	if !ok {
		systemPrompt = s.systemPrompts[model.IntentChat]
	}
	temperature := s.cfg.Generation.Temperature
	maxTokens := s.cfg.Generation.MaxTokens

	res, err := s.client.Complete(ctx, llm.Request{
		Model: s.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Params:  &llm.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens},
		Timeout: s.cfg.Timeout,
	})
	if err != nil {
		log.Warnf("[CompletionGateway] completion call failed, role: %s, error: %v", role, err)
		switch {
		case errors.Is(err, llm.ErrTimeout):
			return WarnTimeout, nil
		case errors.Is(err, llm.ErrNetwork):
			return fmt.Sprintf(warnNetworkFmt, err), nil
		default:
			return fmt.Sprintf(warnUnexpectedFmt, err), nil
		}
	}
	return normalizeResult(res), nil
}

// normalizeResult turns a decoded upstream response into the text shown to the user.
func normalizeResult(res llm.Result) string {
	switch res.Kind {
	case llm.KindUpstreamError:
		return fmt.Sprintf(warnUpstreamFmt, res.ErrorMessage)
	case llm.KindEmpty:
		return WarnNoChoice
	}

	content := strings.TrimSpace(res.Content)
	if content == "" {
		content = strings.TrimSpace(res.Reasoning)
	}
	if content == "" {
		return WarnNoOutput
	}
	return trimLeakedReasoning(content)
}

// trimLeakedReasoning keeps only the final paragraph when the first 100
// characters contain a reasoning opener and there is more than one paragraph.
func trimLeakedReasoning(content string) string {
	head := content
	if len(head) > 100 {
		head = head[:100]
	}
	head = strings.ToLower(head)

	leaked := false
	for _, marker := range leakedReasoningMarkers {
		if strings.Contains(head, marker) {
			leaked = true
			break
		}
	}
	if !leaked {
		return content
	}

	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) < 2 {
		return content
	}
	return strings.TrimSpace(paragraphs[len(paragraphs)-1])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
