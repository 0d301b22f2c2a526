package service

import (
	"context"
	"fmt"
	"time"

	"codehelp-go/internal/config"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/llm"
	"codehelp-go/pkg/log"
)

const routerTemplate = `You are a routing model for a Python assistant.
Your task is to classify the user's intent into one of the following categories:

1. generate → when the user is asking to WRITE, CREATE, or MODIFY Python code.
2. explain  → when the user is asking to DESCRIBE, ANALYZE, or EXPLAIN code behavior.
3. chat     → when the user is making general conversation, not code related.

Return ONLY one word: generate, explain, or chat.
`

// IntentClassifier labels a task as generate, explain or chat. It never fails:
// any problem with the routing call yields chat.
type IntentClassifier interface {
	Classify(ctx context.Context, task string) model.Intent
}

type intentService struct {
	client llm.Client
	cfg    config.RouterConfig
	apiKey string
	wait   func(ctx context.Context, d time.Duration) error
}

// NewIntentService creates a classifier that makes one routing call per task.
func NewIntentService(client llm.Client, cfg config.RouterConfig, apiKey string) IntentClassifier {
	return &intentService{client: client, cfg: cfg, apiKey: apiKey, wait: sleepContext}
}

// routingPrompt wraps the task in the fixed classification template.
func routingPrompt(task string) string {
	return fmt.Sprintf("%s\n\nUser query: %s\n\nIntent:", routerTemplate, task)
}

func (s *intentService) Classify(ctx context.Context, task string) model.Intent {
	if s.apiKey == "" {
		log.Warnf("[IntentClassifier] no api key, defaulting to chat")
		return model.IntentChat
	}
	if err := s.wait(ctx, s.cfg.PacingDelay); err != nil {
		return model.IntentChat
	}

	temperature := s.cfg.Temperature
	maxTokens := s.cfg.MaxTokens
	res, err := s.client.Complete(ctx, llm.Request{
		Model:    s.cfg.Model,
		Messages: []llm.Message{{Role: "user", Content: routingPrompt(task)}},
		Params:   &llm.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens},
		Timeout:  s.cfg.Timeout,
	})
	if err != nil {
		log.Warnf("[IntentClassifier] routing call failed, falling back to chat: %v", err)
		return model.IntentChat
	}
	if res.Kind != llm.KindOK {
		log.Warnf("[IntentClassifier] routing call returned %s, falling back to chat", res.Kind)
		return model.IntentChat
	}

	intent := model.ParseIntent(res.Content)
	log.Infof("[IntentClassifier] intent detected: %s", intent)
	return intent
}
