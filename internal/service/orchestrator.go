package service

import (
	"context"

	"codehelp-go/internal/model"
	"codehelp-go/pkg/log"
)

// node is a state of the request graph.
type node string

const (
	nodeRouter   node = "router"
	nodeGenerate node = "generate"
	nodeExplain  node = "explain"
	nodeChat     node = "chat"
	nodeDone     node = "done"
)

// agentState is the request-scoped state threaded through the graph.
type agentState struct {
	ConversationID string
	Task           string
	Intent         model.Intent
	Response       string
	Path           []string
}

// AgentResult is what one traversal of the graph produced.
type AgentResult struct {
	Intent   model.Intent
	Response string
	// Path lists the visited states, router first and done last.
	Path []string
}

// MemoryRecaller supplies long-term memory history for generation prompts.
type MemoryRecaller interface {
	Recall(ctx context.Context, task string) string
}

// Orchestrator runs router -> {generate, explain, chat} -> done for one task.
type Orchestrator interface {
	Run(ctx context.Context, conversationID, task string) (AgentResult, error)
}

type orchestrator struct {
	classifier IntentClassifier
	retrieval  RetrievalService
	completion CompletionGateway
	recaller   MemoryRecaller
	prompts    PromptBuilder
	retrievalK int
}

// NewOrchestrator wires the graph. recaller may be nil.
func NewOrchestrator(classifier IntentClassifier, retrieval RetrievalService, completion CompletionGateway, recaller MemoryRecaller, retrievalK int) Orchestrator {
	if retrievalK <= 0 {
		retrievalK = DefaultRetrievalK
	}
	return &orchestrator{
		classifier: classifier,
		retrieval:  retrieval,
		completion: completion,
		recaller:   recaller,
		retrievalK: retrievalK,
	}
}

// Run traverses the graph synchronously. The only error is ErrMissingCredential.
func (o *orchestrator) Run(ctx context.Context, conversationID, task string) (AgentResult, error) {
	st := &agentState{ConversationID: conversationID, Task: task}

	for cur := nodeRouter; ; {
		st.Path = append(st.Path, string(cur))
		if cur == nodeDone {
			break
		}
		next, err := o.step(ctx, cur, st)
		if err != nil {
			return AgentResult{Intent: st.Intent, Path: st.Path}, err
		}
		cur = next
	}

	return AgentResult{Intent: st.Intent, Response: st.Response, Path: st.Path}, nil
}

func (o *orchestrator) step(ctx context.Context, cur node, st *agentState) (node, error) {
	switch cur {
	case nodeRouter:
		st.Intent = o.classifier.Classify(ctx, st.Task)
		log.Infow("[Orchestrator] routed", "conversation", st.ConversationID, "intent", st.Intent)
		switch st.Intent {
		case model.IntentGenerate:
			return nodeGenerate, nil
		case model.IntentExplain:
			return nodeExplain, nil
		default:
			st.Intent = model.IntentChat
			return nodeChat, nil
		}

	case nodeGenerate:
		contextText := o.retrieval.GetContext(ctx, st.Task, o.retrievalK)
		history := ""
		if o.recaller != nil {
			history = o.recaller.Recall(ctx, st.Task)
		}
		prompt := o.prompts.Build(model.IntentGenerate, st.Task, contextText, history)
		return o.complete(ctx, st, prompt, model.IntentGenerate)

	case nodeExplain:
		contextText := o.retrieval.GetContext(ctx, st.Task, o.retrievalK)
		prompt := o.prompts.Build(model.IntentExplain, st.Task, contextText, "")
		return o.complete(ctx, st, prompt, model.IntentExplain)

	default:
		prompt := o.prompts.Build(model.IntentChat, st.Task, "", "")
		return o.complete(ctx, st, prompt, model.IntentChat)
	}
}

func (o *orchestrator) complete(ctx context.Context, st *agentState, prompt string, role model.Intent) (node, error) {
	response, err := o.completion.Complete(ctx, prompt, role)
	if err != nil {
		return nodeDone, err
	}
	st.Response = response
	return nodeDone, nil
}
