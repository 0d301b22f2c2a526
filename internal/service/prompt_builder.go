package service

import (
	"fmt"
	"strings"

	"codehelp-go/internal/model"
)

const (
	generationPreamble = "You are a professional Python coding assistant.\n" +
		"Your task is to generate efficient, correct, and PEP8-compliant Python code.\n\n"

	explanationTemplate = `
You are a friendly and expert Python instructor.
Your goal is to help the user understand code or programming concepts clearly.

# User Query:
%s

# Helpful Context:
%s

# Output Requirements:
- Explain step-by-step using simple, clear English.
- Include short code snippets *only if* they help illustrate the concept.
- Avoid overwhelming detail or repetition.
- Assume the user has intermediate programming knowledge.

### Explanation:
`

	memoryHistoryLines = 10
)

// PromptBuilder assembles the user message for each intent. Output depends only
// on its arguments.
type PromptBuilder struct{}

// Build dispatches on intent. Chat returns the task unchanged.
func (PromptBuilder) Build(intent model.Intent, task, contextText, memoryHistory string) string {
	switch intent {
	case model.IntentGenerate:
		return BuildGenerationPrompt(task, contextText, memoryHistory)
	case model.IntentExplain:
		return BuildExplanationPrompt(task, contextText)
	default:
		return task
	}
}

// BuildGenerationPrompt renders the code-generation prompt. Empty context and
// empty history omit their sections; history keeps only its last 10 lines.
func BuildGenerationPrompt(task, contextText, memoryHistory string) string {
	var b strings.Builder
	b.WriteString(generationPreamble)

	if contextText != "" {
		fmt.Fprintf(&b, "### Context:\n%s\n\n", contextText)
	}

	if memoryHistory != "" {
		lines := strings.Split(strings.TrimSpace(memoryHistory), "\n")
		if len(lines) > memoryHistoryLines {
			lines = lines[len(lines)-memoryHistoryLines:]
		}
		fmt.Fprintf(&b, "### Relevant previous examples:\n%s\n\n", strings.Join(lines, "\n"))
	}

	fmt.Fprintf(&b, "### Task:\n%s\n\n### Output:\n", task)
	return b.String()
}

// BuildExplanationPrompt renders the instructor prompt with task and context verbatim.
func BuildExplanationPrompt(task, contextText string) string {
	return fmt.Sprintf(explanationTemplate, task, contextText)
}
