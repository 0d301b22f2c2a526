package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"codehelp-go/internal/model"
)

func TestBuildGenerationPrompt_HistoryKeepsLastTenLines(t *testing.T) {
	var lines []string
	for i := 1; i <= 15; i++ {
		lines = append(lines, fmt.Sprintf("line %02d", i))
	}

	prompt := BuildGenerationPrompt("sum a list", "ctx", strings.Join(lines, "\n"))

	assert.Contains(t, prompt, "### Relevant previous examples:\nline 06\n")
	assert.Contains(t, prompt, "line 15\n\n### Task:")
	for i := 1; i <= 5; i++ {
		assert.NotContains(t, prompt, fmt.Sprintf("line %02d", i))
	}
}

func TestBuildGenerationPrompt_Sections(t *testing.T) {
	full := BuildGenerationPrompt("sum a list", "# From MBPP dataset", "input: a\noutput: b")
	assert.True(t, strings.HasPrefix(full, "You are a professional Python coding assistant.\n"))
	assert.Contains(t, full, "### Context:\n# From MBPP dataset\n\n")
	assert.Contains(t, full, "### Task:\nsum a list\n\n")
	assert.True(t, strings.HasSuffix(full, "### Output:\n"))

	bare := BuildGenerationPrompt("sum a list", "", "")
	assert.NotContains(t, bare, "### Context:")
	assert.NotContains(t, bare, "### Relevant previous examples:")
	assert.True(t, strings.HasSuffix(bare, "### Task:\nsum a list\n\n### Output:\n"))
}

func TestBuildExplanationPrompt(t *testing.T) {
	prompt := BuildExplanationPrompt("what does zip do?", "some context")
	assert.Contains(t, prompt, "# User Query:\nwhat does zip do?\n")
	assert.Contains(t, prompt, "# Helpful Context:\nsome context\n")
	assert.True(t, strings.HasSuffix(prompt, "### Explanation:\n"))
}

func TestPromptBuilder_Build(t *testing.T) {
	var b PromptBuilder
	assert.Equal(t, "hello there", b.Build(model.IntentChat, "hello there", "ignored", "ignored"))
	assert.Equal(t, BuildExplanationPrompt("t", "c"), b.Build(model.IntentExplain, "t", "c", "h"))
	assert.Equal(t, BuildGenerationPrompt("t", "c", "h"), b.Build(model.IntentGenerate, "t", "c", "h"))
	// Same inputs, same output.
	assert.Equal(t, b.Build(model.IntentGenerate, "t", "c", "h"), b.Build(model.IntentGenerate, "t", "c", "h"))
}
