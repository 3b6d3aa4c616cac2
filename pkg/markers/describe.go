package markers

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/sawdust/internal/types"
)

// maxDescriptionWords caps the synthesized action phrase length.
const maxDescriptionWords = 8

// fallbackWords is how much of the raw context window survives when no
// describer is available or the describer fails.
const fallbackWords = 6

const describePrompt = `Given this woodworking video context at %s, create an extremely concise action phrase (max 6-8 words).
Context: %s
Description:`

// Describer synthesizes a short human description of the text surrounding a
// marker. Descriptions are presentation only, never citation truth.
type Describer interface {
	Describe(ctx context.Context, window, timestamp string) (string, error)
}

// LLMDescriber produces the action phrase with a dedicated short LLM call.
type LLMDescriber struct {
	llm types.Completer
}

func NewLLMDescriber(llm types.Completer) *LLMDescriber {
	return &LLMDescriber{llm: llm}
}

func (d *LLMDescriber) Describe(ctx context.Context, window, timestamp string) (string, error) {
	response, err := d.llm.Complete(ctx, fmt.Sprintf(describePrompt, timestamp, window))
	if err != nil {
		return "", fmt.Errorf("description call failed: %w", err)
	}
	return truncateWords(response, maxDescriptionWords), nil
}

// fallbackDescription is the deterministic truncation used when description
// synthesis fails. Description failure must never fail the parse.
func fallbackDescription(window string) string {
	return truncateWords(window, fallbackWords)
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
