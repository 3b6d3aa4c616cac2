package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/internal/types"
)

const rewritePrompt = `As a woodworking assistant, rewrite this query to be more specific
and searchable for woodworking content. Add relevant terminology and context while maintaining
the original intent. Only return the rewritten query without any explanations.

Original query: %s

Chat history: %s

Rewritten query:`

// echoPrefix is stripped when the model repeats the prompt's trailing label.
const echoPrefix = "Rewritten query:"

// Rewriter expands a query toward domain terminology for better retrieval
// recall. It is a pure best-effort enhancement: retrieval must still work
// with the unrewritten query, so Rewrite never fails.
type Rewriter struct {
	llm    types.Completer
	logger zerolog.Logger
}

func NewRewriter(llm types.Completer, logger zerolog.Logger) *Rewriter {
	return &Rewriter{llm: llm, logger: logger}
}

// Rewrite returns the expanded query, or the original query unmodified on
// any failure.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []models.ChatTurn) string {
	response, err := r.llm.Complete(ctx, fmt.Sprintf(rewritePrompt, query, formatHistory(history)))
	if err != nil {
		r.logger.Warn().Err(err).Msg("query rewrite failed, using original query")
		return query
	}

	cleaned := strings.TrimSpace(strings.ReplaceAll(response, echoPrefix, ""))
	if cleaned == "" {
		return query
	}

	r.logger.Debug().Str("original", query).Str("rewritten", cleaned).Msg("rewrote query")
	return cleaned
}

func formatHistory(history []models.ChatTurn) string {
	if len(history) == 0 {
		return "[]"
	}
	var parts []string
	for _, turn := range history {
		parts = append(parts, fmt.Sprintf("[%q, %q]", turn.User, turn.Assistant))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
