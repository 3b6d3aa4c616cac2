package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/internal/types"
)

// Retryable failure kinds, distinct from generic completion errors. The
// retry policy checks these explicitly instead of matching on error type.
var (
	ErrEmptyAnswer     = errors.New("empty answer")
	ErrTruncatedAnswer = errors.New("truncated answer")
)

// DefaultSystemPrompt is the persona and citation contract sent with every
// generation request. The prompt is configuration, not algorithm.
const DefaultSystemPrompt = `You are an assistant expert representing Jason Bent on woodworking topics.
Always respond in English, regardless of the language of the question or context.
Answer only from the provided transcript context. For each grounded claim that has a
traceable source, emit an inline marker {timestamp:MM:SS} at the point of the claim.
You may add {title:...} and {url:...} markers directly after a timestamp marker when
the source metadata is known. Never invent markers for claims without a matching
passage, and never place raw URLs in the answer text.
If the question cannot be answered from the given context, state this clearly.
When a timestamp may be imprecise, use language like "around" or "approximately".`

// GeneratorConfig represents the configuration for an answer generator.
type GeneratorConfig struct {
	SystemPrompt string
	MaxAttempts  int
	Backoff      time.Duration
	// MinLength is the shortest answer not considered truncated.
	MinLength int
	Logger    zerolog.Logger
}

// Generator produces the raw, marker-bearing answer text. Marker stripping
// happens downstream, never here.
type Generator struct {
	config GeneratorConfig
	llm    types.Completer
}

func NewWithConfig(config GeneratorConfig, llm types.Completer) *Generator {
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == 0 {
		config.Backoff = 500 * time.Millisecond
	}
	if config.MinLength == 0 {
		config.MinLength = 20
	}

	return &Generator{
		config: config,
		llm:    llm,
	}
}

// Generate assembles one prompt from the persona instructions, the retrieved
// passages, the chat history and the question, then calls the LLM under a
// bounded retry. Empty and suspiciously truncated answers are retried; after
// the attempt budget the last failure propagates.
func (g *Generator) Generate(ctx context.Context, question string, passages []models.ScoredPassage, history []models.ChatTurn) (string, error) {
	prompt := g.buildPrompt(question, passages, history)

	var lastErr error
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.config.Backoff):
			}
		}

		raw, err := g.llm.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			g.config.Logger.Warn().Err(err).Int("attempt", attempt).Msg("answer generation failed")
			continue
		}

		if err := g.checkAnswer(raw); err != nil {
			lastErr = err
			g.config.Logger.Warn().Err(err).Int("attempt", attempt).Msg("retrying generation")
			continue
		}

		return raw, nil
	}

	return "", fmt.Errorf("answer generation exhausted %d attempts: %w", g.config.MaxAttempts, lastErr)
}

// checkAnswer flags the retryable failure kinds: a missing answer and an
// answer that looks cut off mid-generation.
func (g *Generator) checkAnswer(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrEmptyAnswer
	}
	if len(trimmed) < g.config.MinLength ||
		strings.HasSuffix(trimmed, "...") || strings.HasSuffix(trimmed, "…") {
		return ErrTruncatedAnswer
	}
	return nil
}

func (g *Generator) buildPrompt(question string, passages []models.ScoredPassage, history []models.ChatTurn) string {
	var context strings.Builder
	for _, passage := range passages {
		fmt.Fprintf(&context, "Source: %s\n%s\n\n", passage.Title, passage.Text)
	}

	var turns strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&turns, "User: %s\nAssistant: %s\n", turn.User, turn.Assistant)
	}

	return fmt.Sprintf("%s\n\nContext: %s\n\nChat History: %s\n\nQuestion: %s",
		g.config.SystemPrompt, context.String(), turns.String(), question)
}
