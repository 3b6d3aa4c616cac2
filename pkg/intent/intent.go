package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/internal/types"
)

// Label is the classification outcome gating whether retrieval runs at all.
type Label string

const (
	LabelGreeting      Label = "GREETING"
	LabelRelevant      Label = "RELEVANT"
	LabelInappropriate Label = "INAPPROPRIATE"
	LabelNotRelevant   Label = "NOT RELEVANT"
	LabelError         Label = "ERROR"
)

// historyTurns is how many recent turns are shown to the classifier.
const historyTurns = 3

const apologyResponse = "I'm having trouble processing your request. Could you please try asking about woodworking or home improvement topics?"

// Canned replies used when the follow-up message call fails. Classification
// must never depend on two consecutive LLM calls succeeding.
var fallbackResponses = map[Label]string{
	LabelGreeting:      "Hello! I'm Jason Bent's woodworking assistant. How can I help you today?",
	LabelInappropriate: "I'm sorry, but I can only assist with appropriate woodworking and home improvement related topics.",
	LabelNotRelevant:   "I'm specialized in topics related to woodworking, tools, and home improvement. Could you please ask a question related to these topics?",
}

var followUpPrompts = map[Label]string{
	LabelGreeting:      "Generate a friendly greeting response for a woodworking assistant in response to: %q",
	LabelInappropriate: "Generate a polite response declining to answer the inappropriate query: %q and redirect to woodworking topics",
	LabelNotRelevant:   "Generate a polite response explaining why the query: %q is not relevant to woodworking and redirect to appropriate topics",
}

const classifyPrompt = `Given the following question or message and the chat history, determine if it is:
1. A greeting, send-off, or casual conversation starter like "hey", "hello", "thank you" or "goodbye"
2. Related to woodworking, tools, home improvement, the assistant's capabilities, or the woodworking channel
3. Related to the company, its products, services, or business operations
4. A continuation or follow-up question to the previous conversation
5. Related to violence, harmful activities, or other inappropriate content
6. Completely unrelated to the above topics and not a continuation of the conversation

If it falls under category 1, respond with 'GREETING'.
If it falls under categories 2, 3 or 4, respond with 'RELEVANT'.
If it falls under category 5, respond with 'INAPPROPRIATE'.
If it falls under category 6, respond with 'NOT RELEVANT'.

Chat History:
%s

Current Question: %s

Response (GREETING, RELEVANT, INAPPROPRIATE, or NOT RELEVANT):`

// Classifier labels a user query against the fixed taxonomy.
type Classifier struct {
	llm    types.Completer
	logger zerolog.Logger
}

func NewClassifier(llm types.Completer, logger zerolog.Logger) *Classifier {
	return &Classifier{llm: llm, logger: logger}
}

// Classify returns the intent label for the query plus a user-facing
// response for terminal labels. For LabelRelevant the response is empty and
// the caller proceeds to retrieval. Classify never returns an error: any
// failure of the classification call itself degrades to LabelError with an
// apology, which the caller treats as terminal.
func (c *Classifier) Classify(ctx context.Context, query string, history []models.ChatTurn) (Label, string) {
	prompt := fmt.Sprintf(classifyPrompt, formatHistory(history), query)

	raw, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		c.logger.Error().Err(err).Msg("intent classification failed")
		return LabelError, apologyResponse
	}

	label := parseLabel(raw)
	c.logger.Debug().Str("label", string(label)).Msg("classified query")

	switch label {
	case LabelRelevant:
		return LabelRelevant, ""
	case LabelGreeting, LabelInappropriate, LabelNotRelevant:
		return label, c.followUp(ctx, label, query)
	default:
		return LabelError, apologyResponse
	}
}

// followUp synthesizes a register-specific message for a terminal label,
// falling back to the canned reply when the second call fails.
func (c *Classifier) followUp(ctx context.Context, label Label, query string) string {
	response, err := c.llm.Complete(ctx, fmt.Sprintf(followUpPrompts[label], query))
	if err != nil || strings.TrimSpace(response) == "" {
		if err != nil {
			c.logger.Warn().Err(err).Str("label", string(label)).Msg("follow-up message call failed, using canned response")
		}
		return fallbackResponses[label]
	}
	return strings.TrimSpace(response)
}

// parseLabel decodes the model's free-text label by case-insensitive
// containment. The taxonomy is not assumed closed: anything unrecognized
// decodes to LabelError. NOT RELEVANT must be checked before RELEVANT since
// one contains the other.
func parseLabel(raw string) Label {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "NOT RELEVANT"), strings.Contains(upper, "NOT_RELEVANT"):
		return LabelNotRelevant
	case strings.Contains(upper, "INAPPROPRIATE"):
		return LabelInappropriate
	case strings.Contains(upper, "GREETING"):
		return LabelGreeting
	case strings.Contains(upper, "RELEVANT"):
		return LabelRelevant
	default:
		return LabelError
	}
}

func formatHistory(history []models.ChatTurn) string {
	if len(history) == 0 {
		return "No previous context"
	}
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}

	var b strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&b, "User: %s\n", turn.User)
		if turn.Assistant != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", turn.Assistant)
		}
	}
	return strings.TrimSpace(b.String())
}
