package intent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/pkg/intent"
)

// fakeCompleter replays canned responses in call order.
type fakeCompleter struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var response string
	if i < len(f.responses) {
		response = f.responses[i]
	}
	return response, err
}

func TestClassifyRelevant(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"RELEVANT"}}
	classifier := intent.NewClassifier(llm, zerolog.Nop())

	label, response := classifier.Classify(context.Background(), "how do I square a board?", nil)

	assert.Equal(t, intent.LabelRelevant, label)
	assert.Empty(t, response)
	assert.Len(t, llm.prompts, 1)
}

func TestClassifyGreeting(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"GREETING", "Hi! What can I do for your shop today?"}}
	classifier := intent.NewClassifier(llm, zerolog.Nop())

	label, response := classifier.Classify(context.Background(), "hey there", nil)

	assert.Equal(t, intent.LabelGreeting, label)
	assert.Equal(t, "Hi! What can I do for your shop today?", response)
	assert.Len(t, llm.prompts, 2)
}

func TestClassifyFollowUpFailureUsesCannedResponse(t *testing.T) {
	// The terminal response must never depend on two LLM calls succeeding.
	llm := &fakeCompleter{
		responses: []string{"GREETING", ""},
		errs:      []error{nil, errors.New("llm unavailable")},
	}
	classifier := intent.NewClassifier(llm, zerolog.Nop())

	label, response := classifier.Classify(context.Background(), "hello", nil)

	assert.Equal(t, intent.LabelGreeting, label)
	assert.Equal(t, "Hello! I'm Jason Bent's woodworking assistant. How can I help you today?", response)
}

func TestClassifyErrorHaltsWithApology(t *testing.T) {
	llm := &fakeCompleter{errs: []error{errors.New("connection refused")}}
	classifier := intent.NewClassifier(llm, zerolog.Nop())

	label, response := classifier.Classify(context.Background(), "how do I cut dovetails?", nil)

	assert.Equal(t, intent.LabelError, label)
	assert.NotEmpty(t, response)
	assert.Len(t, llm.prompts, 1)
}

func TestClassifyLabelDecoding(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     intent.Label
	}{
		{"bare relevant", "RELEVANT", intent.LabelRelevant},
		{"lowercase", "relevant", intent.LabelRelevant},
		{"embedded in prose", "The category is: RELEVANT.", intent.LabelRelevant},
		{"not relevant beats relevant", "NOT RELEVANT", intent.LabelNotRelevant},
		{"underscore variant", "NOT_RELEVANT", intent.LabelNotRelevant},
		{"not relevant in prose", "This one is not relevant to woodworking", intent.LabelNotRelevant},
		{"inappropriate", "INAPPROPRIATE", intent.LabelInappropriate},
		{"greeting", "Greeting!", intent.LabelGreeting},
		{"unknown word", "BANANA", intent.LabelError},
		{"empty", "", intent.LabelError},
		{"taxonomy drift", "Category 8: PHILOSOPHY", intent.LabelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeCompleter{responses: []string{tt.response, "follow-up"}}
			classifier := intent.NewClassifier(llm, zerolog.Nop())

			label, _ := classifier.Classify(context.Background(), "question", nil)
			assert.Equal(t, tt.want, label)
		})
	}
}

func TestClassifyUsesRecentHistory(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"RELEVANT"}}
	classifier := intent.NewClassifier(llm, zerolog.Nop())

	history := []models.ChatTurn{
		{User: "turn one", Assistant: "a1"},
		{User: "turn two", Assistant: "a2"},
		{User: "turn three", Assistant: "a3"},
		{User: "turn four", Assistant: "a4"},
	}
	classifier.Classify(context.Background(), "and the blade?", history)

	require.Len(t, llm.prompts, 1)
	// Only the last 3 turns are shown to the classifier.
	assert.NotContains(t, llm.prompts[0], "turn one")
	assert.Contains(t, llm.prompts[0], "turn two")
	assert.Contains(t, llm.prompts[0], "turn four")
	assert.Contains(t, llm.prompts[0], "and the blade?")
}
