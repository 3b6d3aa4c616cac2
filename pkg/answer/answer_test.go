package answer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/pkg/answer"
)

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

func newGenerator(llm *fakeCompleter) *answer.Generator {
	return answer.NewWithConfig(answer.GeneratorConfig{
		Backoff: time.Millisecond,
		Logger:  zerolog.Nop(),
	}, llm)
}

func TestGenerate(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"Use a crosscut sled for repeatable square cuts {timestamp:02:10}."}}
	generator := newGenerator(llm)

	got, err := generator.Generate(context.Background(), "how do I crosscut safely?", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, got, "crosscut sled")
	assert.Len(t, llm.prompts, 1)
}

func TestGeneratePromptIncludesPassagesAndHistory(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"A perfectly fine grounded answer."}}
	generator := newGenerator(llm)

	passages := []models.ScoredPassage{
		{Passage: models.Passage{Title: "Crosscut Sled Build", Text: "the sled rides in the miter slots"}},
	}
	history := []models.ChatTurn{{User: "earlier question", Assistant: "earlier answer"}}

	_, err := generator.Generate(context.Background(), "the question", passages, history)

	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Crosscut Sled Build")
	assert.Contains(t, llm.prompts[0], "the sled rides in the miter slots")
	assert.Contains(t, llm.prompts[0], "earlier question")
	assert.Contains(t, llm.prompts[0], "the question")
}

func TestGenerateRetriesEmptyAnswer(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"", "  ", "A complete answer about jointing boards."}}
	generator := newGenerator(llm)

	got, err := generator.Generate(context.Background(), "q", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "A complete answer about jointing boards.", got)
	assert.Len(t, llm.prompts, 3)
}

func TestGenerateRetriesTruncatedAnswer(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		"The first step in flattening a slab is...",
		"The first step in flattening a slab is to build a router sled.",
	}}
	generator := newGenerator(llm)

	got, err := generator.Generate(context.Background(), "q", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "The first step in flattening a slab is to build a router sled.", got)
}

func TestGenerateTooShortIsTruncated(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"Yes.", "Yes.", "Yes."}}
	generator := newGenerator(llm)

	_, err := generator.Generate(context.Background(), "q", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, answer.ErrTruncatedAnswer)
	assert.Len(t, llm.prompts, 3)
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"", "", ""}}
	generator := newGenerator(llm)

	_, err := generator.Generate(context.Background(), "q", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, answer.ErrEmptyAnswer)
	assert.Len(t, llm.prompts, 3)
}

func TestGenerateGenericFailurePropagates(t *testing.T) {
	boom := errors.New("rate limited")
	llm := &fakeCompleter{errs: []error{boom, boom, boom}}
	generator := newGenerator(llm)

	_, err := generator.Generate(context.Background(), "q", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &fakeCompleter{responses: []string{""}}
	generator := newGenerator(llm)

	_, err := generator.Generate(ctx, "q", nil, nil)
	assert.Error(t, err)
}
