package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/pkg/intent"
)

// Fixed user-facing messages for the non-answer outcomes. Every failure
// mode still yields a well-formed envelope.
const (
	InvalidQuestionMessage = "I'm sorry, but I didn't receive a valid question. Could you please ask a complete question?"
	TimeoutMessage         = "I apologize, but the request took too long to process. Please try asking a shorter or simpler question."
	FailureMessage         = "An error occurred. Please try again with a simpler question."
)

// Stage interfaces, satisfied by pkg/intent, pkg/rewrite, pkg/search,
// pkg/answer, pkg/markers and pkg/products.

type Classifier interface {
	Classify(ctx context.Context, query string, history []models.ChatTurn) (intent.Label, string)
}

type Rewriter interface {
	Rewrite(ctx context.Context, query string, history []models.ChatTurn) string
}

type Searcher interface {
	Search(ctx context.Context, queryText string, partitions []string, topK int) ([]models.ScoredPassage, error)
}

type Generator interface {
	Generate(ctx context.Context, question string, passages []models.ScoredPassage, history []models.ChatTurn) (string, error)
}

type Parser interface {
	Parse(ctx context.Context, raw string, passages []models.ScoredPassage) (string, map[string]models.VideoLink)
}

type Matcher interface {
	Match(ctx context.Context, titles []string) []models.Product
}

// PipelineConfig represents the configuration for a pipeline.
type PipelineConfig struct {
	// Timeout is the overall wall-clock budget for one invocation.
	Timeout time.Duration
	TopK    int
	// Partitions are the corpus partitions searched when the caller does
	// not select one.
	Partitions []string
	Logger     zerolog.Logger
}

// Pipeline sequences classification, rewriting, retrieval, generation and
// post-processing under one deadline, producing a single response envelope.
// Invocations are independent and share no mutable state.
type Pipeline struct {
	config     PipelineConfig
	classifier Classifier
	rewriter   Rewriter
	searcher   Searcher
	generator  Generator
	parser     Parser
	matcher    Matcher
}

func NewWithConfig(config PipelineConfig, classifier Classifier, rewriter Rewriter, searcher Searcher, generator Generator, parser Parser, matcher Matcher) *Pipeline {
	if config.Timeout == 0 {
		config.Timeout = 9 * time.Second
	}
	if config.TopK == 0 {
		config.TopK = 5
	}

	return &Pipeline{
		config:     config,
		classifier: classifier,
		rewriter:   rewriter,
		searcher:   searcher,
		generator:  generator,
		parser:     parser,
		matcher:    matcher,
	}
}

// Answer runs the full pipeline for one query. The body executes on a
// worker goroutine while the caller waits with a deadline; on expiry the
// timeout envelope is returned and the worker's eventual result is
// discarded, never merged. This is the single boundary allowed to swallow
// an arbitrary failure.
func (p *Pipeline) Answer(ctx context.Context, query string, history []string, partition string) models.Envelope {
	query = strings.TrimSpace(query)
	if !validQuery(query) {
		return models.NewEnvelope(InvalidQuestionMessage)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	results := make(chan models.Envelope, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.config.Logger.Error().Interface("panic", r).Msg("pipeline worker panicked")
				results <- models.NewEnvelope(FailureMessage)
			}
		}()

		envelope, err := p.run(ctx, query, models.PairHistory(history), partition)
		if err != nil {
			p.config.Logger.Error().Err(err).Msg("pipeline failed")
			envelope = models.NewEnvelope(FailureMessage)
		}
		results <- envelope
	}()

	select {
	case envelope := <-results:
		return envelope
	case <-ctx.Done():
		p.config.Logger.Warn().Dur("timeout", p.config.Timeout).Msg("pipeline deadline exceeded")
		return models.NewEnvelope(TimeoutMessage)
	}
}

func (p *Pipeline) run(ctx context.Context, query string, history []models.ChatTurn, partition string) (models.Envelope, error) {
	started := time.Now()

	label, direct := p.classifier.Classify(ctx, query, history)
	if label != intent.LabelRelevant {
		p.config.Logger.Info().Str("label", string(label)).Msg("query short-circuited before retrieval")
		return models.NewEnvelope(direct), nil
	}

	rewritten := p.rewriter.Rewrite(ctx, query, history)

	passages, err := p.searcher.Search(ctx, rewritten, p.partitions(partition), p.config.TopK)
	if err != nil {
		return models.Envelope{}, err
	}

	// Generation proceeds even with zero hits; the model is instructed to
	// say when the context cannot answer the question.
	raw, err := p.generator.Generate(ctx, rewritten, passages, history)
	if err != nil {
		return models.Envelope{}, err
	}

	display, videoLinks := p.parser.Parse(ctx, raw, passages)

	titles := make([]string, 0, len(passages))
	urls := make([]string, 0, len(passages))
	contexts := make([]string, 0, len(passages))
	for _, passage := range passages {
		titles = append(titles, passage.Title)
		urls = append(urls, passage.URL)
		contexts = append(contexts, passage.Text)
	}

	related := p.matcher.Match(ctx, citedTitles(videoLinks))

	p.config.Logger.Info().
		Int("passages", len(passages)).
		Int("video_links", len(videoLinks)).
		Int("products", len(related)).
		Dur("elapsed", time.Since(started)).
		Msg("answered query")

	return models.Envelope{
		Response:        display,
		VideoLinks:      videoLinks,
		RelatedProducts: related,
		RawResponse:     raw,
		URLs:            urls,
		Contexts:        contexts,
		VideoTitles:     titles,
	}, nil
}

func (p *Pipeline) partitions(selected string) []string {
	for _, partition := range p.config.Partitions {
		if partition == selected {
			return []string{selected}
		}
	}
	return p.config.Partitions
}

// citedTitles collects the video titles actually cited in the answer, in
// ordinal order.
func citedTitles(links map[string]models.VideoLink) []string {
	titles := make([]string, 0, len(links))
	for i := 0; i < len(links); i++ {
		if link, ok := links[strconv.Itoa(i)]; ok {
			titles = append(titles, link.VideoTitle)
		}
	}
	return titles
}

// validQuery rejects empty and single-punctuation queries before any
// external call is made.
func validQuery(query string) bool {
	if query == "" {
		return false
	}
	switch query {
	case ".", ",", "?", "!":
		return false
	}
	return true
}
