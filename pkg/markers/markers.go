package markers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
)

// Default marker syntax. The patterns are configuration so a different
// delimiter contract can be swapped in without touching the parser.
const (
	DefaultTimestampPattern = `\{timestamp:([^}]*)\}`
	DefaultTitlePattern     = `\{title:([^}]*)\}`
	DefaultURLPattern       = `\{url:([^}]*)\}`
)

const unknownTitle = "Unknown Video"

// ParserConfig represents the configuration for a marker parser.
type ParserConfig struct {
	TimestampPattern string
	TitlePattern     string
	URLPattern       string
	// ContextWindow is the number of characters taken on each side of a
	// marker for description synthesis.
	ContextWindow int
	// MaxDuration bounds accepted timestamps in seconds; 0 means unbounded.
	MaxDuration int
	Logger      zerolog.Logger
}

// Parser extracts structured citations from a raw answer and strips the
// marker syntax from the user-visible text. Parsing is total: malformed
// markers are dropped one at a time, never failing the whole parse.
type Parser struct {
	config    ParserConfig
	describer Describer

	timestampRe *regexp.Regexp
	titleRe     *regexp.Regexp
	urlRe       *regexp.Regexp
}

// NewWithConfig creates a new Parser. The describer may be nil, in which
// case descriptions fall back to truncated context excerpts.
func NewWithConfig(config ParserConfig, describer Describer) (*Parser, error) {
	if config.TimestampPattern == "" {
		config.TimestampPattern = DefaultTimestampPattern
	}
	if config.TitlePattern == "" {
		config.TitlePattern = DefaultTitlePattern
	}
	if config.URLPattern == "" {
		config.URLPattern = DefaultURLPattern
	}
	if config.ContextWindow == 0 {
		config.ContextWindow = 150
	}

	timestampRe, err := regexp.Compile(config.TimestampPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp pattern: %w", err)
	}
	titleRe, err := regexp.Compile(config.TitlePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid title pattern: %w", err)
	}
	urlRe, err := regexp.Compile(config.URLPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid url pattern: %w", err)
	}

	return &Parser{
		config:      config,
		describer:   describer,
		timestampRe: timestampRe,
		titleRe:     titleRe,
		urlRe:       urlRe,
	}, nil
}

// Parse walks every timestamp marker in order of appearance and returns the
// cleaned display text plus the ordered video links, keyed by the marker's
// zero-based ordinal. Ordinals stay gap-free after invalid markers are
// dropped.
//
// When a marker carries no co-located title/url, the i-th marker is aligned
// with the i-th retrieved passage. This is a known limitation: it is only
// correct while the generator cites sources in the order it received them.
func (p *Parser) Parse(ctx context.Context, raw string, passages []models.ScoredPassage) (string, map[string]models.VideoLink) {
	links := map[string]models.VideoLink{}
	matches := p.timestampRe.FindAllStringSubmatchIndex(raw, -1)

	ordinal := 0
	for i, match := range matches {
		timestamp := raw[match[2]:match[3]]

		normalized, total, err := p.normalizeBounded(timestamp)
		if err != nil {
			p.config.Logger.Warn().Err(err).Msg("dropping invalid timestamp marker")
			continue
		}

		// The segment between this marker and the next holds any
		// co-located title/url markers for this citation.
		segmentEnd := len(raw)
		if i+1 < len(matches) {
			segmentEnd = matches[i+1][0]
		}
		title, url := p.resolveSource(raw[match[1]:segmentEnd], i, passages)

		window := p.contextWindow(raw, match[0])
		description := p.describe(ctx, window, normalized)

		urls := []string{}
		if url != "" {
			urls = append(urls, AppendTimestamp(url, total))
		}

		links[strconv.Itoa(ordinal)] = models.VideoLink{
			URLs:        urls,
			Timestamp:   normalized,
			Description: description,
			VideoTitle:  title,
		}
		ordinal++
	}

	return p.strip(raw), links
}

func (p *Parser) normalizeBounded(timestamp string) (string, int, error) {
	total, err := TotalSeconds(timestamp)
	if err != nil {
		return "", 0, err
	}
	if p.config.MaxDuration > 0 && total > p.config.MaxDuration {
		return "", 0, fmt.Errorf("timestamp %q exceeds maximum duration %ds", timestamp, p.config.MaxDuration)
	}
	normalized, err := Normalize(timestamp)
	if err != nil {
		return "", 0, err
	}
	return normalized, total, nil
}

// resolveSource prefers title/url markers co-located with the timestamp
// marker, falling back to positional correspondence with the retrieved
// passages.
func (p *Parser) resolveSource(segment string, position int, passages []models.ScoredPassage) (string, string) {
	title, url := "", ""
	if m := p.titleRe.FindStringSubmatch(segment); m != nil {
		title = strings.TrimSpace(m[1])
	}
	if m := p.urlRe.FindStringSubmatch(segment); m != nil {
		url = strings.TrimSpace(m[1])
	}

	if position < len(passages) {
		if title == "" {
			title = passages[position].Title
		}
		if url == "" {
			url = passages[position].URL
		}
	}
	if title == "" {
		title = unknownTitle
	}
	return title, url
}

// contextWindow extracts a fixed-size text window around a marker offset,
// used only for description synthesis.
func (p *Parser) contextWindow(raw string, offset int) string {
	start := offset - p.config.ContextWindow
	if start < 0 {
		start = 0
	}
	end := offset + p.config.ContextWindow
	if end > len(raw) {
		end = len(raw)
	}
	return strings.TrimSpace(p.strip(raw[start:end]))
}

func (p *Parser) describe(ctx context.Context, window, timestamp string) string {
	if p.describer == nil {
		return fallbackDescription(window)
	}
	description, err := p.describer.Describe(ctx, window, timestamp)
	if err != nil || strings.TrimSpace(description) == "" {
		if err != nil {
			p.config.Logger.Warn().Err(err).Msg("description synthesis failed, using excerpt")
		}
		return fallbackDescription(window)
	}
	return strings.TrimSpace(description)
}

var (
	spaceRunRe      = regexp.MustCompile(`[ \t]{2,}`)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankLineRunRe  = regexp.MustCompile(`\n{3,}`)
	danglingRe      = regexp.MustCompile(` +([.,;!?])`)
)

// strip removes every recognized marker pattern and collapses the
// whitespace runs left behind.
func (p *Parser) strip(text string) string {
	text = p.timestampRe.ReplaceAllString(text, "")
	text = p.titleRe.ReplaceAllString(text, "")
	text = p.urlRe.ReplaceAllString(text, "")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = blankLineRunRe.ReplaceAllString(text, "\n\n")
	text = danglingRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
