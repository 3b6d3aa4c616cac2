package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/internal/types"
	"github.com/xhad/sawdust/pkg/processor"
	"golang.org/x/time/rate"
)

// IngestorConfig represents the configuration for a transcript ingestor.
type IngestorConfig struct {
	// RateLimit caps embedding calls per second during ingestion.
	RateLimit float64
	BatchSize int
	// OnProgress is called after each chunk is embedded.
	OnProgress func(chunkID string)
	Logger     zerolog.Logger
}

// Ingestor turns a transcript into embedded passages and upserts them into
// one corpus partition, keyed by chunk id.
type Ingestor struct {
	config    IngestorConfig
	processor processor.Processor
	embedder  types.Embedder
	store     types.PassageStore
	limiter   *rate.Limiter
}

func NewWithConfig(config IngestorConfig, proc processor.Processor, embedder types.Embedder, store types.PassageStore) *Ingestor {
	if config.RateLimit == 0 {
		config.RateLimit = 5.0
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	return &Ingestor{
		config:    config,
		processor: proc,
		embedder:  embedder,
		store:     store,
		limiter:   rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// IngestTranscript chunks, embeds and stores one transcript. The title may
// be empty, in which case it is taken from the first transcript line.
// Returns the number of stored chunks.
func (in *Ingestor) IngestTranscript(ctx context.Context, partition, title, url, text string) (int, error) {
	if title == "" {
		title = processor.Title(text)
	}

	chunks := in.processor.Chunk(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("transcript %q produced no chunks", title)
	}

	passages := make([]models.Passage, 0, len(chunks))
	for i, chunk := range chunks {
		if err := in.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter interrupted: %w", err)
		}

		vector, err := in.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d of %q: %w", i, title, err)
		}

		chunkID := fmt.Sprintf("%s_chunk_%d", title, i)
		passages = append(passages, models.Passage{
			ID:      uuid.NewString(),
			ChunkID: chunkID,
			Text:    chunk,
			Title:   title,
			URL:     url,
			Vector:  vector,
		})

		if in.config.OnProgress != nil {
			in.config.OnProgress(chunkID)
		}
	}

	for start := 0; start < len(passages); start += in.config.BatchSize {
		end := start + in.config.BatchSize
		if end > len(passages) {
			end = len(passages)
		}
		if err := in.store.Upsert(ctx, partition, passages[start:end]); err != nil {
			return 0, fmt.Errorf("failed to store batch: %w", err)
		}
	}

	in.config.Logger.Info().
		Str("title", title).
		Str("partition", partition).
		Int("chunks", len(passages)).
		Msg("ingested transcript")

	return len(passages), nil
}
