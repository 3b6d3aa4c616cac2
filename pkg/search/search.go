package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/internal/types"
)

// Retrieval strategies. StrategyStore delegates ranking to the store's
// vector operator; StrategyCosine fetches candidates and scores in-process.
const (
	StrategyStore  = "store"
	StrategyCosine = "cosine"
)

// SearcherConfig represents the configuration for a similarity searcher.
type SearcherConfig struct {
	Strategy string
	TopK     int
	Logger   zerolog.Logger
}

// Searcher embeds a query and returns the most similar passages across one
// or more corpus partitions.
type Searcher struct {
	config   SearcherConfig
	embedder types.Embedder
	store    types.PassageStore
}

func NewWithConfig(config SearcherConfig, embedder types.Embedder, store types.PassageStore) (*Searcher, error) {
	if config.Strategy == "" {
		config.Strategy = StrategyStore
	}
	if config.Strategy != StrategyStore && config.Strategy != StrategyCosine {
		return nil, fmt.Errorf("unknown retrieval strategy: %s", config.Strategy)
	}
	if config.TopK == 0 {
		config.TopK = 5
	}

	return &Searcher{
		config:   config,
		embedder: embedder,
		store:    store,
	}, nil
}

// Search returns at most topK passages ordered by similarity descending,
// with no duplicate passage ids. Ties keep their fetch order. Partition
// results are merged by concatenation before sorting, not blended.
// Embedding failure is fatal: there is no retrieval without a vector.
func (s *Searcher) Search(ctx context.Context, queryText string, partitions []string, topK int) ([]models.ScoredPassage, error) {
	if topK <= 0 {
		topK = s.config.TopK
	}

	vector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var merged []models.ScoredPassage
	for _, partition := range partitions {
		var scored []models.ScoredPassage
		switch s.config.Strategy {
		case StrategyCosine:
			scored, err = s.scoreInProcess(ctx, vector, partition)
		default:
			scored, err = s.store.TopK(ctx, vector, topK, partition)
		}
		if err != nil {
			return nil, fmt.Errorf("search in partition %s: %w", partition, err)
		}
		merged = append(merged, scored...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return dedupe(merged, topK), nil
}

// scoreInProcess fetches all candidates of a partition and ranks them by
// cosine similarity. A malformed or dimensionally mismatched row is skipped,
// never fatal to the whole search.
func (s *Searcher) scoreInProcess(ctx context.Context, vector []float32, partition string) ([]models.ScoredPassage, error) {
	candidates, err := s.store.Candidates(ctx, partition)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredPassage, 0, len(candidates))
	for _, candidate := range candidates {
		score, ok := cosineSimilarity(vector, candidate.Vector)
		if !ok {
			s.config.Logger.Warn().
				Str("partition", partition).
				Str("chunk_id", candidate.ChunkID).
				Msg("skipping passage with malformed embedding")
			continue
		}
		scored = append(scored, models.ScoredPassage{Passage: candidate, Score: score})
	}
	return scored, nil
}

// cosineSimilarity computes dot(a,b)/(‖a‖*‖b‖). The second return is false
// for empty, mismatched or zero-norm vectors.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func dedupe(scored []models.ScoredPassage, topK int) []models.ScoredPassage {
	seen := make(map[string]bool, len(scored))
	result := make([]models.ScoredPassage, 0, topK)
	for _, sp := range scored {
		if seen[sp.ID] {
			continue
		}
		seen[sp.ID] = true
		result = append(result, sp)
		if len(result) == topK {
			break
		}
	}
	return result
}
