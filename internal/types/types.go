package types

import (
	"context"

	"github.com/xhad/sawdust/internal/models"
)

// Core interfaces

// Completer is the text-in/text-out contract of the generation LLM. It is
// treated as unreliable: it may truncate, stall, or fail outright.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text to a fixed-length vector. Failures must propagate;
// there is no meaningful retrieval without a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PassageStore is the persistent transcript corpus, split into named
// partition tables searchable independently or merged.
type PassageStore interface {
	TopK(ctx context.Context, vector []float32, k int, partition string) ([]models.ScoredPassage, error)
	Candidates(ctx context.Context, partition string) ([]models.Passage, error)
	Upsert(ctx context.Context, partition string, passages []models.Passage) error
}

// ProductCatalog is the external product store matched against cited titles.
type ProductCatalog interface {
	FindByTagSubstring(ctx context.Context, text string) ([]models.Product, error)
}
