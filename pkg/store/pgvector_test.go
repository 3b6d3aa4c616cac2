package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/pkg/store"
)

// These tests need a running Postgres with the pgvector extension, e.g.
//
//	docker run -e POSTGRES_PASSWORD=testpass -p 5432:5432 pgvector/pgvector:pg16
//
// and are skipped unless SAWDUST_TEST_DATABASE_URL is set.
func getTestStore(t *testing.T) *store.Store {
	t.Helper()

	connString := os.Getenv("SAWDUST_TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("SAWDUST_TEST_DATABASE_URL not set")
	}

	s, err := store.NewWithConfig(store.StoreConfig{
		ConnString:    connString,
		Partitions:    []string{"test_transcripts"},
		ProductsTable: "test_products",
		VectorDim:     3,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()

	passages := []models.Passage{
		{ID: "t1", ChunkID: "intro_chunk_0", Text: "rough-cut the stock first", Title: "Intro", URL: "https://x/y", Vector: []float32{1, 0, 0}},
		{ID: "t2", ChunkID: "intro_chunk_1", Text: "then joint one face flat", Title: "Intro", URL: "https://x/y", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, s.Upsert(ctx, "test_transcripts", passages))

	results, err := s.TopK(ctx, []float32{1, 0, 0}, 1, "test_transcripts")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "intro_chunk_0", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)

	candidates, err := s.Candidates(ctx, "test_transcripts")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(candidates), 2)
}

func TestStoreUpsertReplacesChunk(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()

	original := models.Passage{ID: "u1", ChunkID: "dup_chunk_0", Text: "first version", Title: "Dup", Vector: []float32{0, 0, 1}}
	require.NoError(t, s.Upsert(ctx, "test_transcripts", []models.Passage{original}))

	updated := original
	updated.Text = "second version"
	require.NoError(t, s.Upsert(ctx, "test_transcripts", []models.Passage{updated}))

	results, err := s.TopK(ctx, []float32{0, 0, 1}, 1, "test_transcripts")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Text)
}

func TestStoreRejectsUnknownPartition(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()

	_, err := s.TopK(ctx, []float32{1, 0, 0}, 1, "bogus")
	assert.Error(t, err)

	err = s.Upsert(ctx, "bogus", []models.Passage{{ID: "x", ChunkID: "x_chunk_0"}})
	assert.Error(t, err)
}

func TestProductCatalog(t *testing.T) {
	s := getTestStore(t)
	ctx := context.Background()

	added, err := s.AddProduct(ctx, models.Product{
		Title:    "Push Blocks",
		Tags:     []string{"Jointer Basics", "safety"},
		Link:     "https://shop/push-blocks",
		ImageURL: "https://shop/push-blocks.jpg",
	})
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	t.Cleanup(func() { _ = s.DeleteProduct(context.Background(), added.ID) })

	found, err := s.FindByTagSubstring(ctx, "jointer basics")
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "Push Blocks", found[0].Title)

	listed, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, listed)
}
