package products_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/pkg/products"
)

type fakeCatalog struct {
	byTitle map[string][]models.Product
	err     error
	queries []string
}

func (f *fakeCatalog) FindByTagSubstring(ctx context.Context, text string) ([]models.Product, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.byTitle[text], nil
}

func TestMatch(t *testing.T) {
	catalog := &fakeCatalog{byTitle: map[string][]models.Product{
		"Crosscut Sled Build": {
			{ID: "p1", Title: "Miter Bar Stock"},
			{ID: "p2", Title: "T-Track Kit"},
		},
	}}
	matcher := products.NewMatcher(catalog, zerolog.Nop())

	got := matcher.Match(context.Background(), []string{"Crosscut Sled Build"})

	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
}

func TestMatchDeduplicatesProducts(t *testing.T) {
	shared := models.Product{ID: "p1", Title: "Wood Glue"}
	catalog := &fakeCatalog{byTitle: map[string][]models.Product{
		"Workbench Build": {shared, {ID: "p2", Title: "Bench Vise"}},
		"Assembly Table":  {shared},
	}}
	matcher := products.NewMatcher(catalog, zerolog.Nop())

	got := matcher.Match(context.Background(), []string{"Workbench Build", "Assembly Table"})

	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
}

func TestMatchDeduplicatesTitles(t *testing.T) {
	catalog := &fakeCatalog{byTitle: map[string][]models.Product{}}
	matcher := products.NewMatcher(catalog, zerolog.Nop())

	matcher.Match(context.Background(), []string{"Shop Tour", "shop tour", " Shop Tour ", ""})

	assert.Equal(t, []string{"Shop Tour"}, catalog.queries)
}

func TestMatchCatalogErrorYieldsEmpty(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("connection refused")}
	matcher := products.NewMatcher(catalog, zerolog.Nop())

	got := matcher.Match(context.Background(), []string{"Crosscut Sled Build"})

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchNoTitles(t *testing.T) {
	matcher := products.NewMatcher(&fakeCatalog{}, zerolog.Nop())

	got := matcher.Match(context.Background(), nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
