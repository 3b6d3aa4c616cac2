package products

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
	"github.com/xhad/sawdust/internal/types"
)

// Matcher maps cited video titles to related catalog products.
type Matcher struct {
	catalog types.ProductCatalog
	logger  zerolog.Logger
}

func NewMatcher(catalog types.ProductCatalog, logger zerolog.Logger) *Matcher {
	return &Matcher{catalog: catalog, logger: logger}
}

// Match looks up every distinct non-empty title by case-insensitive tag
// substring and aggregates the results, deduplicated by product id with the
// first occurrence winning. Catalog unavailability yields an empty slice,
// never a pipeline failure.
func (m *Matcher) Match(ctx context.Context, titles []string) []models.Product {
	matched := []models.Product{}
	seenIDs := map[string]bool{}
	seenTitles := map[string]bool{}

	for _, title := range titles {
		title = strings.TrimSpace(title)
		key := strings.ToLower(title)
		if title == "" || seenTitles[key] {
			continue
		}
		seenTitles[key] = true

		found, err := m.catalog.FindByTagSubstring(ctx, title)
		if err != nil {
			m.logger.Warn().Err(err).Str("title", title).Msg("product lookup failed")
			continue
		}

		for _, product := range found {
			if seenIDs[product.ID] {
				continue
			}
			seenIDs[product.ID] = true
			matched = append(matched, product)
		}
	}

	return matched
}
