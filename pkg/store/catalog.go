package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/sawdust/internal/models"
)

// FindByTagSubstring returns every product whose tags contain the given
// text, case-insensitively.
func (s *Store) FindByTagSubstring(ctx context.Context, text string) ([]models.Product, error) {
	query := fmt.Sprintf(`
		SELECT id, title, tags, link, COALESCE(image_url, '')
		FROM %s
		WHERE LOWER(tags) LIKE LOWER($1)`,
		s.config.ProductsTable)

	rows, err := s.pool.Query(ctx, query, "%"+text+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %v", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ListProducts returns the whole catalog.
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := fmt.Sprintf(`
		SELECT id, title, tags, link, COALESCE(image_url, '')
		FROM %s
		ORDER BY title`,
		s.config.ProductsTable)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %v", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// AddProduct inserts a catalog entry, generating its id.
func (s *Store) AddProduct(ctx context.Context, product models.Product) (models.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, title, tags, link, image_url)
		VALUES ($1, $2, $3, $4, $5)`,
		s.config.ProductsTable)

	_, err := s.pool.Exec(ctx, stmt,
		product.ID,
		product.Title,
		strings.Join(product.Tags, ","),
		product.Link,
		product.ImageURL,
	)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to add product: %v", err)
	}

	return product, nil
}

// DeleteProduct removes a catalog entry by id.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.config.ProductsTable)
	if _, err := s.pool.Exec(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to delete product: %v", err)
	}
	return nil
}

type productRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanProducts(rows productRows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var product models.Product
		var tags string
		if err := rows.Scan(&product.ID, &product.Title, &tags, &product.Link, &product.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %v", err)
		}
		if tags != "" {
			product.Tags = strings.Split(tags, ",")
		} else {
			product.Tags = []string{}
		}
		products = append(products, product)
	}
	return products, rows.Err()
}
