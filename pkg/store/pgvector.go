package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"github.com/xhad/sawdust/internal/models"
)

type StoreConfig struct {
	ConnString    string
	Partitions    []string
	ProductsTable string
	VectorDim     int
	Logger        zerolog.Logger
}

// Store holds the bounded connection pool shared by the passage corpus and
// the product catalog. Connections are checked out per call and returned on
// every exit path by pgxpool.
type Store struct {
	config StoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config StoreConfig) (*Store, error) {
	if len(config.Partitions) == 0 {
		config.Partitions = []string{"transcripts"}
	}
	if config.ProductsTable == "" {
		config.ProductsTable = "products"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &Store{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	for _, partition := range s.config.Partitions {
		createTable := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				chunk_id TEXT NOT NULL UNIQUE,
				text TEXT,
				title TEXT,
				url TEXT,
				vector vector(%d)
			)`, partition, s.config.VectorDim)

		if _, err := s.pool.Exec(ctx, createTable); err != nil {
			return fmt.Errorf("failed to create table %s: %v", partition, err)
		}

		createIndex := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_vector_idx
			ON %s
			USING ivfflat (vector vector_cosine_ops)
			WITH (lists = 100)`,
			partition, partition)

		if _, err := s.pool.Exec(ctx, createIndex); err != nil {
			return fmt.Errorf("failed to create index on %s: %v", partition, err)
		}
	}

	createProducts := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			tags TEXT,
			link TEXT,
			image_url TEXT
		)`, s.config.ProductsTable)

	if _, err := s.pool.Exec(ctx, createProducts); err != nil {
		return fmt.Errorf("failed to create products table: %v", err)
	}

	return nil
}

func (s *Store) validPartition(partition string) bool {
	for _, p := range s.config.Partitions {
		if p == partition {
			return true
		}
	}
	return false
}

// TopK delegates ranking to the pgvector cosine distance operator. Scores
// are returned as similarity (1 - distance), descending.
func (s *Store) TopK(ctx context.Context, vector []float32, k int, partition string) ([]models.ScoredPassage, error) {
	if !s.validPartition(partition) {
		return nil, fmt.Errorf("unknown partition: %s", partition)
	}

	query := fmt.Sprintf(`
		SELECT id, chunk_id, text, title, url, 1 - (vector <=> $1) AS score
		FROM %s
		WHERE vector IS NOT NULL
		ORDER BY vector <=> $1
		LIMIT $2`,
		partition)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %v", err)
	}
	defer rows.Close()

	var passages []models.ScoredPassage
	for rows.Next() {
		var sp models.ScoredPassage
		if err := rows.Scan(&sp.ID, &sp.ChunkID, &sp.Text, &sp.Title, &sp.URL, &sp.Score); err != nil {
			// One bad row must not fail the whole search.
			s.config.Logger.Warn().Err(err).Str("partition", partition).Msg("skipping unreadable passage row")
			continue
		}
		passages = append(passages, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passage rows: %v", err)
	}

	return passages, nil
}

// Candidates fetches all passages of a partition with their vectors, for
// in-process similarity scoring.
func (s *Store) Candidates(ctx context.Context, partition string) ([]models.Passage, error) {
	if !s.validPartition(partition) {
		return nil, fmt.Errorf("unknown partition: %s", partition)
	}

	query := fmt.Sprintf(`
		SELECT id, chunk_id, text, title, url, vector
		FROM %s
		WHERE vector IS NOT NULL`,
		partition)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %v", err)
	}
	defer rows.Close()

	var passages []models.Passage
	for rows.Next() {
		var passage models.Passage
		var vector pgvector.Vector
		if err := rows.Scan(&passage.ID, &passage.ChunkID, &passage.Text, &passage.Title, &passage.URL, &vector); err != nil {
			s.config.Logger.Warn().Err(err).Str("partition", partition).Msg("skipping unreadable candidate row")
			continue
		}
		passage.Vector = vector.Slice()
		passages = append(passages, passage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidate rows: %v", err)
	}

	return passages, nil
}

// Upsert writes passages keyed by chunk_id, updating text and vector on
// conflict.
func (s *Store) Upsert(ctx context.Context, partition string, passages []models.Passage) error {
	if !s.validPartition(partition) {
		return fmt.Errorf("unknown partition: %s", partition)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, chunk_id, text, title, url, vector)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chunk_id) DO UPDATE SET
			text = EXCLUDED.text,
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			vector = EXCLUDED.vector`,
		partition)

	for _, passage := range passages {
		_, err := tx.Exec(ctx, stmt,
			passage.ID,
			passage.ChunkID,
			sanitizeUTF8(passage.Text),
			sanitizeUTF8(passage.Title),
			passage.URL,
			pgvector.NewVector(passage.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert passage %s: %v", passage.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// DocumentInfo is one distinct ingested source.
type DocumentInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Documents lists the distinct (title, url) pairs across all partitions.
func (s *Store) Documents(ctx context.Context) ([]DocumentInfo, error) {
	var selects []string
	for _, partition := range s.config.Partitions {
		selects = append(selects, fmt.Sprintf("SELECT DISTINCT title, url FROM %s", partition))
	}
	query := strings.Join(selects, " UNION ") + " ORDER BY title"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var doc DocumentInfo
		if err := rows.Scan(&doc.Title, &doc.URL); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %v", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
