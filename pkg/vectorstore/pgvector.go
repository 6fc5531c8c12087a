package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Document is one embedded chunk of a scraped page.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Source returns the page URL the chunk was cut from.
func (d Document) Source() string {
	if s, ok := d.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// PGVectorStore stores page chunks in a pgvector table.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// collectionPattern accepts postgres identifiers that need no quoting.
var collectionPattern = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

var ErrInvalidCollection = errors.New("invalid collection name")

// NewPGVectorStore creates a store over the chunks table named collection.
func NewPGVectorStore(pool *pgxpool.Pool, collection string) (*PGVectorStore, error) {
	if !collectionPattern.MatchString(collection) {
		return nil, fmt.Errorf("%w %q: use 1-63 letters, digits or underscores, not starting with a digit", ErrInvalidCollection, collection)
	}
	return &PGVectorStore{pool: pool, tableName: collection}, nil
}

// AddDocuments inserts docs in a single batch.
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(query, doc.Content, metadataJSON, pgvector.NewVector(doc.Embedding))
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}
	return nil
}

// HasSource reports whether chunks of the page at source are already stored.
func (vs *PGVectorStore) HasSource(ctx context.Context, source string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE metadata->>'source' = $1)`,
		pgx.Identifier{vs.tableName}.Sanitize())

	var exists bool
	if err := vs.pool.QueryRow(ctx, query, source).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check source: %w", err)
	}
	return exists, nil
}

// SimilaritySearchResult is a stored chunk with its cosine similarity to the query.
type SimilaritySearchResult struct {
	Document Document
	Score    float64
}

// SimilaritySearch returns the topK chunks nearest to queryEmbedding among
// those whose metadata matches filter (see whereClause).
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]any) ([]SimilaritySearchResult, error) {
	query, args, err := similarityQuery(vs.tableName, queryEmbedding, topK, filter)
	if err != nil {
		return nil, err
	}

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []SimilaritySearchResult
	for rows.Next() {
		var doc Document
		var metadataJSON []byte
		var similarity float64

		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		results = append(results, SimilaritySearchResult{Document: doc, Score: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func similarityQuery(tableName string, queryEmbedding []float32, topK int, filter map[string]any) (string, []any, error) {
	if topK <= 0 {
		topK = 5
	}

	args := []any{pgvector.NewVector(queryEmbedding)}
	where, err := whereClause(filter, &args)
	if err != nil {
		return "", nil, fmt.Errorf("invalid metadata filter: %w", err)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, pgx.Identifier{tableName}.Sanitize(), where, len(args))
	return query, args, nil
}

// whereClause renders a metadata filter as SQL. Plain keys match by jsonb
// containment, "$and" and "$or" take a list of filters and "$not" takes one.
// Keys are visited in sorted order so placeholder numbering is stable, and
// numbering continues after the arguments already in args.
func whereClause(filter map[string]any, args *[]any) (string, error) {
	conds := make([]string, 0, len(filter))
	for _, key := range slices.Sorted(maps.Keys(filter)) {
		cond, err := condition(key, filter[key], args)
		if err != nil {
			return "", err
		}
		if cond != "" {
			conds = append(conds, cond)
		}
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), nil
}

func condition(key string, value any, args *[]any) (string, error) {
	switch key {
	case "$and", "$or":
		list, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("%s expects a list of filters", key)
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			sub, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("%s entries must be objects", key)
			}
			clause, err := whereClause(sub, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+clause+")")
		}
		if len(parts) == 0 {
			return "", nil
		}
		op := " AND "
		if key == "$or" {
			op = " OR "
		}
		return "(" + strings.Join(parts, op) + ")", nil

	case "$not":
		sub, ok := value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("$not expects an object")
		}
		clause, err := whereClause(sub, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + clause + ")", nil

	default:
		pair, err := json.Marshal(map[string]any{key: value})
		if err != nil {
			return "", fmt.Errorf("failed to encode filter %q: %w", key, err)
		}
		*args = append(*args, pair)
		return fmt.Sprintf("metadata @> $%d", len(*args)), nil
	}
}
