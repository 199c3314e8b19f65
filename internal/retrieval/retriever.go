// Package retrieval implements passage search over PostgreSQL + pgvector
// for retrieval-augmented sessions.
package retrieval

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/sashabaranov/go-openai"

	"github.com/convoflow/convoflow-backend/internal/chat"
)

// Embedder turns a query string into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder for the given model name.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed returns the embedding for one input text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// Store performs cosine top-k passage search over the documents table.
type Store struct {
	db       *sqlx.DB
	embedder Embedder
}

// NewStore creates a retrieval store over an existing connection pool.
func NewStore(db *sqlx.DB, embedder Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

type documentRow struct {
	Content string  `db:"content"`
	Score   float64 `db:"score"`
}

// Retrieve implements chat.Retriever. Results are ordered by descending
// relevance; an empty result is not an error.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]chat.Passage, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Cosine distance: 1 - (a <=> b) gives similarity in [0, 1] for
	// normalized embeddings.
	q := `
		SELECT content, 1 - (embedding <=> $1) AS score
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, q, pgvector.NewVector(embedding), k); err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	passages := make([]chat.Passage, len(rows))
	for i, row := range rows {
		passages[i] = chat.Passage{Content: row.Content, Score: row.Score}
	}
	return passages, nil
}
