package contract

import (
	"context"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/repository/specification"
)

type CaseEmbeddingRepository interface {
	// ReplaceAll deletes the mirror and inserts embeddings in its place.
	ReplaceAll(ctx context.Context, embeddings []*entity.CaseEmbedding) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CaseEmbedding, error)
	Count(ctx context.Context) (int64, error)
	// SearchSimilarWithScore ranks by inner product, best first, dropping
	// rows scoring below threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.ScoredCaseEmbedding, error)
}
