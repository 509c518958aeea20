package implementation

import (
	"context"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/mapper"
	"clinical-assistant-be/internal/model"
	"clinical-assistant-be/internal/repository/contract"
	"clinical-assistant-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const caseEmbeddingBatchSize = 200

type CaseEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CaseEmbeddingMapper
}

func NewCaseEmbeddingRepository(db *gorm.DB) contract.CaseEmbeddingRepository {
	return &CaseEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewCaseEmbeddingMapper(),
	}
}

func (r *CaseEmbeddingRepositoryImpl) ReplaceAll(ctx context.Context, embeddings []*entity.CaseEmbedding) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.CaseEmbedding{}).Error; err != nil {
			return err
		}
		if len(embeddings) == 0 {
			return nil
		}
		return tx.CreateInBatches(r.mapper.ToModels(embeddings), caseEmbeddingBatchSize).Error
	})
}

func (r *CaseEmbeddingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CaseEmbedding, error) {
	var models []*model.CaseEmbedding
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.CaseEmbedding, len(models))
	for i, m := range models {
		out[i] = r.mapper.ToEntity(m)
	}
	return out, nil
}

func (r *CaseEmbeddingRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CaseEmbedding{}).Count(&count).Error
	return count, err
}

func (r *CaseEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.ScoredCaseEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// <#> is the negative inner product, so similarity = -(a <#> b).
	type result struct {
		model.CaseEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)
	err := r.db.WithContext(ctx).
		Table("case_embeddings").
		Select("case_embeddings.*, -(embedding_value <#> ?) AS similarity", queryVector).
		Where("-(embedding_value <#> ?) >= ?", queryVector, threshold).
		Order("similarity DESC, position ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredCaseEmbedding, len(results))
	for i := range results {
		scored[i] = &entity.ScoredCaseEmbedding{
			CaseEmbedding: r.mapper.ToEntity(&results[i].CaseEmbedding),
			Similarity:    results[i].Similarity,
		}
	}
	return scored, nil
}
