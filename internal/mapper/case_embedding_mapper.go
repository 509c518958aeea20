package mapper

import (
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type CaseEmbeddingMapper struct{}

func NewCaseEmbeddingMapper() *CaseEmbeddingMapper {
	return &CaseEmbeddingMapper{}
}

func (m *CaseEmbeddingMapper) ToEntity(e *model.CaseEmbedding) *entity.CaseEmbedding {
	if e == nil {
		return nil
	}
	return &entity.CaseEmbedding{
		CaseId:    e.CaseId,
		Position:  e.Position,
		Model:     e.Model,
		Document:  e.Document,
		Embedding: e.EmbeddingValue.Slice(),
		CreatedAt: e.CreatedAt,
	}
}

func (m *CaseEmbeddingMapper) ToModel(e *entity.CaseEmbedding) *model.CaseEmbedding {
	if e == nil {
		return nil
	}
	return &model.CaseEmbedding{
		CaseId:         e.CaseId,
		Position:       e.Position,
		Model:          e.Model,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.Embedding),
		CreatedAt:      e.CreatedAt,
	}
}

func (m *CaseEmbeddingMapper) ToModels(embeddings []*entity.CaseEmbedding) []*model.CaseEmbedding {
	out := make([]*model.CaseEmbedding, len(embeddings))
	for i, e := range embeddings {
		out[i] = m.ToModel(e)
	}
	return out
}
