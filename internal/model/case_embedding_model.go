package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// CaseEmbedding mirrors one row of the file-backed corpus index.
type CaseEmbedding struct {
	CaseId         string          `gorm:"type:varchar(128);primaryKey"`
	Position       int             `gorm:"not null;index"`
	Model          string          `gorm:"type:varchar(128)"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (CaseEmbedding) TableName() string {
	return "case_embeddings"
}
