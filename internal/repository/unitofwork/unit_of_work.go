package unitofwork

import (
	"context"

	"clinical-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	MessageRepository() contract.MessageRepository
	LikelihoodRepository() contract.LikelihoodRepository
	CaseEmbeddingRepository() contract.CaseEmbeddingRepository
}
