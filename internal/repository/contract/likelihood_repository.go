package contract

import (
	"context"

	"clinical-assistant-be/internal/entity"
)

type LikelihoodRepository interface {
	// FindByConversation returns nil, nil when no snapshot exists.
	FindByConversation(ctx context.Context, conversationID string) (*entity.LikelihoodSnapshot, error)
	Upsert(ctx context.Context, snapshot *entity.LikelihoodSnapshot) error
}
