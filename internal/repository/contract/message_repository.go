package contract

import (
	"context"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/repository/specification"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	// FindByConversation returns the conversation's lines oldest first.
	FindByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
