package mapper

import (
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/model"
)

type MessageMapper struct{}

func NewMessageMapper() *MessageMapper {
	return &MessageMapper{}
}

func (m *MessageMapper) ToEntity(e *model.Message) *entity.Message {
	if e == nil {
		return nil
	}
	return &entity.Message{
		Id:             e.Id,
		ConversationId: e.ConversationId,
		IdentityId:     e.IdentityId,
		Role:           e.Role,
		Message:        e.Message,
		CreatedAt:      e.CreatedAt,
	}
}

func (m *MessageMapper) ToModel(e *entity.Message) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		Id:             e.Id,
		ConversationId: e.ConversationId,
		IdentityId:     e.IdentityId,
		Role:           e.Role,
		Message:        e.Message,
		CreatedAt:      e.CreatedAt,
	}
}

func (m *MessageMapper) ToEntities(models []*model.Message) []*entity.Message {
	out := make([]*entity.Message, len(models))
	for i, e := range models {
		out[i] = m.ToEntity(e)
	}
	return out
}
