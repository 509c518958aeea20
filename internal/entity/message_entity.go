package entity

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id             uuid.UUID
	ConversationId string
	IdentityId     string
	Role           string
	Message        string
	CreatedAt      time.Time
}
