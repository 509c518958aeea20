package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is one persisted transcript line of a conversation.
type Message struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId string    `gorm:"type:varchar(128);not null;index"`
	IdentityId     string    `gorm:"type:varchar(128);index"`
	Role           string    `gorm:"type:varchar(32);not null"`
	Message        string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}
