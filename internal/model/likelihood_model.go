package model

import (
	"time"

	"gorm.io/datatypes"
)

type ConversationDiseaseLikelihood struct {
	ConversationId string         `gorm:"type:varchar(128);primaryKey"`
	AnalyzedAt     time.Time      `gorm:"not null"`
	FlaggedRiskPct float64        `gorm:"type:numeric(5,1)"`
	Symptoms       datatypes.JSON `gorm:"type:jsonb"`
	TopConditions  datatypes.JSON `gorm:"type:jsonb"`
	Matches        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (ConversationDiseaseLikelihood) TableName() string {
	return "conversation_disease_likelihoods"
}
