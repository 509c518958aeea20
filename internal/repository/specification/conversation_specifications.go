package specification

import "gorm.io/gorm"

type ByConversationID struct {
	ConversationID string
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByRole struct {
	Role string
}

func (s ByRole) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("LOWER(role) = LOWER(?)", s.Role)
}

type ByCaseIDs struct {
	CaseIDs []string
}

func (s ByCaseIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("case_id IN ?", s.CaseIDs)
}
