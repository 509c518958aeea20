package implementation

import (
	"context"
	"errors"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/mapper"
	"clinical-assistant-be/internal/model"
	"clinical-assistant-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikelihoodRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LikelihoodMapper
}

func NewLikelihoodRepository(db *gorm.DB) contract.LikelihoodRepository {
	return &LikelihoodRepositoryImpl{
		db:     db,
		mapper: mapper.NewLikelihoodMapper(),
	}
}

func (r *LikelihoodRepositoryImpl) FindByConversation(ctx context.Context, conversationID string) (*entity.LikelihoodSnapshot, error) {
	var m model.ConversationDiseaseLikelihood
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *LikelihoodRepositoryImpl) Upsert(ctx context.Context, snapshot *entity.LikelihoodSnapshot) error {
	m, err := r.mapper.ToModel(snapshot)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"analyzed_at", "flagged_risk_pct", "symptoms", "top_conditions", "matches", "updated_at",
			}),
		}).
		Create(m).Error
}
