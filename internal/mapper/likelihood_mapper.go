package mapper

import (
	"encoding/json"
	"fmt"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/model"

	"gorm.io/datatypes"
)

type LikelihoodMapper struct{}

func NewLikelihoodMapper() *LikelihoodMapper {
	return &LikelihoodMapper{}
}

// ToEntity decodes the JSON columns. A column that fails to decode comes
// back empty rather than failing the whole snapshot.
func (m *LikelihoodMapper) ToEntity(e *model.ConversationDiseaseLikelihood) *entity.LikelihoodSnapshot {
	if e == nil {
		return nil
	}
	snap := &entity.LikelihoodSnapshot{
		ConversationId: e.ConversationId,
		AnalyzedAt:     e.AnalyzedAt,
		FlaggedRiskPct: e.FlaggedRiskPct,
	}
	_ = decodeJSON(e.Symptoms, &snap.Symptoms)
	_ = decodeJSON(e.TopConditions, &snap.TopConditions)
	_ = decodeJSON(e.Matches, &snap.Matches)
	return snap
}

func (m *LikelihoodMapper) ToModel(e *entity.LikelihoodSnapshot) (*model.ConversationDiseaseLikelihood, error) {
	if e == nil {
		return nil, nil
	}
	symptoms, err := encodeJSON(e.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("encode symptoms: %w", err)
	}
	conditions, err := encodeJSON(e.TopConditions)
	if err != nil {
		return nil, fmt.Errorf("encode top conditions: %w", err)
	}
	matches, err := encodeJSON(e.Matches)
	if err != nil {
		return nil, fmt.Errorf("encode matches: %w", err)
	}
	return &model.ConversationDiseaseLikelihood{
		ConversationId: e.ConversationId,
		AnalyzedAt:     e.AnalyzedAt,
		FlaggedRiskPct: e.FlaggedRiskPct,
		Symptoms:       symptoms,
		TopConditions:  conditions,
		Matches:        matches,
	}, nil
}

func encodeJSON(v interface{}) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeJSON(raw datatypes.JSON, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
