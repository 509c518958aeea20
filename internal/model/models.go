package model

// All lists every model handled by migrations.
func All() []interface{} {
	return []interface{}{
		&Message{},
		&ConversationDiseaseLikelihood{},
		&CaseEmbedding{},
	}
}
