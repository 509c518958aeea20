package events

import "time"

const (
	TypeLiveSessionFinalized = "LIVE_SESSION_FINALIZED"
	TypeCorpusIndexUpdated   = "CORPUS_INDEX_UPDATED"
)

// LiveSessionFinalized is emitted once a live session is stopped.
func LiveSessionFinalized(conversationID string, unasked int, language string) BaseEvent {
	return BaseEvent{
		Type: TypeLiveSessionFinalized,
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"unasked_count":   unasked,
			"language":        language,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// CorpusIndexUpdated tells running servers that new index files are on disk.
func CorpusIndexUpdated(indexPath, metadataPath string, cases int) BaseEvent {
	return BaseEvent{
		Type: TypeCorpusIndexUpdated,
		Data: map[string]interface{}{
			"index_path":    indexPath,
			"metadata_path": metadataPath,
			"cases":         cases,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// StringField reads a string payload field, or "" when missing.
func StringField(e Event, name string) string {
	s, _ := e.Payload()[name].(string)
	return s
}
