package dto

import "clinical-assistant-be/pkg/live"

type PlanItemRequest struct {
	Id   string `json:"id"`
	Text string `json:"text"`
}

type AddPlanRequest struct {
	Required []PlanItemRequest `json:"required"`
}

type AddPlanResponse struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

type MarkAskedRequest struct {
	Text string `json:"text"`
}

type MarkAskedResponse struct {
	Matched int `json:"matched"`
}

type AppendHistoryRequest struct {
	Role    string `json:"role" validate:"required"`
	Message string `json:"message"`
}

type UnaskedResponse struct {
	Unasked []live.RankedQuestion `json:"unasked"`
}

type StopBundleRequest struct {
	Lang string `json:"lang"`
}

type ListenerMessage struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type StopBundleResponse struct {
	Listener ListenerMessage       `json:"listener"`
	Unasked  []live.RankedQuestion `json:"unasked"`
}

type FollowupChatRequest struct {
	Message string `json:"message" validate:"required"`
	Lang    string `json:"lang"`
}

type FollowupChatResponse struct {
	Answer string `json:"answer"`
}

// PublishAnalyzeConversationMessage is the in-process event emitted when a
// live session stops.
type PublishAnalyzeConversationMessage struct {
	ConversationId string `json:"conversation_id"`
}

// LiveFrame is one websocket message from the client. Fields are used
// according to Type.
type LiveFrame struct {
	Type     string            `json:"type"`
	Role     string            `json:"role,omitempty"`
	Message  string            `json:"message,omitempty"`
	Text     string            `json:"text,omitempty"`
	Lang     string            `json:"lang,omitempty"`
	Required []PlanItemRequest `json:"required,omitempty"`
}

type LiveFrameReply struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}
