// Package live tracks per-session state for a live transcribed
// conversation: the recommended question plan, what has been asked, the
// bounded transcript history and the post-stop context.
package live

import (
	"strconv"
	"time"
)

// Key identifies a session. Both parts are opaque to the store.
type Key struct {
	Identity     string `json:"identity"`
	Conversation string `json:"conversation"`
}

// String is the storage key. The identity is length-prefixed so that no
// two distinct keys render the same.
func (k Key) String() string {
	return strconv.Itoa(len(k.Identity)) + ":" + k.Identity + ":" + k.Conversation
}

// PlanItem is one recommended question. Score is nil until ranked.
type PlanItem struct {
	Question string     `json:"question"`
	Score    *float64   `json:"score,omitempty"`
	AddedAt  time.Time  `json:"added_at"`
	Asked    bool       `json:"asked"`
	AskedAt  *time.Time `json:"asked_at,omitempty"`
}

type Turn struct {
	Role    string    `json:"role"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type RankedQuestion struct {
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// PostStop is the context captured when a live session is stopped. It feeds
// the follow-up chat.
type PostStop struct {
	TranscriptTail string           `json:"transcript_tail"`
	Summary        string           `json:"summary"`
	Unasked        []RankedQuestion `json:"unasked"`
	Language       string           `json:"language"`
	SavedAt        time.Time        `json:"saved_at"`
}

// State is the full per-key session state. Plan is keyed by normalized
// question text; Order keeps insertion order of those keys.
type State struct {
	CreatedAt time.Time            `json:"created_at"`
	Plan      map[string]*PlanItem `json:"plan"`
	Order     []string             `json:"order"`
	History   []Turn               `json:"history"`
	PostStop  *PostStop            `json:"post_stop,omitempty"`
	Followup  []Turn               `json:"followup"`
}

func newState(now time.Time) *State {
	return &State{
		CreatedAt: now,
		Plan:      make(map[string]*PlanItem),
	}
}

// Clone returns a deep copy safe to hand out past the store lock.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		CreatedAt: s.CreatedAt,
		Plan:      make(map[string]*PlanItem, len(s.Plan)),
		Order:     append([]string(nil), s.Order...),
		History:   append([]Turn(nil), s.History...),
		Followup:  append([]Turn(nil), s.Followup...),
	}
	for k, item := range s.Plan {
		cp := *item
		if item.Score != nil {
			score := *item.Score
			cp.Score = &score
		}
		if item.AskedAt != nil {
			at := *item.AskedAt
			cp.AskedAt = &at
		}
		out.Plan[k] = &cp
	}
	if s.PostStop != nil {
		ps := *s.PostStop
		ps.Unasked = append([]RankedQuestion(nil), s.PostStop.Unasked...)
		out.PostStop = &ps
	}
	return out
}

func (s *State) ensure() {
	if s.Plan == nil {
		s.Plan = make(map[string]*PlanItem)
	}
}
