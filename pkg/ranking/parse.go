package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNoList = errors.New("ranking output holds no list of scored questions")

// extractJSON returns the span from the first '[' or '{' that has a
// matching closer later in the text through the last such closer. Text
// without one is returned unchanged.
func extractJSON(text string) string {
	lastSquare := strings.LastIndex(text, "]")
	lastCurly := strings.LastIndex(text, "}")
	for i, c := range text {
		switch {
		case c == '[' && lastSquare > i:
			return text[i : lastSquare+1]
		case c == '{' && lastCurly > i:
			return text[i : lastCurly+1]
		}
	}
	return text
}

type rawScored struct {
	Question  interface{} `json:"question"`
	Score     interface{} `json:"score"`
	Rationale interface{} `json:"rationale"`
}

// parseScored decodes model output into scored items. It accepts a bare
// list or an object wrapping the list under a common key, which is how
// JSON-only modes tend to answer.
func parseScored(reply string) ([]Scored, error) {
	candidate := strings.TrimSpace(extractJSON(reply))
	if candidate == "" {
		return nil, errNoList
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &list); err != nil {
		var obj map[string]json.RawMessage
		if objErr := json.Unmarshal([]byte(candidate), &obj); objErr != nil {
			return nil, fmt.Errorf("decode ranking output: %w", err)
		}
		found := false
		for _, key := range []string{"questions", "results", "items", "scores", "ranked"} {
			if raw, ok := obj[key]; ok && json.Unmarshal(raw, &list) == nil {
				found = true
				break
			}
		}
		if !found {
			return nil, errNoList
		}
	}

	out := make([]Scored, 0, len(list))
	for _, raw := range list {
		var item rawScored
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		q, ok := item.Question.(string)
		if !ok || strings.TrimSpace(q) == "" {
			continue
		}
		rationale, _ := item.Rationale.(string)
		out = append(out, Scored{
			Question:  strings.TrimSpace(q),
			Score:     clamp(scoreOf(item.Score)),
			Rationale: strings.TrimSpace(rationale),
		})
	}
	return out, nil
}

func scoreOf(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}
