// Package corpus holds the searchable collection of historical clinical
// cases: typed records, their embeddings and a flat inner-product index.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"clinical-assistant-be/pkg/logging"
)

// Bilingual is a free-text field recorded in English and/or Swahili.
type Bilingual struct {
	English string `json:"english,omitempty" msgpack:"english,omitempty"`
	Swahili string `json:"swahili,omitempty" msgpack:"swahili,omitempty"`
}

func (b Bilingual) HasEnglish() bool { return strings.TrimSpace(b.English) != "" }
func (b Bilingual) HasSwahili() bool { return strings.TrimSpace(b.Swahili) != "" }
func (b Bilingual) IsEmpty() bool    { return !b.HasEnglish() && !b.HasSwahili() }

// QA is one recommended provider question with the standardized patient's
// answer.
type QA struct {
	Question Bilingual `json:"question" msgpack:"question"`
	Response Bilingual `json:"response" msgpack:"response"`
}

// FlagValue is a red-flag annotation. Present is false for empty strings,
// false booleans and zero numbers.
type FlagValue struct {
	Raw     string `json:"raw" msgpack:"raw"`
	Present bool   `json:"present" msgpack:"present"`
}

// CaseRecord is one historical case. Records are immutable once indexed.
type CaseRecord struct {
	CaseID              string               `json:"case_id" msgpack:"case_id"`
	Background          Bilingual            `json:"patient_background" msgpack:"patient_background"`
	ChiefComplaint      Bilingual            `json:"chief_complaint_history" msgpack:"chief_complaint_history"`
	MedicalHistory      Bilingual            `json:"medical_social_history" msgpack:"medical_social_history"`
	OpeningStatement    Bilingual            `json:"opening_statement" msgpack:"opening_statement"`
	Questions           []QA                 `json:"recommended_questions,omitempty" msgpack:"recommended_questions,omitempty"`
	RedFlags            map[string]FlagValue `json:"red_flags,omitempty" msgpack:"red_flags,omitempty"`
	SuspectedConditions map[string]string    `json:"suspected_conditions,omitempty" msgpack:"suspected_conditions,omitempty"`

	Embedding []float32 `json:"-" msgpack:"-"`
}

// HasFlag reports whether the named red flag is present.
func (c *CaseRecord) HasFlag(name string) bool {
	v, ok := c.RedFlags[name]
	return ok && v.Present
}

// ConditionNames returns the suspected condition names, sorted.
func (c *CaseRecord) ConditionNames() []string {
	names := make([]string, 0, len(c.SuspectedConditions))
	for name := range c.SuspectedConditions {
		if strings.TrimSpace(name) != "" {
			names = append(names, strings.TrimSpace(name))
		}
	}
	sort.Strings(names)
	return names
}

// rawCase mirrors the corpus JSON, where several fields changed shape
// between data generations.
type rawCase struct {
	CaseID           json.RawMessage   `json:"case_id"`
	Background       json.RawMessage   `json:"patient_background"`
	ChiefComplaint   json.RawMessage   `json:"chief_complaint_history"`
	MedicalHistory   json.RawMessage   `json:"medical_social_history"`
	OpeningStatement json.RawMessage   `json:"opening_statement"`
	Questions        []json.RawMessage `json:"recommended_questions"`
	RedFlags         json.RawMessage   `json:"red_flags"`
	Suspected        json.RawMessage   `json:"Suspected_illness"`
	SuspectedLower   json.RawMessage   `json:"suspected_illness"`
	SuspectedNew     json.RawMessage   `json:"suspected_conditions"`
}

type rawQA struct {
	Question json.RawMessage `json:"question"`
	Response json.RawMessage `json:"response"`
}

// ParseRecordsFile reads a JSON array of raw cases from path.
func ParseRecordsFile(path string, logger Logger) ([]CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return ParseRecords(data, logger)
}

// ParseRecords converts a JSON array of raw case objects into typed records.
// Only a document that is not an array is an error. A case that is not an
// object is skipped, and a field of an unexpected shape is left empty; both
// are logged. Missing case ids stay empty; Build assigns them by position.
func ParseRecords(data []byte, logger Logger) ([]CaseRecord, error) {
	logger = logging.OrNop(logger)

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	records := make([]CaseRecord, 0, len(items))
	for i, item := range items {
		var r rawCase
		if err := json.Unmarshal(item, &r); err != nil {
			logger.Warn(module, "Skipping malformed case", map[string]interface{}{
				"position": i,
				"error":    err.Error(),
			})
			continue
		}
		p := fieldParser{position: i, logger: logger}
		records = append(records, p.toRecord(r))
	}
	return records, nil
}

// fieldParser decodes one case and logs the fields it has to drop.
type fieldParser struct {
	position int
	logger   Logger
}

func (p fieldParser) skip(field string, err error) {
	p.logger.Warn(module, "Skipping malformed case field", map[string]interface{}{
		"position": p.position,
		"field":    field,
		"error":    err.Error(),
	})
}

func (p fieldParser) bilingual(field string, raw json.RawMessage) Bilingual {
	b, err := parseBilingual(raw)
	if err != nil {
		p.skip(field, err)
		return Bilingual{}
	}
	return b
}

func (p fieldParser) toRecord(r rawCase) CaseRecord {
	rec := CaseRecord{}
	var err error

	if rec.CaseID, err = scalarString(r.CaseID); err != nil {
		p.skip("case_id", err)
	}
	rec.Background = p.bilingual("patient_background", r.Background)
	rec.ChiefComplaint = p.bilingual("chief_complaint_history", r.ChiefComplaint)
	rec.MedicalHistory = p.bilingual("medical_social_history", r.MedicalHistory)
	rec.OpeningStatement = p.bilingual("opening_statement", r.OpeningStatement)

	for _, item := range r.Questions {
		var q rawQA
		if err := json.Unmarshal(item, &q); err != nil {
			p.skip("recommended_questions", err)
			continue
		}
		question, err := parseBilingual(q.Question)
		if err != nil {
			p.skip("recommended_questions.question", err)
			continue
		}
		response, err := parseBilingual(q.Response)
		if err != nil {
			p.skip("recommended_questions.response", err)
			response = Bilingual{}
		}
		if question.IsEmpty() && response.IsEmpty() {
			continue
		}
		rec.Questions = append(rec.Questions, QA{Question: question, Response: response})
	}

	if rec.RedFlags, err = parseRedFlags(r.RedFlags, p.skip); err != nil {
		p.skip("red_flags", err)
	}

	suspected := r.SuspectedNew
	if isAbsent(suspected) {
		suspected = r.Suspected
	}
	if isAbsent(suspected) {
		suspected = r.SuspectedLower
	}
	if rec.SuspectedConditions, err = parseSuspected(suspected); err != nil {
		p.skip("suspected_conditions", err)
	}

	return rec
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func scalarString(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported scalar %T", v)
	}
}

// parseBilingual accepts {"english": ..., "swahili": ...} or a legacy plain
// scalar, which is taken as English.
func parseBilingual(raw json.RawMessage) (Bilingual, error) {
	if isAbsent(raw) {
		return Bilingual{}, nil
	}
	t := bytes.TrimSpace(raw)
	if t[0] != '{' {
		s, err := scalarString(t)
		if err != nil {
			return Bilingual{}, err
		}
		return Bilingual{English: s}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(t, &m); err != nil {
		return Bilingual{}, err
	}
	return Bilingual{
		English: strings.TrimSpace(stringOf(m["english"])),
		Swahili: strings.TrimSpace(stringOf(m["swahili"])),
	}, nil
}

// parseRedFlags accepts a mapping, or the legacy list of "key: value" /
// "key > value" / bare strings. List items that are objects are merged as
// mappings; other non-string items are reported to skip and dropped.
func parseRedFlags(raw json.RawMessage, skip func(field string, err error)) (map[string]FlagValue, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	t := bytes.TrimSpace(raw)

	if t[0] == '[' {
		var items []interface{}
		if err := json.Unmarshal(t, &items); err != nil {
			return nil, err
		}
		flags := make(map[string]FlagValue, len(items))
		for i, item := range items {
			switch v := item.(type) {
			case string:
				addListFlag(flags, v)
			case map[string]interface{}:
				for k, fv := range v {
					flags[strings.TrimSpace(k)] = flagValueOf(fv)
				}
			default:
				skip("red_flags", fmt.Errorf("item %d: unsupported %T", i, item))
			}
		}
		return flags, nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(t, &m); err != nil {
		return nil, err
	}
	flags := make(map[string]FlagValue, len(m))
	for k, v := range m {
		flags[k] = flagValueOf(v)
	}
	return flags, nil
}

func addListFlag(flags map[string]FlagValue, item string) {
	switch {
	case strings.Contains(item, ">"):
		k, v, _ := strings.Cut(item, ">")
		val := ">" + strings.TrimSpace(v)
		flags[strings.TrimSpace(k)] = FlagValue{Raw: val, Present: true}
	case strings.Contains(item, ":"):
		k, v, _ := strings.Cut(item, ":")
		val := strings.TrimSpace(v)
		flags[strings.TrimSpace(k)] = FlagValue{Raw: val, Present: val != ""}
	case strings.TrimSpace(item) != "":
		flags[strings.TrimSpace(item)] = FlagValue{Raw: "true", Present: true}
	}
}

func flagValueOf(v interface{}) FlagValue {
	switch t := v.(type) {
	case nil:
		return FlagValue{}
	case bool:
		return FlagValue{Raw: strconv.FormatBool(t), Present: t}
	case float64:
		return FlagValue{Raw: strconv.FormatFloat(t, 'f', -1, 64), Present: t != 0}
	case string:
		s := strings.TrimSpace(t)
		return FlagValue{Raw: s, Present: s != ""}
	default:
		b, _ := json.Marshal(t)
		s := string(b)
		return FlagValue{Raw: s, Present: s != "" && s != "{}" && s != "[]"}
	}
}

// parseSuspected accepts a mapping of condition -> annotation or the legacy
// single-string shape.
func parseSuspected(raw json.RawMessage) (map[string]string, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	t := bytes.TrimSpace(raw)
	if t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return map[string]string{s: ""}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(t, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(stringOf(v))
	}
	return out, nil
}

func stringOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
