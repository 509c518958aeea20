package corpus

import (
	"testing"

	"clinical-assistant-be/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords_CurrentShape(t *testing.T) {
	data := []byte(`[{
		"case_id": "TB-001",
		"patient_background": {"english": "45 year old farmer", "swahili": "Mkulima wa miaka 45"},
		"chief_complaint_history": {"english": "cough for three weeks"},
		"recommended_questions": [
			{"question": {"english": "Any blood in sputum?", "swahili": "Kuna damu kwenye makohozi?"},
			 "response": {"english": "Yes, a little"}}
		],
		"red_flags": {"Hemoptysis": true, "Fever": false, "Weight loss": "5kg", "Days": 0},
		"Suspected_illness": {"Tuberculosis": "most likely", "Pneumonia": ""}
	}]`)

	records, err := ParseRecords(data, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "TB-001", rec.CaseID)
	assert.True(t, rec.Background.HasEnglish())
	assert.True(t, rec.Background.HasSwahili())
	assert.False(t, rec.ChiefComplaint.HasSwahili())
	require.Len(t, rec.Questions, 1)
	assert.Equal(t, "Yes, a little", rec.Questions[0].Response.English)

	assert.True(t, rec.HasFlag("Hemoptysis"))
	assert.False(t, rec.HasFlag("Fever"))
	assert.False(t, rec.HasFlag("Days"))
	assert.False(t, rec.HasFlag("Absent"))
	assert.Equal(t, FlagValue{Raw: "5kg", Present: true}, rec.RedFlags["Weight loss"])

	assert.Equal(t, []string{"Pneumonia", "Tuberculosis"}, rec.ConditionNames())
}

func TestParseRecords_LegacyShapes(t *testing.T) {
	data := []byte(`[{
		"case_id": 17,
		"patient_background": "Elderly woman",
		"red_flags": ["Fever: 39C", "Duration > 2 weeks", "Night sweats"],
		"Suspected_illness": "Malaria"
	}]`)

	records, err := ParseRecords(data, nil)
	require.NoError(t, err)
	rec := records[0]

	assert.Equal(t, "17", rec.CaseID)
	assert.Equal(t, Bilingual{English: "Elderly woman"}, rec.Background)
	assert.Equal(t, FlagValue{Raw: "39C", Present: true}, rec.RedFlags["Fever"])
	assert.Equal(t, FlagValue{Raw: ">2 weeks", Present: true}, rec.RedFlags["Duration"])
	assert.Equal(t, FlagValue{Raw: "true", Present: true}, rec.RedFlags["Night sweats"])
	assert.Equal(t, map[string]string{"Malaria": ""}, rec.SuspectedConditions)
}

func TestParseRecords_Invalid(t *testing.T) {
	_, err := ParseRecords([]byte(`{"not": "a list"}`), nil)
	assert.Error(t, err)

	_, err = ParseRecords([]byte(`not json`), nil)
	assert.Error(t, err)
}

type warnRecorder struct {
	logging.Logger
	fields []string
}

func (w *warnRecorder) Warn(_, _ string, details map[string]interface{}) {
	if f, ok := details["field"].(string); ok {
		w.fields = append(w.fields, f)
		return
	}
	w.fields = append(w.fields, "case")
}

func TestParseRecords_ToleratesMalformedFields(t *testing.T) {
	data := []byte(`[
		{
			"case_id": "OK-1",
			"patient_background": 12,
			"chief_complaint_history": ["not", "a", "field"],
			"recommended_questions": [
				"just a string",
				{"question": {"english": "Fever?"}, "response": {"english": "Yes"}},
				{"question": [1, 2]}
			],
			"red_flags": ["Fever: 39C", 7, {"Cough": true}, null],
			"Suspected_illness": {"Malaria": "likely"}
		},
		"not an object",
		{"case_id": "OK-2", "opening_statement": "I feel weak"}
	]`)

	logs := &warnRecorder{Logger: logging.Nop}
	records, err := ParseRecords(data, logs)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, "OK-1", rec.CaseID)
	assert.Equal(t, Bilingual{English: "12"}, rec.Background)
	assert.True(t, rec.ChiefComplaint.IsEmpty())
	require.Len(t, rec.Questions, 1)
	assert.Equal(t, "Fever?", rec.Questions[0].Question.English)
	assert.True(t, rec.HasFlag("Fever"))
	assert.True(t, rec.HasFlag("Cough"))
	assert.Len(t, rec.RedFlags, 2)
	assert.Equal(t, []string{"Malaria"}, rec.ConditionNames())

	assert.Equal(t, "OK-2", records[1].CaseID)
	assert.Equal(t, "I feel weak", records[1].OpeningStatement.English)

	assert.ElementsMatch(t, []string{
		"chief_complaint_history",
		"recommended_questions",
		"recommended_questions.question",
		"red_flags",
		"red_flags",
		"case",
	}, logs.fields)
}

func TestBlob(t *testing.T) {
	rec := CaseRecord{
		Background:     Bilingual{English: "45 year old farmer", Swahili: "Mkulima"},
		ChiefComplaint: Bilingual{English: "cough"},
		Questions: []QA{
			{Question: Bilingual{English: "How long?"}, Response: Bilingual{English: "Two weeks"}},
		},
		RedFlags: map[string]FlagValue{
			"weight loss": {Raw: "true", Present: true},
			"fever":       {Raw: "", Present: false},
		},
		SuspectedConditions: map[string]string{"TB": "likely", "Pneumonia": ""},
	}

	want := "Background: 45 year old farmer Background (Swahili): Mkulima " +
		"Chief Complaint: cough " +
		"Questions and Responses: How long? Two weeks " +
		"Red Flags: weight loss: true " +
		"Suspected Conditions: Pneumonia TB: likely"
	assert.Equal(t, want, Blob(&rec))
	assert.Equal(t, "", Blob(&CaseRecord{CaseID: "empty"}))
}
