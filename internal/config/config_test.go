package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SEARCH_SIMILARITY_THRESHOLD", "")
	t.Setenv("LIVE_SESSION_TTL", "")

	cfg := Load()

	assert.Equal(t, 0.19, cfg.Corpus.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Corpus.MaxResults)
	assert.Equal(t, 9, cfg.Corpus.MaxSuggestedQuestions)
	assert.Equal(t, 400, cfg.Live.HistoryCap)
	assert.Equal(t, 300, cfg.Live.HistoryKeep)
	assert.Equal(t, time.Duration(0), cfg.Live.SessionTTL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SEARCH_SIMILARITY_THRESHOLD", "0.3")
	t.Setenv("ASKED_MIN_OVERLAP", "4")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, 0.3, cfg.Corpus.SimilarityThreshold)
	assert.Equal(t, 4, cfg.Live.AskedMinOverlap)
	assert.True(t, cfg.App.OtelEnabled)
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90m", 90 * time.Minute},
		{"30", 30 * time.Second},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvAsFloat_Invalid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "abc")
	assert.Equal(t, 1.5, getEnvAsFloat("TEST_FLOAT", 1.5))
}
