package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/likelihood"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	calls int
	got   []likelihood.Line
	res   *likelihood.Result
	err   error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, lines []likelihood.Line) (*likelihood.Result, error) {
	a.calls++
	a.got = lines
	return a.res, a.err
}

func fiberCode(t *testing.T, err error) int {
	t.Helper()
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	return fe.Code
}

func TestLikelihoodService_NoDatabase(t *testing.T) {
	svc := NewLikelihoodService(nil, &fakeAnalyzer{}, logger.NewNopLogger())

	_, err := svc.Get(context.Background(), "c1", false)
	assert.Equal(t, fiber.StatusServiceUnavailable, fiberCode(t, err))
}

func TestLikelihoodService_ComputesAndStores(t *testing.T) {
	db := newFakeDB()
	db.messages = []*entity.Message{
		{ConversationId: "c1", Role: "clinician", Message: "Tell me more", CreatedAt: fixedNow},
		{ConversationId: "c1", Role: "patient", Message: "I cough at night", CreatedAt: fixedNow.Add(time.Second)},
		{ConversationId: "other", Role: "patient", Message: "unrelated", CreatedAt: fixedNow},
	}
	analyzer := &fakeAnalyzer{res: &likelihood.Result{
		TopConditions:  []likelihood.Condition{{Name: "Asthma", Weight: 0.7, LikelihoodPct: 100}},
		FlaggedRiskPct: 0,
		AnalyzedAt:     fixedNow,
	}}
	svc := NewLikelihoodService(fakeFactory{db: db}, analyzer, logger.NewNopLogger())

	res, err := svc.Get(context.Background(), "c1", false)
	require.NoError(t, err)
	assert.Equal(t, "computed", res.Source)
	assert.Equal(t, "Asthma", res.TopDiseases[0].Name)
	assert.Equal(t, []likelihood.Line{
		{Role: "clinician", Message: "Tell me more"},
		{Role: "patient", Message: "I cough at night"},
	}, analyzer.got)
	require.Contains(t, db.snapshots, "c1")

	cached, err := svc.Get(context.Background(), "c1", false)
	require.NoError(t, err)
	assert.Equal(t, "db", cached.Source)
	assert.Equal(t, 1, analyzer.calls)

	forced, err := svc.Get(context.Background(), "c1", true)
	require.NoError(t, err)
	assert.Equal(t, "computed", forced.Source)
	assert.Equal(t, 2, analyzer.calls)
}

func TestLikelihoodService_NotFound(t *testing.T) {
	db := newFakeDB()
	svc := NewLikelihoodService(fakeFactory{db: db}, &fakeAnalyzer{}, logger.NewNopLogger())

	_, err := svc.Recompute(context.Background(), "missing")
	assert.Equal(t, fiber.StatusNotFound, fiberCode(t, err))

	db.messages = []*entity.Message{{ConversationId: "blank", Role: "patient", Message: "<p></p>"}}
	svc = NewLikelihoodService(fakeFactory{db: db}, &fakeAnalyzer{err: likelihood.ErrNoTranscript}, logger.NewNopLogger())
	_, err = svc.Recompute(context.Background(), "blank")
	assert.Equal(t, fiber.StatusNotFound, fiberCode(t, err))
	assert.Empty(t, db.snapshots)
}

func TestLikelihoodService_SearchFailure(t *testing.T) {
	db := newFakeDB()
	db.messages = []*entity.Message{{ConversationId: "c1", Role: "patient", Message: "fever"}}
	boom := errors.New("index not ready")
	svc := NewLikelihoodService(fakeFactory{db: db}, &fakeAnalyzer{err: boom}, logger.NewNopLogger())

	_, err := svc.Recompute(context.Background(), "c1")
	assert.ErrorIs(t, err, boom)
}
