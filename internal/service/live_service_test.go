package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinical-assistant-be/internal/constant"
	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/events"
	"clinical-assistant-be/pkg/live"
	"clinical-assistant-be/pkg/llm"
	"clinical-assistant-be/pkg/logging"
	"clinical-assistant-be/pkg/ranking"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = live.Key{Identity: "clin-1", Conversation: "conv-1"}

var fixedNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

type liveFixture struct {
	svc         ILiveService
	store       *live.Store
	llm         *scriptedLLM
	publisher   *recordingPublisher
	events      *recordingEvents
	broadcaster *recordingBroadcaster
	db          *fakeDB
}

func newLiveFixture(t *testing.T, withLLM, withDB bool) *liveFixture {
	t.Helper()
	f := &liveFixture{
		store:       live.NewStore(live.NewMemoryBackend(0), live.DefaultOptions(), logging.Nop),
		publisher:   &recordingPublisher{},
		events:      &recordingEvents{},
		broadcaster: &recordingBroadcaster{},
	}
	deps := LiveServiceDeps{
		Store:          f.store,
		Ranker:         ranking.NewRanker(nil, logging.Nop),
		Publisher:      f.publisher,
		EventPublisher: f.events,
		Broadcaster:    f.broadcaster,
		Logger:         logger.NewNopLogger(),
		Now:            func() time.Time { return fixedNow },
	}
	if withLLM {
		f.llm = &scriptedLLM{}
		deps.LLM = f.llm
	}
	if withDB {
		f.db = newFakeDB()
		deps.UowFactory = fakeFactory{db: f.db}
	}
	f.svc = NewLiveService(deps)
	return f
}

func seedSession(t *testing.T, f *liveFixture) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.AddPlan(ctx, testKey, &dto.AddPlanRequest{Required: []dto.PlanItemRequest{
		{Id: "1", Text: "Do you have chest pain?"},
		{Id: "2", Text: "Any history of smoking?"},
		{Id: "3", Text: "How long have you had the cough?"},
	}})
	require.NoError(t, err)
	require.NoError(t, f.svc.AppendHistory(ctx, testKey, &dto.AppendHistoryRequest{Role: "patient", Message: "I have chest pain and cough"}))
}

func TestLiveService_AddPlanAndMarkAsked(t *testing.T) {
	f := newLiveFixture(t, false, false)
	ctx := context.Background()

	res, err := f.svc.AddPlan(ctx, testKey, &dto.AddPlanRequest{Required: []dto.PlanItemRequest{
		{Text: "Do you smoke?"},
		{Text: "do you smoke"},
		{Text: "   "},
	}})
	require.NoError(t, err)
	assert.Equal(t, &dto.AddPlanResponse{Added: 1, Total: 1}, res)

	asked, err := f.svc.MarkAsked(ctx, testKey, &dto.MarkAskedRequest{Text: "So, do you smoke at all?"})
	require.NoError(t, err)
	assert.Equal(t, 1, asked.Matched)

	again, err := f.svc.MarkAsked(ctx, testKey, &dto.MarkAskedRequest{Text: "do you smoke"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Matched)

	assert.Equal(t, []string{"plan", "mark_asked"}, f.broadcaster.types())
	assert.Equal(t, []live.Key{testKey, testKey}, f.broadcaster.keys())
}

func TestLiveService_UnaskedUsesFallbackRanking(t *testing.T) {
	f := newLiveFixture(t, false, false)
	seedSession(t, f)

	res, err := f.svc.Unasked(context.Background(), testKey, "english")
	require.NoError(t, err)
	require.Len(t, res.Unasked, 3)
	assert.Equal(t, "Do you have chest pain?", res.Unasked[0].Question)
	assert.InDelta(t, 0.6, res.Unasked[0].Score, 1e-9)
	assert.Equal(t, "How long have you had the cough?", res.Unasked[1].Question)
	assert.Equal(t, "Any history of smoking?", res.Unasked[2].Question)
	assert.Equal(t, 0.0, res.Unasked[2].Score)

	st, err := f.store.GetOrCreate(context.Background(), testKey)
	require.NoError(t, err)
	for _, item := range st.Plan {
		assert.NotNil(t, item.Score, item.Question)
	}
}

func TestLiveService_StopBundleWithoutGeneration(t *testing.T) {
	f := newLiveFixture(t, false, false)
	seedSession(t, f)

	res, err := f.svc.StopBundle(context.Background(), testKey, &dto.StopBundleRequest{Lang: "SWAHILI"})
	require.NoError(t, err)

	assert.Equal(t, constant.ListenerFallback, res.Listener.Message)
	assert.Equal(t, "10:30:00", res.Listener.Timestamp)
	require.Len(t, res.Unasked, 3)

	post, err := f.store.PostStop(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "patient: I have chest pain and cough", post.TranscriptTail)
	assert.Equal(t, "swahili", post.Language)
	assert.Equal(t, res.Unasked, post.Unasked)

	assert.Equal(t, []dto.PublishAnalyzeConversationMessage{{ConversationId: "conv-1"}}, f.publisher.sent)
	require.Len(t, f.events.events, 1, "a failing event bus must not fail the stop")
	assert.Equal(t, events.TypeLiveSessionFinalized, f.events.events[0].EventType())
	assert.Equal(t, 3, f.events.events[0].Payload()["unasked_count"])
	assert.Contains(t, f.broadcaster.types(), "unasked")
}

func TestLiveService_StopBundleGenerationFailureUsesPlaceholder(t *testing.T) {
	f := newLiveFixture(t, true, false)
	seedSession(t, f)
	f.llm.err = errors.New("model offline")

	res, err := f.svc.StopBundle(context.Background(), testKey, &dto.StopBundleRequest{})
	require.NoError(t, err)
	assert.Equal(t, constant.ListenerFallback, res.Listener.Message)
}

func TestLiveService_StopBundleListenerPrompt(t *testing.T) {
	f := newLiveFixture(t, true, false)
	seedSession(t, f)
	f.llm.reply = "  Listener:\n**English Summary:**\n- chest pain  "

	res, err := f.svc.StopBundle(context.Background(), testKey, &dto.StopBundleRequest{Lang: "english"})
	require.NoError(t, err)

	assert.Equal(t, "Listener:\n**English Summary:**\n- chest pain", res.Listener.Message)
	require.NotEmpty(t, f.llm.prompts)
	prompt := f.llm.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "Conversation transcript:\npatient: I have chest pain and cough\n\n"))
	assert.Contains(t, prompt, constant.ListenerInstructionEnglish)
}

func TestLiveService_AppendHistoryPersists(t *testing.T) {
	f := newLiveFixture(t, false, true)
	ctx := context.Background()

	require.NoError(t, f.svc.AppendHistory(ctx, testKey, &dto.AppendHistoryRequest{Role: "clinician", Message: "  Where does it hurt? "}))
	require.NoError(t, f.svc.AppendHistory(ctx, testKey, &dto.AppendHistoryRequest{Role: "patient", Message: "   "}))

	require.Len(t, f.db.messages, 1)
	m := f.db.messages[0]
	assert.Equal(t, "conv-1", m.ConversationId)
	assert.Equal(t, "clin-1", m.IdentityId)
	assert.Equal(t, "clinician", m.Role)
	assert.Equal(t, "Where does it hurt?", m.Message)

	transcript, err := f.store.Transcript(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "clinician: Where does it hurt?", transcript)
}

func TestLiveService_PersistFailureDoesNotFailHistory(t *testing.T) {
	f := newLiveFixture(t, false, true)
	f.db.failWrite = errors.New("db down")

	err := f.svc.AppendHistory(context.Background(), testKey, &dto.AppendHistoryRequest{Role: "patient", Message: "cough"})
	require.NoError(t, err)

	transcript, _ := f.store.Transcript(context.Background(), testKey)
	assert.Equal(t, "patient: cough", transcript)
}

func TestLiveService_UnaskedFallsBackToPersistedTranscript(t *testing.T) {
	f := newLiveFixture(t, false, true)
	ctx := context.Background()
	f.db.messages = []*entity.Message{
		{ConversationId: "conv-1", Role: "patient", Message: "I have chest pain", CreatedAt: fixedNow},
	}
	_, err := f.svc.AddPlan(ctx, testKey, &dto.AddPlanRequest{Required: []dto.PlanItemRequest{
		{Text: "Any history of smoking?"},
		{Text: "Do you have chest pain?"},
	}})
	require.NoError(t, err)

	res, err := f.svc.Unasked(ctx, testKey, "")
	require.NoError(t, err)
	require.Len(t, res.Unasked, 2)
	assert.Equal(t, "Do you have chest pain?", res.Unasked[0].Question)
	assert.Greater(t, res.Unasked[0].Score, 0.0)
}

func TestLiveService_FollowupChat(t *testing.T) {
	t.Run("requires generation", func(t *testing.T) {
		f := newLiveFixture(t, false, false)
		_, err := f.svc.FollowupChat(context.Background(), testKey, &dto.FollowupChatRequest{Message: "next step?"})
		var fe *fiber.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, fiber.StatusServiceUnavailable, fe.Code)
	})

	t.Run("rejects empty message", func(t *testing.T) {
		f := newLiveFixture(t, true, false)
		_, err := f.svc.FollowupChat(context.Background(), testKey, &dto.FollowupChatRequest{Message: "  "})
		var fe *fiber.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, fiber.StatusBadRequest, fe.Code)
	})

	t.Run("generation failure", func(t *testing.T) {
		f := newLiveFixture(t, true, false)
		f.llm.err = errors.New("timeout")
		_, err := f.svc.FollowupChat(context.Background(), testKey, &dto.FollowupChatRequest{Message: "next step?"})
		var fe *fiber.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, fiber.StatusInternalServerError, fe.Code)

		hist, _ := f.store.FollowupHistory(context.Background(), testKey)
		assert.Empty(t, hist)
	})

	t.Run("uses post-stop context and records turns", func(t *testing.T) {
		f := newLiveFixture(t, true, false)
		seedSession(t, f)
		f.llm.reply = "Order a chest X-ray."
		_, err := f.svc.StopBundle(context.Background(), testKey, &dto.StopBundleRequest{Lang: "english"})
		require.NoError(t, err)

		res, err := f.svc.FollowupChat(context.Background(), testKey, &dto.FollowupChatRequest{Message: "What next?", Lang: "english"})
		require.NoError(t, err)
		assert.Equal(t, "Order a chest X-ray.", res.Answer)

		require.Len(t, f.llm.chats, 1)
		first := f.llm.chats[0]
		require.Len(t, first, 2)
		assert.Equal(t, "system", first[0].Role)
		assert.Contains(t, first[0].Content, constant.FollowupLanguageEnglish)
		assert.Contains(t, first[0].Content, "patient: I have chest pain and cough")
		assert.Contains(t, first[0].Content, "1. Do you have chest pain? (score=0.600)")
		assert.Equal(t, llm.Message{Role: "user", Content: "What next?"}, first[1])

		_, err = f.svc.FollowupChat(context.Background(), testKey, &dto.FollowupChatRequest{Message: "And then?"})
		require.NoError(t, err)
		second := f.llm.chats[1]
		require.Len(t, second, 3)
		assert.Equal(t, constant.FollowupHistoryPrefix+"clinician: What next?\nassistant: Order a chest X-ray.", second[1].Content)

		hist, _ := f.store.FollowupHistory(context.Background(), testKey)
		require.Len(t, hist, 4)
		assert.Equal(t, "clinician", hist[0].Role)
		assert.Equal(t, "assistant", hist[1].Role)
	})
}

func TestBuildFollowupMessagesLimits(t *testing.T) {
	var unasked []live.RankedQuestion
	for i := 0; i < 25; i++ {
		unasked = append(unasked, live.RankedQuestion{Question: "question " + string(rune('a'+i)), Score: 0.5})
	}
	var history []live.Turn
	for i := 0; i < 12; i++ {
		history = append(history, live.Turn{Role: "Clinician", Message: "turn " + string(rune('a'+i))})
	}

	msgs := buildFollowupMessages("t", "s", unasked, history, "q", ranking.Bilingual)
	require.Len(t, msgs, 3)

	assert.Contains(t, msgs[0].Content, "20. question t (score=0.500)")
	assert.NotContains(t, msgs[0].Content, "21. ")
	assert.Contains(t, msgs[0].Content, constant.FollowupLanguageBilingual)

	lines := strings.Split(strings.TrimPrefix(msgs[1].Content, constant.FollowupHistoryPrefix), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "clinician: turn e", lines[0])
	assert.Equal(t, "clinician: turn l", lines[7])
}

func TestClipTail(t *testing.T) {
	assert.Equal(t, "abc", clipTail("abc", 5))
	assert.Equal(t, "cdé", clipTail("abcdé", 3))
}
