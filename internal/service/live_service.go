package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinical-assistant-be/internal/constant"
	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/internal/repository/unitofwork"
	"clinical-assistant-be/pkg/events"
	"clinical-assistant-be/pkg/live"
	"clinical-assistant-be/pkg/llm"
	"clinical-assistant-be/pkg/ranking"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const liveModule = "LiveService"

type ILiveService interface {
	ResetPlan(ctx context.Context, key live.Key) error
	AddPlan(ctx context.Context, key live.Key, req *dto.AddPlanRequest) (*dto.AddPlanResponse, error)
	MarkAsked(ctx context.Context, key live.Key, req *dto.MarkAskedRequest) (*dto.MarkAskedResponse, error)
	AppendHistory(ctx context.Context, key live.Key, req *dto.AppendHistoryRequest) error
	Unasked(ctx context.Context, key live.Key, lang string) (*dto.UnaskedResponse, error)
	StopBundle(ctx context.Context, key live.Key, req *dto.StopBundleRequest) (*dto.StopBundleResponse, error)
	FollowupChat(ctx context.Context, key live.Key, req *dto.FollowupChatRequest) (*dto.FollowupChatResponse, error)
}

// QuestionRanker orders unasked questions by relevance to a transcript.
type QuestionRanker interface {
	Rank(ctx context.Context, transcript string, questions []string, lang ranking.Language) []ranking.Scored
}

// EventPublisher emits cross-service events. *nats.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// LiveBroadcaster pushes session updates to connected live clients.
type LiveBroadcaster interface {
	Publish(key live.Key, msgType string, data interface{})
}

type LiveServiceDeps struct {
	Store          *live.Store
	Ranker         QuestionRanker
	LLM            llm.LLMProvider
	UowFactory     unitofwork.RepositoryFactory
	Publisher      IPublisherService
	EventPublisher EventPublisher
	Broadcaster    LiveBroadcaster
	Logger         logger.ILogger
	Now            func() time.Time
}

type liveService struct {
	store          *live.Store
	ranker         QuestionRanker
	llm            llm.LLMProvider
	uowFactory     unitofwork.RepositoryFactory
	publisher      IPublisherService
	eventPublisher EventPublisher
	broadcaster    LiveBroadcaster
	logger         logger.ILogger
	now            func() time.Time
}

// NewLiveService wires the live session workflow. LLM, UowFactory,
// Publisher, EventPublisher and Broadcaster are optional.
func NewLiveService(deps LiveServiceDeps) ILiveService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &liveService{
		store:          deps.Store,
		ranker:         deps.Ranker,
		llm:            deps.LLM,
		uowFactory:     deps.UowFactory,
		publisher:      deps.Publisher,
		eventPublisher: deps.EventPublisher,
		broadcaster:    deps.Broadcaster,
		logger:         deps.Logger,
		now:            now,
	}
}

func (s *liveService) ResetPlan(ctx context.Context, key live.Key) error {
	return s.store.Reset(ctx, key)
}

func (s *liveService) AddPlan(ctx context.Context, key live.Key, req *dto.AddPlanRequest) (*dto.AddPlanResponse, error) {
	texts := make([]string, 0, len(req.Required))
	for _, item := range req.Required {
		texts = append(texts, item.Text)
	}

	added, total, err := s.store.AddQuestions(ctx, key, texts)
	if err != nil {
		return nil, err
	}

	if added > 0 {
		s.broadcast(key, "plan", dto.AddPlanResponse{Added: added, Total: total})
	}
	return &dto.AddPlanResponse{Added: added, Total: total}, nil
}

func (s *liveService) MarkAsked(ctx context.Context, key live.Key, req *dto.MarkAskedRequest) (*dto.MarkAskedResponse, error) {
	matched, err := s.store.MarkAsked(ctx, key, req.Text)
	if err != nil {
		return nil, err
	}

	if matched > 0 {
		s.broadcast(key, "mark_asked", dto.MarkAskedResponse{Matched: matched})
	}
	return &dto.MarkAskedResponse{Matched: matched}, nil
}

// AppendHistory records a transcript line in the session and, when a
// database is configured, in the messages table. A failed insert is logged
// and does not fail the request.
func (s *liveService) AppendHistory(ctx context.Context, key live.Key, req *dto.AppendHistoryRequest) error {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil
	}
	role := strings.TrimSpace(req.Role)

	if err := s.store.AppendHistory(ctx, key, role, message); err != nil {
		return err
	}

	if s.uowFactory != nil {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		err := uow.MessageRepository().Create(ctx, &entity.Message{
			Id:             uuid.New(),
			ConversationId: key.Conversation,
			IdentityId:     key.Identity,
			Role:           role,
			Message:        message,
			CreatedAt:      s.now(),
		})
		if err != nil {
			s.logger.Warn(liveModule, "Failed to persist transcript line", map[string]interface{}{
				"conversation_id": key.Conversation,
				"error":           err.Error(),
			})
		}
	}

	s.broadcast(key, "history", live.Turn{Role: role, Message: message, At: s.now()})
	return nil
}

func (s *liveService) Unasked(ctx context.Context, key live.Key, lang string) (*dto.UnaskedResponse, error) {
	ranked, err := s.rankUnasked(ctx, key, lang)
	if err != nil {
		return nil, err
	}
	return &dto.UnaskedResponse{Unasked: ranked}, nil
}

// rankUnasked reads the plan under the store lock, ranks without it, then
// writes the scores back.
func (s *liveService) rankUnasked(ctx context.Context, key live.Key, lang string) ([]live.RankedQuestion, error) {
	questions, transcript, err := s.store.RankingInput(ctx, key)
	if err != nil {
		return nil, err
	}
	transcript = s.transcriptOrPersisted(ctx, key, transcript)

	scored := s.ranker.Rank(ctx, transcript, questions, ranking.ParseLanguage(lang))

	ranked := make([]live.RankedQuestion, 0, len(scored))
	for _, sc := range scored {
		ranked = append(ranked, live.RankedQuestion{Question: sc.Question, Score: sc.Score})
	}

	if err := s.store.SetScores(ctx, key, ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}

// transcriptOrPersisted falls back to the stored messages when the session
// holds no history, e.g. after a restart with the in-memory backend.
func (s *liveService) transcriptOrPersisted(ctx context.Context, key live.Key, transcript string) string {
	if transcript != "" || s.uowFactory == nil {
		return transcript
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().FindByConversation(ctx, key.Conversation)
	if err != nil {
		s.logger.Warn(liveModule, "Failed to load persisted transcript", map[string]interface{}{
			"conversation_id": key.Conversation,
			"error":           err.Error(),
		})
		return transcript
	}

	turns := make([]live.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, live.Turn{Role: m.Role, Message: m.Message, At: m.CreatedAt})
	}
	return live.RenderTranscript(turns)
}

func (s *liveService) StopBundle(ctx context.Context, key live.Key, req *dto.StopBundleRequest) (*dto.StopBundleResponse, error) {
	language := string(ranking.ParseLanguage(req.Lang))

	transcript, err := s.store.Transcript(ctx, key)
	if err != nil {
		return nil, err
	}
	transcript = s.transcriptOrPersisted(ctx, key, transcript)

	summary := s.listenerBundle(ctx, transcript, language)

	ranked, err := s.rankUnasked(ctx, key, language)
	if err != nil {
		return nil, err
	}

	err = s.store.SnapshotPostStop(ctx, key, live.PostStop{
		TranscriptTail: transcript,
		Summary:        summary,
		Unasked:        ranked,
		Language:       language,
		SavedAt:        s.now().UTC(),
	})
	if err != nil {
		s.logger.Error(liveModule, "Failed to store post-stop context", map[string]interface{}{
			"conversation_id": key.Conversation,
			"error":           err.Error(),
		})
	}

	s.announceStop(ctx, key, len(ranked), language)
	s.broadcast(key, "unasked", ranked)

	return &dto.StopBundleResponse{
		Listener: dto.ListenerMessage{
			Message:   summary,
			Timestamp: s.now().Format("15:04:05"),
		},
		Unasked: ranked,
	}, nil
}

func (s *liveService) listenerBundle(ctx context.Context, transcript, language string) string {
	if s.llm == nil {
		return constant.ListenerFallback
	}

	var instruction string
	switch ranking.Language(language) {
	case ranking.Swahili:
		instruction = constant.ListenerInstructionSwahili
	case ranking.English:
		instruction = constant.ListenerInstructionEnglish
	default:
		instruction = constant.ListenerInstructionBilingual
	}

	clip := clipTail(strings.TrimSpace(transcript), constant.ListenerTranscriptClip)
	out, err := s.llm.Generate(ctx, fmt.Sprintf(constant.ListenerPrompt, clip, instruction))
	if err != nil || strings.TrimSpace(out) == "" {
		details := map[string]interface{}{"language": language}
		if err != nil {
			details["error"] = err.Error()
		}
		s.logger.Warn(liveModule, "Listener bundle unavailable, using placeholder", details)
		return constant.ListenerFallback
	}
	return strings.TrimSpace(out)
}

// announceStop queues the likelihood analysis and emits the cross-service
// event. Both are best effort.
func (s *liveService) announceStop(ctx context.Context, key live.Key, unasked int, language string) {
	if s.publisher != nil {
		err := s.publisher.SendAnalyzeConversation(ctx, dto.PublishAnalyzeConversationMessage{
			ConversationId: key.Conversation,
		})
		if err != nil {
			s.logger.Warn(liveModule, "Failed to queue likelihood analysis", map[string]interface{}{
				"conversation_id": key.Conversation,
				"error":           err.Error(),
			})
		}
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events.LiveSessionFinalized(key.Conversation, unasked, language)); err != nil {
			s.logger.Warn(liveModule, "Failed to publish session finalized event", map[string]interface{}{
				"conversation_id": key.Conversation,
				"error":           err.Error(),
			})
		}
	}
}

// FollowupChat answers a clinician question against the most recent
// post-stop context. Before any stop it uses the live transcript.
func (s *liveService) FollowupChat(ctx context.Context, key live.Key, req *dto.FollowupChatRequest) (*dto.FollowupChatResponse, error) {
	userMsg := strings.TrimSpace(req.Message)
	if userMsg == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Message cannot be empty")
	}
	if s.llm == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "text generation is not configured")
	}

	post, err := s.store.PostStop(ctx, key)
	if err != nil {
		return nil, err
	}
	history, err := s.store.FollowupHistory(ctx, key)
	if err != nil {
		return nil, err
	}

	var transcript, summary string
	var unasked []live.RankedQuestion
	if post != nil {
		transcript = strings.TrimSpace(post.TranscriptTail)
		summary = strings.TrimSpace(post.Summary)
		unasked = post.Unasked
	}
	if transcript == "" {
		current, err := s.store.Transcript(ctx, key)
		if err != nil {
			return nil, err
		}
		transcript = s.transcriptOrPersisted(ctx, key, current)
	}

	messages := buildFollowupMessages(transcript, summary, unasked, history, userMsg, ranking.ParseLanguage(req.Lang))

	answer, err := s.llm.Chat(ctx, messages)
	if err != nil {
		s.logger.Error(liveModule, "Follow-up chat failed", map[string]interface{}{
			"conversation_id": key.Conversation,
			"error":           err.Error(),
		})
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to generate follow-up response")
	}

	if err := s.store.RecordFollowup(ctx, key, constant.LiveRoleClinician, userMsg); err == nil {
		err = s.store.RecordFollowup(ctx, key, constant.LiveRoleAssistant, answer)
		if err != nil {
			s.logger.Error(liveModule, "Failed to store follow-up history", map[string]interface{}{"error": err.Error()})
		}
	} else {
		s.logger.Error(liveModule, "Failed to store follow-up history", map[string]interface{}{"error": err.Error()})
	}

	return &dto.FollowupChatResponse{Answer: answer}, nil
}

func buildFollowupMessages(transcript, summary string, unasked []live.RankedQuestion, history []live.Turn, userMsg string, lang ranking.Language) []llm.Message {
	var unaskedLines []string
	for i, item := range unasked {
		if i >= constant.FollowupUnaskedInPrompt {
			break
		}
		q := strings.TrimSpace(item.Question)
		if q == "" {
			continue
		}
		unaskedLines = append(unaskedLines, fmt.Sprintf("%d. %s (score=%.3f)", i+1, q, item.Score))
	}

	if len(history) > constant.FollowupTurnsInPrompt {
		history = history[len(history)-constant.FollowupTurnsInPrompt:]
	}
	var snippets []string
	for _, turn := range history {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		msg := strings.TrimSpace(turn.Message)
		if role != "" && msg != "" {
			snippets = append(snippets, role+": "+msg)
		}
	}

	var langNote string
	switch lang {
	case ranking.Swahili:
		langNote = constant.FollowupLanguageSwahili
	case ranking.English:
		langNote = constant.FollowupLanguageEnglish
	default:
		langNote = constant.FollowupLanguageBilingual
	}

	contextBlock := fmt.Sprintf(constant.FollowupContext,
		clipTail(transcript, live.DefaultTranscriptTail),
		summary,
		strings.Join(unaskedLines, "\n"),
	)

	messages := []llm.Message{
		{Role: "system", Content: constant.FollowupSystemPrompt + " " + langNote + contextBlock},
	}
	if len(snippets) > 0 {
		messages = append(messages, llm.Message{Role: "user", Content: constant.FollowupHistoryPrefix + strings.Join(snippets, "\n")})
	}
	return append(messages, llm.Message{Role: "user", Content: userMsg})
}

func (s *liveService) broadcast(key live.Key, msgType string, data interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(key, msgType, data)
}

// clipTail keeps the last n runes of text.
func clipTail(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[len(r)-n:])
}
