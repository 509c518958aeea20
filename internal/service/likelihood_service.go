package service

import (
	"context"
	"errors"

	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/internal/repository/unitofwork"
	"clinical-assistant-be/pkg/likelihood"

	"github.com/gofiber/fiber/v2"
)

const likelihoodModule = "LikelihoodService"

type ILikelihoodService interface {
	// Get returns the stored snapshot unless force is set or none exists.
	Get(ctx context.Context, conversationID string, force bool) (*dto.DiseaseLikelihoodResponse, error)
	Recompute(ctx context.Context, conversationID string) (*dto.DiseaseLikelihoodResponse, error)
}

type LikelihoodAnalyzer interface {
	Analyze(ctx context.Context, lines []likelihood.Line) (*likelihood.Result, error)
}

type likelihoodService struct {
	uowFactory unitofwork.RepositoryFactory
	analyzer   LikelihoodAnalyzer
	logger     logger.ILogger
}

// NewLikelihoodService needs a database. With a nil factory every call
// answers 503.
func NewLikelihoodService(uowFactory unitofwork.RepositoryFactory, analyzer LikelihoodAnalyzer, logger logger.ILogger) ILikelihoodService {
	return &likelihoodService{
		uowFactory: uowFactory,
		analyzer:   analyzer,
		logger:     logger,
	}
}

var errNoDatabase = fiber.NewError(fiber.StatusServiceUnavailable, "database is not configured")

func (s *likelihoodService) Get(ctx context.Context, conversationID string, force bool) (*dto.DiseaseLikelihoodResponse, error) {
	if s.uowFactory == nil {
		return nil, errNoDatabase
	}

	if !force {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		existing, err := uow.LikelihoodRepository().FindByConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return toLikelihoodResponse(existing, "db"), nil
		}
	}

	return s.Recompute(ctx, conversationID)
}

func (s *likelihoodService) Recompute(ctx context.Context, conversationID string) (*dto.DiseaseLikelihoodResponse, error) {
	if s.uowFactory == nil {
		return nil, errNoDatabase
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.MessageRepository().FindByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fiber.NewError(fiber.StatusNotFound, "No messages for conversation")
	}

	lines := make([]likelihood.Line, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, likelihood.Line{Role: m.Role, Message: m.Message})
	}

	res, err := s.analyzer.Analyze(ctx, lines)
	if err != nil {
		if errors.Is(err, likelihood.ErrNoTranscript) {
			return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return nil, err
	}

	snapshot := &entity.LikelihoodSnapshot{
		ConversationId: conversationID,
		AnalyzedAt:     res.AnalyzedAt,
		FlaggedRiskPct: res.FlaggedRiskPct,
		Symptoms:       res.Symptoms,
		TopConditions:  res.TopConditions,
		Matches:        res.Matches,
	}
	if err := uow.LikelihoodRepository().Upsert(ctx, snapshot); err != nil {
		return nil, err
	}

	s.logger.Info(likelihoodModule, "Likelihood recomputed", map[string]interface{}{
		"conversation_id": conversationID,
		"matches":         len(res.Matches),
	})
	return toLikelihoodResponse(snapshot, "computed"), nil
}

func toLikelihoodResponse(s *entity.LikelihoodSnapshot, source string) *dto.DiseaseLikelihoodResponse {
	return &dto.DiseaseLikelihoodResponse{
		ConversationId: s.ConversationId,
		Symptoms:       s.Symptoms,
		TopDiseases:    s.TopConditions,
		FlaggedRiskPct: s.FlaggedRiskPct,
		Matches:        s.Matches,
		AnalyzedAt:     s.AnalyzedAt,
		Source:         source,
	}
}
