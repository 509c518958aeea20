package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/likelihood"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/gofiber/fiber/v2"
)

const consumerModule = "ConsumerService"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// ConversationAnalyzer recomputes and stores a conversation's likelihood
// snapshot.
type ConversationAnalyzer interface {
	Recompute(ctx context.Context, conversationID string) (*dto.DiseaseLikelihoodResponse, error)
}

// Retry policy for transient analysis failures. After the last retry the
// message is acked and dropped.
const (
	analyzeMaxRetries      = 3
	analyzeInitialInterval = 500 * time.Millisecond
	analyzeMaxInterval     = 5 * time.Second
)

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	analyzer   ConversationAnalyzer
	retry      middleware.Retry
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	analyzer ConversationAnalyzer,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		analyzer:   analyzer,
		retry: middleware.Retry{
			MaxRetries:      analyzeMaxRetries,
			InitialInterval: analyzeInitialInterval,
			MaxInterval:     analyzeMaxInterval,
			Multiplier:      2,
			ShouldRetry: func(params middleware.RetryParams) bool {
				return !isPermanentAnalyzeError(params.Err)
			},
		},
		logger: logger,
	}
}

// Consume subscribes and processes messages in the background until ctx is
// cancelled or the subscriber closes.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// isPermanentAnalyzeError reports failures a retry cannot fix: no
// transcript, no database, or an index that is missing or corrupt.
func isPermanentAnalyzeError(err error) bool {
	var fiberErr *fiber.Error
	return errors.As(err, &fiberErr) ||
		errors.Is(err, likelihood.ErrNoTranscript) ||
		errors.Is(err, corpus.ErrIndexNotBuilt) ||
		errors.Is(err, corpus.ErrCorruptIndex) ||
		errors.Is(err, corpus.ErrIndexBuild)
}

// processMessage always acks. Transient failures are retried in place with
// backoff first.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.PublishAnalyzeConversationMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.ConversationId == "" {
		cs.logger.Error(consumerModule, "Dropping invalid analyze message", map[string]interface{}{
			"message_id": msg.UUID,
		})
		return
	}

	var res *dto.DiseaseLikelihoodResponse
	analyze := cs.retry.Middleware(func(*message.Message) ([]*message.Message, error) {
		var err error
		res, err = cs.analyzer.Recompute(ctx, payload.ConversationId)
		return nil, err
	})

	if _, err := analyze(msg); err != nil {
		if isPermanentAnalyzeError(err) {
			cs.logger.Warn(consumerModule, "Likelihood analysis skipped", map[string]interface{}{
				"conversation_id": payload.ConversationId,
				"error":           err.Error(),
			})
			return
		}
		cs.logger.Error(consumerModule, "Likelihood analysis failed, giving up", map[string]interface{}{
			"conversation_id": payload.ConversationId,
			"retries":         cs.retry.MaxRetries,
			"error":           err.Error(),
		})
		return
	}

	cs.logger.Info(consumerModule, "Likelihood snapshot stored", map[string]interface{}{
		"conversation_id":  payload.ConversationId,
		"top_diseases":     len(res.TopDiseases),
		"flagged_risk_pct": res.FlaggedRiskPct,
	})
}
