package service

import (
	"context"
	"fmt"

	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/embedding"
	"clinical-assistant-be/pkg/events"
	pktNats "clinical-assistant-be/pkg/nats"
)

const reloaderModule = "IndexReloader"

// EventSubscriber is the durable-consumer side of the event bus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

type IIndexReloaderService interface {
	Start(ctx context.Context) error
	// Reload loads the configured index files and swaps them in.
	Reload(ctx context.Context) error
}

type indexReloaderService struct {
	handle       *corpus.Handle
	provider     embedding.Provider
	subscriber   EventSubscriber
	indexPath    string
	metadataPath string
	durableName  string
	logger       logger.ILogger
}

func NewIndexReloaderService(
	handle *corpus.Handle,
	provider embedding.Provider,
	subscriber EventSubscriber,
	indexPath, metadataPath, durableName string,
	logger logger.ILogger,
) IIndexReloaderService {
	return &indexReloaderService{
		handle:       handle,
		provider:     provider,
		subscriber:   subscriber,
		indexPath:    indexPath,
		metadataPath: metadataPath,
		durableName:  durableName,
		logger:       logger,
	}
}

func (s *indexReloaderService) Start(ctx context.Context) error {
	if s.subscriber == nil {
		return fmt.Errorf("no event subscriber configured")
	}
	return s.subscriber.Subscribe(ctx, events.TypeCorpusIndexUpdated, s.durableName, func(ctx context.Context, event events.Event) error {
		// The event is only a signal; paths it carries are never opened.
		if announced := events.StringField(event, "index_path"); announced != "" && announced != s.indexPath {
			s.logger.Warn(reloaderModule, "Ignoring announced index path", map[string]interface{}{
				"announced":  announced,
				"configured": s.indexPath,
			})
		}
		return s.Reload(ctx)
	})
}

// Reload leaves the current index in place when loading fails.
func (s *indexReloaderService) Reload(_ context.Context) error {
	next := corpus.NewIndex(s.provider, s.logger)
	if err := next.Load(s.indexPath, s.metadataPath); err != nil {
		s.logger.Error(reloaderModule, "Index reload failed", map[string]interface{}{
			"index_path": s.indexPath,
			"error":      err.Error(),
		})
		return err
	}

	s.handle.Swap(next)
	s.logger.Info(reloaderModule, "Index swapped", map[string]interface{}{
		"index_path": s.indexPath,
		"cases":      next.Stats().TotalCases,
	})
	return nil
}
