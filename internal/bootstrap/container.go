package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clinical-assistant-be/internal/config"
	"clinical-assistant-be/internal/controller"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/internal/pkg/serverutils"
	"clinical-assistant-be/internal/repository/unitofwork"
	"clinical-assistant-be/internal/service"
	"clinical-assistant-be/internal/websocket"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/embedding"
	"clinical-assistant-be/pkg/likelihood"
	"clinical-assistant-be/pkg/live"
	"clinical-assistant-be/pkg/llm/factory"
	"clinical-assistant-be/pkg/ranking"
	"clinical-assistant-be/pkg/textmatch"

	pktNats "clinical-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const reloaderDurable = "clinical-assistant-index-reloader"

type Container struct {
	// Controllers
	LiveController      controller.ILiveController
	CaseController      controller.ICaseController
	AnalyticsController controller.IAnalyticsController
	HealthController    controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	IndexReloader   service.IIndexReloaderService
	WebSocketHub    *websocket.Hub

	Logger *logger.ZapLogger

	closers []func()
}

// NewContainer wires the application. db may be nil; the analytics
// endpoint then answers 503 and live turns are kept in memory only.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. AI providers
	embeddingProvider, err := NewEmbeddingProvider(cfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Embedding Provider: %v", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s", embeddingProvider.Name())

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmBaseURL(cfg),
		cfg.Keys.OpenAI,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	if llmProvider == nil {
		log.Printf("[INFO] No LLM Provider configured, using deterministic fallbacks")
	} else {
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	}

	// 4. Corpus
	index, err := LoadCorpus(context.Background(), cfg, embeddingProvider, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to prepare case index: %v", err)
	}
	handle := corpus.NewHandle(index)

	// 5. Infrastructure
	var eventPublisher service.EventPublisher
	var eventSubscriber service.EventSubscriber
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			eventSubscriber = natsSub
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	rdb := newRedisClient(cfg.App.RedisURL)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	wsLogger := logger.NewIsolatedLogger("logs/live.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	c.WebSocketHub = wsHub

	store := live.NewStore(newSessionBackend(cfg, rdb), live.Options{
		HistoryCap:   cfg.Live.HistoryCap,
		HistoryKeep:  cfg.Live.HistoryKeep,
		FollowupCap:  cfg.Live.FollowupCap,
		FollowupKeep: cfg.Live.FollowupKeep,
		Matcher: textmatch.Matcher{
			MinOverlap: cfg.Live.AskedMinOverlap,
			MinRatio:   cfg.Live.AskedMinRatio,
		},
	}, sysLogger)

	ranker := ranking.NewRanker(llmProvider, sysLogger, ranking.WithDedupThreshold(cfg.Live.DedupSimilarity))
	aggregator := likelihood.NewAggregator(handle, sysLogger,
		likelihood.WithFlaggedCategory(cfg.Corpus.FlaggedCategory, cfg.Corpus.FlaggedRedFlag))

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Live.AnalyzeTopicName, pubSub)
	likelihoodService := service.NewLikelihoodService(uowFactory, aggregator, sysLogger)
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Live.AnalyzeTopicName,
		likelihoodService,
		sysLogger,
	)

	liveService := service.NewLiveService(service.LiveServiceDeps{
		Store:          store,
		Ranker:         ranker,
		LLM:            llmProvider,
		UowFactory:     uowFactory,
		Publisher:      publisherService,
		EventPublisher: eventPublisher,
		Broadcaster:    wsHub,
		Logger:         sysLogger,
	})

	caseService := service.NewCaseService(handle, service.CaseServiceConfig{
		MaxResults:            cfg.Corpus.MaxResults,
		SimilarityThreshold:   cfg.Corpus.SimilarityThreshold,
		MaxSuggestedQuestions: cfg.Corpus.MaxSuggestedQuestions,
	})

	if eventSubscriber != nil {
		c.IndexReloader = service.NewIndexReloaderService(
			handle,
			embeddingProvider,
			eventSubscriber,
			cfg.Corpus.IndexPath,
			cfg.Corpus.MetadataPath,
			reloaderDurable,
			sysLogger,
		)
	}

	// 7. Controllers
	auth := serverutils.JwtMiddleware(cfg.Keys.JWTSecret)
	c.LiveController = controller.NewLiveController(liveService, wsHub, auth)
	c.CaseController = controller.NewCaseController(caseService, auth)
	c.AnalyticsController = controller.NewAnalyticsController(likelihoodService, auth)
	c.HealthController = controller.NewHealthController(handle, db)

	return c
}

// Close releases broker connections and flushes the logger.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

// NewEmbeddingProvider picks the embedder named by EMBEDDING_PROVIDER.
func NewEmbeddingProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "", "hash":
		return embedding.NewHashProvider(embedding.DefaultHashDimension), nil
	case "ollama":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel), nil
	case "openai":
		if cfg.Keys.OpenAI == "" {
			return nil, errors.New("openai embeddings require OPENAI_API_KEY")
		}
		return embedding.NewOpenAIProvider(cfg.Keys.OpenAI, cfg.Ai.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}

// LoadCorpus loads the saved index files, or builds and saves them from the
// JSON corpus. Files built with another embedding model are rebuilt from the
// corpus. A missing corpus leaves the index unbuilt so searches answer 503;
// corrupt files, failed builds and stale files with no corpus are returned.
func LoadCorpus(ctx context.Context, cfg *config.Config, provider embedding.Provider, sysLogger logger.ILogger) (*corpus.Index, error) {
	index := corpus.NewIndex(provider, sysLogger)

	stale := false
	if corpus.IndexFilesExist(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath) {
		err := index.Load(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath)
		if err == nil {
			return index, nil
		}
		if !errors.Is(err, corpus.ErrModelMismatch) {
			return nil, err
		}
		sysLogger.Warn("Bootstrap", "Saved index uses another embedding model, rebuilding", map[string]interface{}{
			"provider": provider.Name(),
			"error":    err.Error(),
		})
		stale = true
	}

	records, err := corpus.ParseRecordsFile(cfg.Corpus.JSONPath, sysLogger)
	if err != nil {
		if stale {
			return nil, fmt.Errorf("%w: no corpus to rebuild from: %v", corpus.ErrModelMismatch, err)
		}
		sysLogger.Warn("Bootstrap", "Case corpus unavailable, index not built", map[string]interface{}{
			"path":  cfg.Corpus.JSONPath,
			"error": err.Error(),
		})
		return index, nil
	}
	if err := index.Build(ctx, records); err != nil {
		return nil, err
	}
	if err := index.Save(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath); err != nil {
		sysLogger.Warn("Bootstrap", "Failed to save built index", map[string]interface{}{"error": err.Error()})
	}
	return index, nil
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMBaseURL != "" {
		return cfg.Ai.LLMBaseURL
	}
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return ""
}

// newRedisClient returns nil when no Redis URL is configured or the server
// cannot be reached.
func newRedisClient(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: url,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newSessionBackend(cfg *config.Config, rdb *redis.Client) live.Backend {
	if cfg.Live.Backend == "redis" {
		if rdb != nil {
			log.Printf("[INFO] Live sessions stored in Redis")
			return live.NewRedisBackend(rdb, cfg.Live.SessionTTL)
		}
		log.Printf("[WARN] LIVE_SESSION_BACKEND=redis but Redis is unavailable, using memory")
	}
	return live.NewMemoryBackend(cfg.Live.SessionTTL)
}
