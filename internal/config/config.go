package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Corpus   CorpusConfig
	Live     LiveConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	JWTSecret string
	OpenAI    string
}

type AIConfig struct {
	EmbeddingProvider string // "hash", "ollama" or "openai"
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "ollama", "openai" or "none"
	LLMModel          string
	LLMBaseURL        string
}

type CorpusConfig struct {
	JSONPath              string
	IndexPath             string
	MetadataPath          string
	MaxResults            int
	SimilarityThreshold   float64
	MaxSuggestedQuestions int
	FlaggedCategory       string
	FlaggedRedFlag        string
}

type LiveConfig struct {
	Backend          string // "memory" or "redis"
	SessionTTL       time.Duration
	HistoryCap       int
	HistoryKeep      int
	FollowupCap      int
	FollowupKeep     int
	AskedMinOverlap  int
	AskedMinRatio    float64
	DedupSimilarity  float64
	AnalyzeTopicName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			JWTSecret: getEnv("JWT_SECRET", ""),
			OpenAI:    getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "hash"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		},
		Corpus: CorpusConfig{
			JSONPath:              getEnv("CORPUS_JSON_PATH", "cases.json"),
			IndexPath:             getEnv("CORPUS_INDEX_PATH", "medical_cases.index"),
			MetadataPath:          getEnv("CORPUS_METADATA_PATH", "medical_cases_metadata.msgpack"),
			MaxResults:            getEnvAsInt("SEARCH_MAX_RESULTS", 10),
			SimilarityThreshold:   getEnvAsFloat("SEARCH_SIMILARITY_THRESHOLD", 0.19),
			MaxSuggestedQuestions: getEnvAsInt("MAX_SUGGESTED_QUESTIONS", 9),
			FlaggedCategory:       getEnv("FLAGGED_CATEGORY", "cancer"),
			FlaggedRedFlag:        getEnv("FLAGGED_RED_FLAG", "Possible cancer-related bleeding"),
		},
		Live: LiveConfig{
			Backend:          getEnv("LIVE_SESSION_BACKEND", "memory"),
			SessionTTL:       getEnvAsDuration("LIVE_SESSION_TTL", 0),
			HistoryCap:       getEnvAsInt("LIVE_HISTORY_CAP", 400),
			HistoryKeep:      getEnvAsInt("LIVE_HISTORY_KEEP", 300),
			FollowupCap:      getEnvAsInt("LIVE_FOLLOWUP_CAP", 200),
			FollowupKeep:     getEnvAsInt("LIVE_FOLLOWUP_KEEP", 150),
			AskedMinOverlap:  getEnvAsInt("ASKED_MIN_OVERLAP", 3),
			AskedMinRatio:    getEnvAsFloat("ASKED_MIN_RATIO", 0.55),
			DedupSimilarity:  getEnvAsFloat("DEDUP_SIMILARITY", 0.75),
			AnalyzeTopicName: getEnv("ANALYZE_CONVERSATION_TOPIC_NAME", "ANALYZE_CONVERSATION"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90m") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
