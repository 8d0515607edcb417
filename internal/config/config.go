// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	Conversation  ConversationConfig
	LLM           LLMConfig
	AWS           AWSConfig
	Kafka         KafkaConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener settings.
type ServiceConfig struct {
	Principal   string
	GRPCPort    string
	HTTPPort    string
	MetricsAddr string
	Env         string
}

// STTConfig selects and configures the speech capture engine.
type STTConfig struct {
	Provider       string // mock, client or google
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string

	// Guardrails for server-side captures
	MaxAudioBytes      int64
	MaxCaptureDuration time.Duration
	MaxFragments       int
}

// ConversationConfig tunes turn taking.
type ConversationConfig struct {
	Debounce        time.Duration
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
	MaxRestarts     int
	ProviderTimeout time.Duration
	PlaybackTimeout time.Duration
	ErrorBanner     time.Duration
	Greeting        bool
	VoiceID         string
	OutputFormat    string
	SupportPhone    string
}

// LLMConfig selects the reply generator.
type LLMConfig struct {
	Provider string // none, bedrock, gemini, openai or ollama
	Model    string
	APIKey   string
	BaseURL  string
}

// AWSConfig holds AWS region and per-service switches.
type AWSConfig struct {
	Region           string
	LexBotName       string
	LexBotAlias      string
	EnableComprehend bool
	EnableLex        bool
	EnablePolly      bool
}

// KafkaConfig configures event publishing.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicTurns  string
	TopicStates string
	Principal   string
}

// RedisConfig configures the turn mirror. An empty Addr keeps turns in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables, falling back to defaults.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-emi-reminder")

	return &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:    envOrDefault("HTTP_PORT", "3000"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			Env:         envOrDefault("ENV", "production"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "client"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 8000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),

			MaxAudioBytes:      envOrDefaultInt64("CAPTURE_MAX_AUDIO_BYTES", 5*1024*1024),
			MaxCaptureDuration: envOrDefaultDuration("CAPTURE_MAX_DURATION", 5*time.Minute),
			MaxFragments:       envOrDefaultInt("CAPTURE_MAX_FRAGMENTS", 500),
		},
		Conversation: ConversationConfig{
			Debounce:        envOrDefaultDuration("CONVERSATION_DEBOUNCE", 3*time.Second),
			RestartDelay:    envOrDefaultDuration("CONVERSATION_RESTART_DELAY", 100*time.Millisecond),
			MaxRestartDelay: envOrDefaultDuration("CONVERSATION_MAX_RESTART_DELAY", 2*time.Second),
			MaxRestarts:     envOrDefaultInt("CONVERSATION_MAX_RESTARTS", 5),
			ProviderTimeout: envOrDefaultDuration("CONVERSATION_PROVIDER_TIMEOUT", 10*time.Second),
			PlaybackTimeout: envOrDefaultDuration("CONVERSATION_PLAYBACK_TIMEOUT", 60*time.Second),
			ErrorBanner:     envOrDefaultDuration("CONVERSATION_ERROR_BANNER", 5*time.Second),
			Greeting:        envOrDefaultBool("CONVERSATION_GREETING", true),
			VoiceID:         envOrDefault("POLLY_VOICE_ID", "Joanna"),
			OutputFormat:    envOrDefault("POLLY_OUTPUT_FORMAT", "mp3"),
			SupportPhone:    envOrDefault("SUPPORT_PHONE", "1800-123-4567"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(envOrDefault("LLM_PROVIDER", "none")),
			Model:    os.Getenv("LLM_MODEL"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		},
		AWS: AWSConfig{
			Region:           envOrDefault("AWS_REGION", "ap-southeast-1"),
			LexBotName:       envOrDefault("LEX_BOT_NAME", "EMIReminderBot"),
			LexBotAlias:      envOrDefault("LEX_BOT_ALIAS", "$LATEST"),
			EnableComprehend: envOrDefaultBool("AWS_ENABLE_COMPREHEND", false),
			EnableLex:        envOrDefaultBool("AWS_ENABLE_LEX", false),
			EnablePolly:      envOrDefaultBool("AWS_ENABLE_POLLY", false),
		},
		Kafka: KafkaConfig{
			Enabled:     envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:     envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicTurns:  envOrDefault("KAFKA_TOPIC_TURNS", "emi.conversation.turn"),
			TopicStates: envOrDefault("KAFKA_TOPIC_STATES", "emi.conversation.state"),
			Principal:   envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envOrDefaultInt("REDIS_DB", 0),
			TTL:      envOrDefaultDuration("REDIS_TURN_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:  strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
