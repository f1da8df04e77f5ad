package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/arbiter/engine"
	"ai-command-arbiter/pkg/arbiter/gate"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Arbiter  ArbiterConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	TelemetryLogPath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SessionStore       string // "memory" or "redis"
	SessionTTL         time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider      string // "ollama", "openai", "huggingface"
	LLMModel         string
	LLMBaseURL       string
	LLMAPIKey        string
	LLMRatePerSecond float64
	LLMBurst         int
}

type ArbiterConfig struct {
	StrictMode           bool
	TypoDistance         int
	UncertainDistance    int
	ReplayTTLTurns       int
	FocusPendingTTLTurns int
	LLMTimeout           time.Duration
	MinConfidence        float64
	MaxClarifierOptions  int
	RingSize             int
	MaxPoolSize          int
	EvidenceAllowlist    []string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	def := engine.DefaultConfig()

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			TelemetryLogPath:   getEnv("TELEMETRY_LOG_PATH", "logs/arbiter_telemetry.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			SessionStore:       getEnv("SESSION_STORE", "memory"),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", time.Hour),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:      getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:         getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:        getEnv("LLM_API_KEY", ""),
			LLMRatePerSecond: getEnvAsFloat("LLM_RATE_PER_SECOND", 2),
			LLMBurst:         getEnvAsInt("LLM_BURST", 4),
		},
		Arbiter: ArbiterConfig{
			StrictMode:           getEnvAsBool("ARBITER_STRICT_MODE", false),
			TypoDistance:         getEnvAsInt("ARBITER_TYPO_DISTANCE", def.Scope.TypoDistance),
			UncertainDistance:    getEnvAsInt("ARBITER_UNCERTAIN_DISTANCE", def.Scope.UncertainDistance),
			ReplayTTLTurns:       getEnvAsInt("ARBITER_REPLAY_TTL_TURNS", def.ReplayTTLTurns),
			FocusPendingTTLTurns: getEnvAsInt("ARBITER_FOCUS_PENDING_TTL_TURNS", def.FocusPendingTTLTurns),
			LLMTimeout:           getEnvAsDuration("ARBITER_LLM_TIMEOUT", def.LLMTimeout),
			MinConfidence:        getEnvAsFloat("ARBITER_MIN_CONFIDENCE", def.MinConfidence),
			MaxClarifierOptions:  getEnvAsInt("ARBITER_MAX_CLARIFIER_OPTIONS", def.MaxClarifierOptions),
			RingSize:             getEnvAsInt("ARBITER_RING_SIZE", def.RingSize),
			MaxPoolSize:          getEnvAsInt("ARBITER_MAX_POOL_SIZE", def.MaxPoolSize),
			EvidenceAllowlist:    getEnvAsList("ARBITER_EVIDENCE_ALLOWLIST", arbitration.DefaultEvidenceAllowlist),
		},
	}
}

// ToEngineConfig maps the env section onto the engine's own configuration.
func (a ArbiterConfig) ToEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Scope.TypoDistance = a.TypoDistance
	cfg.Scope.UncertainDistance = a.UncertainDistance
	if a.StrictMode {
		cfg.Mode = gate.ModeStrict
	}
	cfg.ReplayTTLTurns = a.ReplayTTLTurns
	cfg.FocusPendingTTLTurns = a.FocusPendingTTLTurns
	cfg.LLMTimeout = a.LLMTimeout
	cfg.MinConfidence = a.MinConfidence
	cfg.MaxClarifierOptions = a.MaxClarifierOptions
	cfg.RingSize = a.RingSize
	cfg.MaxPoolSize = a.MaxPoolSize
	cfg.EvidenceAllowlist = append([]string(nil), a.EvidenceAllowlist...)
	return cfg
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value; blank entries are dropped.
func getEnvAsList(key string, fallback []string) []string {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
