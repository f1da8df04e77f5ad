package bootstrap

import (
	"context"
	"log"

	"ai-command-arbiter/internal/config"
	"ai-command-arbiter/internal/controller"
	"ai-command-arbiter/internal/pkg/logger"
	"ai-command-arbiter/internal/repository/contract"
	"ai-command-arbiter/internal/repository/implementation"
	"ai-command-arbiter/internal/repository/memory"
	"ai-command-arbiter/internal/repository/redisstore"
	"ai-command-arbiter/internal/service"
	"ai-command-arbiter/pkg/arbiter/arbitration"
	"ai-command-arbiter/pkg/llm/factory"

	pktNats "ai-command-arbiter/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ArbiterController controller.IArbiterController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	SysLogger *logger.ZapLogger
}

// NewContainer wires the arbiter. db may be nil, in which case turn logs are
// not persisted and the turn-log endpoint answers 503.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	telemetryLog := logger.NewIsolatedLogger(cfg.App.TelemetryLogPath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. LLM boundary
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	boundary := arbitration.NewLLMBoundary(llmProvider, cfg.Ai.LLMRatePerSecond, cfg.Ai.LLMBurst, sysLogger)

	// 4. Infrastructure
	// NATS
	var forwarder service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		forwarder = natsPub
	}

	// Session store
	sessionRepo := newSessionRepository(cfg)

	// Turn logs
	var turnLogRepo contract.TurnLogRepository
	if db != nil {
		turnLogRepo = implementation.NewTurnLogRepository(db)
	} else {
		log.Printf("[WARN] No database configured, turn logs are not persisted")
	}

	// 5. Services
	telemetryService := service.NewTelemetryService(pubSub, service.TelemetryTopic, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		service.TelemetryTopic,
		turnLogRepo,
		forwarder,
		telemetryLog,
		sysLogger,
	)

	arbiterService := service.NewArbiterService(
		boundary,
		telemetryService,
		sessionRepo,
		turnLogRepo,
		telemetryLog,
		cfg.Arbiter.ToEngineConfig(),
		sysLogger,
	)

	// 6. Controllers
	return &Container{
		ArbiterController: controller.NewArbiterController(arbiterService),
		ConsumerService:   consumerService,
		SysLogger:         sysLogger,
	}
}

func newSessionRepository(cfg *config.Config) contract.SessionRepository {
	if cfg.App.SessionStore != "redis" {
		log.Printf("[INFO] Using in-memory session store (ttl %s)", cfg.App.SessionTTL)
		return memory.NewSessionRepository(cfg.App.SessionTTL)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to in-memory sessions", err)
		_ = rdb.Close()
		return memory.NewSessionRepository(cfg.App.SessionTTL)
	}

	log.Printf("[INFO] Using Redis session store (ttl %s)", cfg.App.SessionTTL)
	return redisstore.NewSessionRepository(rdb, cfg.App.SessionTTL)
}
