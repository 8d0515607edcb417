// Package app wires process-wide collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"github.com/consultedge/emi-reminder-ai/internal/archive"
	"github.com/consultedge/emi-reminder-ai/internal/config"
	"github.com/consultedge/emi-reminder-ai/internal/events"
	"github.com/consultedge/emi-reminder-ai/internal/observability/logging"
	"github.com/consultedge/emi-reminder-ai/internal/service/conversation"
	"github.com/consultedge/emi-reminder-ai/internal/service/llm"
	"github.com/consultedge/emi-reminder-ai/internal/service/nlu"
	"github.com/consultedge/emi-reminder-ai/internal/service/responder"
	"github.com/consultedge/emi-reminder-ai/internal/service/sentiment"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
	"github.com/consultedge/emi-reminder-ai/internal/store/turns"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Responder   conversation.Responder
	Synthesizer tts.Provider // nil when Polly is disabled
	Voice       tts.SynthesizeOptions
	Sessions    *session.Manager
	Turns       turns.Store
	Publisher   *events.Publisher
	Recorder    *archive.Recorder

	closers []func() error
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	a.Logger.Info().
		Str("method", "New").
		Msg("EMI reminder application created")
	return a
}

// setupLogger configures the global zerolog logger for the service.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	if a.Cfg.Observability.LogLevel != "" {
		lc.Level = a.Cfg.Observability.LogLevel
	}
	if a.Cfg.Observability.LogFormat != "" {
		lc.Format = a.Cfg.Observability.LogFormat
	}
	if a.Cfg.Service.Env == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	a.Logger = logging.WithComponent("application")
	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// Start builds the provider chain, the event sinks and the session manager.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()

	awsCfg, err := a.loadAWS(ctx)
	if err != nil {
		return err
	}

	generator, err := llm.New(ctx, llm.Config{
		Provider: a.Cfg.LLM.Provider,
		Model:    a.Cfg.LLM.Model,
		APIKey:   a.Cfg.LLM.APIKey,
		BaseURL:  a.Cfg.LLM.BaseURL,
	}, awsCfg)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	var classifier sentiment.Classifier = sentiment.Neutral{}
	if a.Cfg.AWS.EnableComprehend {
		classifier = sentiment.NewComprehend(awsCfg)
	}
	var intents nlu.Service
	if a.Cfg.AWS.EnableLex {
		intents = nlu.NewLex(awsCfg, a.Cfg.AWS.LexBotName, a.Cfg.AWS.LexBotAlias)
	}
	if a.Cfg.AWS.EnablePolly {
		a.Synthesizer = tts.NewPolly(awsCfg, a.Cfg.Conversation.VoiceID)
	}
	a.Voice = tts.SynthesizeOptions{
		Voice:  a.Cfg.Conversation.VoiceID,
		Format: a.Cfg.Conversation.OutputFormat,
	}

	timeout := a.Cfg.Conversation.ProviderTimeout
	rules := responder.NewRuleResponder(a.Cfg.Conversation.SupportPhone)
	a.Responder = responder.New(responder.NewResolver(generator, rules, timeout), classifier, intents, timeout)

	a.Publisher = events.New(&events.Config{
		Brokers:     a.Cfg.Kafka.Brokers,
		TopicTurns:  a.Cfg.Kafka.TopicTurns,
		TopicStates: a.Cfg.Kafka.TopicStates,
		Principal:   a.Cfg.Kafka.Principal,
		Enabled:     a.Cfg.Kafka.Enabled,
	})

	if a.Cfg.Redis.Addr != "" {
		store, err := turns.NewRedis(ctx, turns.RedisConfig{
			Addr:     a.Cfg.Redis.Addr,
			Password: a.Cfg.Redis.Password,
			DB:       a.Cfg.Redis.DB,
			TTL:      a.Cfg.Redis.TTL,
		})
		if err != nil {
			return fmt.Errorf("redis turn store: %w", err)
		}
		a.Turns = store
		a.closers = append(a.closers, store.Close)
	} else {
		a.Turns = turns.NewMemory(0)
	}

	a.Recorder = archive.New(a.Publisher, a.Turns, archive.DefaultQueueSize, archive.DefaultWriteTimeout)

	a.Sessions = session.NewManager(session.Dependencies{
		Responder:       a.Responder,
		Synthesizer:     a.Synthesizer,
		Recorder:        a.Recorder,
		Engines:         session.NewEngineFactory(a.Cfg.STT),
		CaptureProvider: a.Cfg.STT.Provider,
		Voice:           a.Voice,
		Conversation:    a.Cfg.Conversation,
	})

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("llm", a.Cfg.LLM.Provider).
		Bool("comprehend", a.Cfg.AWS.EnableComprehend).
		Bool("lex", a.Cfg.AWS.EnableLex).
		Bool("polly", a.Cfg.AWS.EnablePolly).
		Bool("kafka", a.Publisher.Enabled()).
		Str("capture", a.Cfg.STT.Provider).
		Msg("EMI reminder service starting")
	return nil
}

// loadAWS resolves shared AWS configuration when any AWS-backed provider is on.
func (a *Application) loadAWS(ctx context.Context) (aws.Config, error) {
	c := a.Cfg.AWS
	if !c.EnableComprehend && !c.EnableLex && !c.EnablePolly && a.Cfg.LLM.Provider != "bedrock" {
		return aws.Config{Region: c.Region}, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// Ready reports whether Start completed.
func (a *Application) Ready() bool {
	return a.Sessions != nil
}

// Shutdown closes sessions first so their final turns reach the archive.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("EMI reminder service shutting down")

	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.Recorder != nil {
		a.Recorder.Close()
	}

	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	if err := errors.Join(errs...); err != nil {
		shutdownLogger.Error().Err(err).Msg("Shutdown completed with errors")
	}
}
