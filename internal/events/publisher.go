// Package events publishes conversation turns and state transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes turn and state events to separate Kafka topics.
type Publisher struct {
	writerTurns  messageWriter
	writerStates messageWriter
	principal    string
	topicTurns   string
	topicStates  string
	enabled      bool
	metrics      *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers     []string
	TopicTurns  string
	TopicStates string
	Principal   string
	Enabled     bool
}

// New creates a Kafka publisher. A nil or disabled config yields a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:   cfg.Principal,
			topicTurns:  cfg.TopicTurns,
			topicStates: cfg.TopicStates,
			enabled:     false,
			metrics:     m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurns", cfg.TopicTurns).
		Str("topicStates", cfg.TopicStates).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTurns:  newWriter(cfg.Brokers, cfg.TopicTurns, transport),
		writerStates: newWriter(cfg.Brokers, cfg.TopicStates, transport),
		principal:    cfg.Principal,
		topicTurns:   cfg.TopicTurns,
		topicStates:  cfg.TopicStates,
		enabled:      true,
		metrics:      m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishTurn publishes a conversation turn, keyed by session so a session's turns stay ordered.
func (p *Publisher) PublishTurn(ctx context.Context, ev models.TurnEvent) error {
	return p.publish(ctx, p.writerTurns, p.topicTurns, ev.EventType, ev.SessionID, ev)
}

// PublishState publishes a conversation state transition.
func (p *Publisher) PublishState(ctx context.Context, ev models.StateEvent) error {
	return p.publish(ctx, p.writerStates, p.topicStates, ev.EventType, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var errs []error
	if p.writerTurns != nil {
		if err := p.writerTurns.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing turns writer")
			errs = append(errs, err)
		}
	}
	if p.writerStates != nil {
		if err := p.writerStates.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing states writer")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
