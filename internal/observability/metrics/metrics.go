// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "emi_voice"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Stream metrics (gRPC and websocket transports)
	StreamsTotal   *prometheus.CounterVec
	StreamsActive  *prometheus.GaugeVec
	StreamDuration *prometheus.HistogramVec

	// Conversation metrics
	StateTransitions *prometheus.CounterVec
	TurnsTotal       *prometheus.CounterVec
	TurnLatency      prometheus.Histogram

	// Transcript metrics
	FragmentsTotal *prometheus.CounterVec
	UtterancesTotal *prometheus.CounterVec

	// Resolver metrics
	ResolverTier      *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	SentimentOutcomes *prometheus.CounterVec

	// Voice metrics
	SpeechPath     *prometheus.CounterVec
	SynthesisBytes prometheus.Counter

	// Capture metrics
	CaptureRestarts *prometheus.CounterVec
	CaptureErrors   *prometheus.CounterVec
	AudioBytes      prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Archive metrics
	ArchiveErrors *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
// It registers with the default registry, so call it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of conversation sessions opened",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open conversation sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of conversation sessions in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		StreamsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of client streams started",
		}, []string{"transport"}),
		StreamsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active client streams",
		}, []string{"transport"}),
		StreamDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of client streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"transport", "result"}),

		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of conversation state transitions",
		}, []string{"from", "to"}),
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns appended",
		}, []string{"speaker"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "Time from utterance emission to reply text",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}),

		FragmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Total number of transcript fragments received",
		}, []string{"kind"}),
		UtterancesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterances emitted for processing",
		}, []string{"trigger"}),

		ResolverTier: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_tier_total",
			Help:      "Replies produced per resolver tier",
		}, []string{"tier"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total number of remote provider failures",
		}, []string{"provider", "reason"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Remote provider call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		SentimentOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_total",
			Help:      "Sentiment labels attached to user utterances",
		}, []string{"sentiment"}),

		SpeechPath: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_total",
			Help:      "Replies spoken per rendering path and outcome",
		}, []string{"path", "result"}),
		SynthesisBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_bytes_total",
			Help:      "Total bytes of synthesized audio produced",
		}),

		CaptureRestarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_restarts_total",
			Help:      "Automatic capture restarts after unexpected engine end",
		}, []string{"result"}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Capture engine errors by kind",
		}, []string{"kind"}),
		AudioBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received for server-side recognition",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Fire-and-forget archive write failures",
		}, []string{"sink"}),
	}
}

// RecordSessionStart records a new session opening.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session closing.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordStreamStart records a client stream starting.
func (m *Metrics) RecordStreamStart(transport string) {
	m.StreamsTotal.WithLabelValues(transport).Inc()
	m.StreamsActive.WithLabelValues(transport).Inc()
}

// RecordStreamEnd records a client stream ending.
func (m *Metrics) RecordStreamEnd(transport string, success bool, durationSeconds float64) {
	m.StreamsActive.WithLabelValues(transport).Dec()
	result := "success"
	if !success {
		result = "failed"
	}
	m.StreamDuration.WithLabelValues(transport, result).Observe(durationSeconds)
}

// RecordTransition records a conversation state transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordTurn records an appended conversation turn.
func (m *Metrics) RecordTurn(speaker string) {
	m.TurnsTotal.WithLabelValues(speaker).Inc()
}

// RecordTurnLatency records the time taken to resolve a reply.
func (m *Metrics) RecordTurnLatency(seconds float64) {
	m.TurnLatency.Observe(seconds)
}

// RecordFragment records a transcript fragment.
func (m *Metrics) RecordFragment(final bool) {
	kind := "interim"
	if final {
		kind = "final"
	}
	m.FragmentsTotal.WithLabelValues(kind).Inc()
}

// RecordUtterance records an utterance emission with its trigger (final, debounce).
func (m *Metrics) RecordUtterance(trigger string) {
	m.UtterancesTotal.WithLabelValues(trigger).Inc()
}

// RecordResolverTier records which tier produced a reply.
func (m *Metrics) RecordResolverTier(tier string) {
	m.ResolverTier.WithLabelValues(tier).Inc()
}

// RecordProviderCall records a remote provider call outcome.
func (m *Metrics) RecordProviderCall(provider string, err error, latencySeconds float64) {
	m.ProviderLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.ProviderErrors.WithLabelValues(provider, "error").Inc()
	}
}

// RecordProviderError records a provider failure with a reason label.
func (m *Metrics) RecordProviderError(provider, reason string) {
	m.ProviderErrors.WithLabelValues(provider, reason).Inc()
}

// RecordSentiment records a sentiment label.
func (m *Metrics) RecordSentiment(sentiment string) {
	m.SentimentOutcomes.WithLabelValues(sentiment).Inc()
}

// RecordSpeech records how a reply was rendered.
func (m *Metrics) RecordSpeech(path string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SpeechPath.WithLabelValues(path, result).Inc()
}

// RecordSynthesis records synthesized audio size.
func (m *Metrics) RecordSynthesis(bytes int) {
	m.SynthesisBytes.Add(float64(bytes))
}

// RecordCaptureRestart records an automatic capture restart attempt.
func (m *Metrics) RecordCaptureRestart(result string) {
	m.CaptureRestarts.WithLabelValues(result).Inc()
}

// RecordCaptureError records a capture engine error.
func (m *Metrics) RecordCaptureError(kind string) {
	m.CaptureErrors.WithLabelValues(kind).Inc()
}

// RecordAudioReceived records audio bytes received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytes.Add(float64(bytes))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordArchiveError records a failed archive write.
func (m *Metrics) RecordArchiveError(sink string) {
	m.ArchiveErrors.WithLabelValues(sink).Inc()
}
