// Package google provides a capture engine backed by Google Cloud Speech-to-Text streaming recognition.
// Audio frames are pushed by the session transport through SendAudio.
package google

import (
	"context"
	"errors"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
)

// ErrNotStarted is returned when audio is sent before Start.
var ErrNotStarted = errors.New("google capture not started")

// Config holds recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns the recognition settings used for telephone-quality audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// Engine implements stt.AudioEngine using Google Cloud Speech-to-Text.
type Engine struct {
	client *speech.Client
	open   func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)
	cfg    Config

	mu      sync.Mutex
	stream  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
	epoch   uint64
	metrics *metrics.Metrics
}

// New creates a Google capture engine.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	e := newEngine(cfg, func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return c.StreamingRecognize(ctx)
	})
	e.client = c
	return e, nil
}

func newEngine(cfg Config, open func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)) *Engine {
	return &Engine{
		open:    open,
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
	}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "google"
}

// Start opens a streaming recognition session and sends the initial config.
func (e *Engine) Start(ctx context.Context, sink stt.Sink) error {
	e.Stop()

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := e.open(streamCtx)
	if err != nil {
		cancel()
		return classify(err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(e.cfg.AudioEncoding),
					SampleRateHertz:            e.cfg.SampleRateHz,
					LanguageCode:               e.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: e.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return classify(err)
	}

	e.mu.Lock()
	e.epoch++
	epoch := e.epoch
	e.stream = stream
	e.cancel = cancel
	e.mu.Unlock()

	go e.listen(stream, epoch, sink)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (e *Engine) SendAudio(ctx context.Context, audio []byte) error {
	e.mu.Lock()
	stream := e.stream
	e.mu.Unlock()

	if stream == nil {
		return ErrNotStarted
	}
	e.metrics.RecordAudioReceived(len(audio))
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Stop ends the streaming session. Idempotent.
func (e *Engine) Stop() error {
	e.mu.Lock()
	stream, cancel := e.stream, e.cancel
	e.stream, e.cancel = nil, nil
	e.epoch++
	e.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// Close stops any capture and closes the underlying client.
func (e *Engine) Close() error {
	e.Stop()
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// live reports whether epoch is still the current capture.
func (e *Engine) live(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch == epoch
}

// listen receives recognition responses and forwards them to the sink.
func (e *Engine) listen(stream speechpb.Speech_StreamingRecognizeClient, epoch uint64, sink stt.Sink) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if !e.live(epoch) {
				return
			}
			e.finish(epoch, err, sink)
			return
		}
		if !e.live(epoch) {
			return
		}

		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			alt := r.GetAlternatives()[0]
			sink.OnFragment(models.Utterance{
				Text:       alt.GetTranscript(),
				IsFinal:    r.GetIsFinal(),
				Confidence: float64(alt.GetConfidence()),
			})
		}
	}
}

// finish reports how the stream ended. Every unrequested end is followed by OnCaptureEnded.
func (e *Engine) finish(epoch uint64, err error, sink stt.Sink) {
	e.mu.Lock()
	if e.epoch == epoch {
		e.stream, e.cancel = nil, nil
	}
	e.mu.Unlock()

	if !errors.Is(err, io.EOF) {
		ce := classify(err)
		e.metrics.RecordCaptureError(string(ce.Kind))
		log.Warn().Err(err).Str("kind", string(ce.Kind)).Msg("Google streaming recognition ended with error")
		sink.OnCaptureError(ce)
	}
	sink.OnCaptureEnded()
}

// classify maps gRPC status codes to capture error kinds.
func classify(err error) *stt.CaptureError {
	st, _ := status.FromError(err)
	kind := stt.KindUnknown
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = stt.KindPermissionDenied
	case codes.Unavailable, codes.DeadlineExceeded:
		kind = stt.KindNetwork
	case codes.OutOfRange:
		// Stream duration or audio timeout limits.
		kind = stt.KindNoSpeech
	case codes.Canceled:
		kind = stt.KindAborted
	}
	return &stt.CaptureError{Kind: kind, Message: st.Message(), Err: err}
}

// parseAudioEncoding converts an encoding name to the recognition enum. Unknown names use LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
