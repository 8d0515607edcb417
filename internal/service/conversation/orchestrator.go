package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/logging"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/service/responder"
	"github.com/consultedge/emi-reminder-ai/internal/service/stt"
	"github.com/consultedge/emi-reminder-ai/internal/service/transcript"
	"github.com/consultedge/emi-reminder-ai/internal/service/voice"
)

// Defaults for the capture restart policy.
const (
	DefaultRestartDelay    = 100 * time.Millisecond
	DefaultMaxRestartDelay = 2 * time.Second
	DefaultMaxRestarts     = 5
)

// ErrorKindRestartExhausted is reported when capture keeps ending and the restart budget runs out.
const ErrorKindRestartExhausted = "restart-exhausted"

// Responder produces the reply for one utterance. It must not fail.
type Responder interface {
	Respond(ctx context.Context, req responder.Request) responder.Reply
}

// Speaker renders a reply and returns once playback has ended.
type Speaker interface {
	Speak(ctx context.Context, text string) voice.Result
}

// Notifier receives user-facing session updates.
type Notifier interface {
	StateChanged(from, to State, reason Reason)
	Status(text string)
	TurnAppended(turn models.ConversationTurn)
	Error(kind, message string)
}

// Recorder archives turns and transitions. Implementations must not block.
type Recorder interface {
	RecordTurn(ev models.TurnEvent)
	RecordState(ev models.StateEvent)
}

// Config configures an orchestrator.
type Config struct {
	SessionID       string
	Profile         models.ClientProfile
	Debounce        time.Duration
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
	MaxRestarts     int
	Greeting        bool
	Now             func() time.Time
}

// Orchestrator is the turn-taking state machine of one session:
// listen, accumulate, resolve, speak, listen again.
type Orchestrator struct {
	cfg       Config
	lifecycle *Lifecycle
	acc       *transcript.Accumulator
	ids       *IDGenerator

	engine    stt.Engine
	responder Responder
	speaker   Speaker
	notifier  Notifier
	recorder  Recorder

	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	active       bool
	runCtx       context.Context
	cancel       context.CancelFunc
	epoch        uint64
	run          uint64
	backoff      retry.Backoff
	restartTimer *time.Timer
	history      []models.ConversationTurn
	wg           sync.WaitGroup
}

// New creates an orchestrator in IDLE state. recorder may be nil.
func New(cfg Config, engine stt.Engine, resp Responder, speaker Speaker, notifier Notifier, recorder Recorder) *Orchestrator {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxRestartDelay <= 0 {
		cfg.MaxRestartDelay = DefaultMaxRestartDelay
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultMaxRestarts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	o := &Orchestrator{
		cfg:       cfg,
		lifecycle: NewLifecycle(),
		ids:       NewIDGenerator(),
		engine:    engine,
		responder: resp,
		speaker:   speaker,
		notifier:  notifier,
		recorder:  recorder,
		logger:    logging.WithSession(cfg.SessionID).With().Str("component", "orchestrator").Logger(),
		metrics:   metrics.DefaultMetrics,
	}
	o.acc = transcript.New(cfg.Debounce, o.onUtterance, notifier.Status)
	return o
}

// State returns the current conversation state.
func (o *Orchestrator) State() State {
	return o.lifecycle.State()
}

// Active reports whether the conversation is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Turns returns a copy of the conversation log.
func (o *Orchestrator) Turns() []models.ConversationTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ConversationTurn(nil), o.history...)
}

// Start begins the conversation, optionally with a spoken greeting.
// After a fatal capture error Start is the explicit retry.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.active || !o.lifecycle.Is(StateIdle) {
		o.mu.Unlock()
		return ErrAlreadyActive
	}
	o.active = true
	o.run++
	run := o.run
	o.runCtx, o.cancel = context.WithCancel(ctx)
	o.backoff = o.newBackoff()
	o.mu.Unlock()

	if !o.cfg.Greeting {
		return o.listen(run, StateIdle, ReasonStarted)
	}

	if err := o.advance(run, StateIdle, StateSpeaking); err != nil {
		return err
	}
	o.moved(StateIdle, StateSpeaking, ReasonGreeting)
	o.detachCapture()

	greeting := responder.Greeting(o.cfg.Profile, o.cfg.Now())
	o.appendTurn(models.SpeakerAssistant, greeting, nil)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.speak(run, greeting)
	}()
	return nil
}

// Stop forces the conversation to IDLE from any state, cancels pending timers
// and disables automatic restarts. In-flight provider calls finish in the background
// and their results are dropped.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	wasActive := o.active
	o.mu.Unlock()

	changed := o.halt(ReasonStopped)
	if !wasActive && !changed {
		return ErrNotActive
	}
	return nil
}

// Wait blocks until in-flight turns have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// halt releases capture and forces IDLE. Returns true if the state changed.
func (o *Orchestrator) halt(reason Reason) bool {
	o.mu.Lock()
	o.active = false
	o.epoch++
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()

	if err := o.engine.Stop(); err != nil {
		o.logger.Warn().Err(err).Str("engine", o.engine.Name()).Msg("Failed to stop capture")
	}
	o.acc.Reset()

	from, changed := o.lifecycle.ForceIdle()
	if changed {
		o.moved(from, StateIdle, reason)
	}
	return changed
}

// listen moves from → LISTENING and starts a capture. Capture start failures
// are reported through the notifier and the restart policy, not returned.
func (o *Orchestrator) listen(run uint64, from State, reason Reason) error {
	if err := o.advance(run, from, StateListening); err != nil {
		return err
	}
	o.moved(from, StateListening, reason)

	// The previous utterance is done even if capture does not come back.
	// Text buffered while busy is scheduled through the debounce timer.
	o.acc.Release()

	if err := o.startCapture(); err != nil {
		o.captureFailed(err)
	}
	return nil
}

// advance moves from → to only while run is still the live conversation.
// Work started by a stopped run must not drive the state of a later one.
func (o *Orchestrator) advance(run uint64, from, to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active || o.run != run {
		return ErrNotActive
	}
	return o.lifecycle.TransitionFrom(from, to)
}

// detachCapture makes callbacks from the current capture stale. The voice
// channel stops the engine itself before playback.
func (o *Orchestrator) detachCapture() {
	o.mu.Lock()
	o.epoch++
	o.mu.Unlock()
}

func (o *Orchestrator) startCapture() error {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return ErrNotActive
	}
	o.epoch++
	sink := &captureSink{o: o, epoch: o.epoch}
	ctx := o.runCtx
	o.mu.Unlock()

	return o.engine.Start(ctx, sink)
}

// captureFailed handles an engine that could not be started.
func (o *Orchestrator) captureFailed(err error) {
	if errors.Is(err, ErrNotActive) {
		return
	}
	var ce *stt.CaptureError
	if !errors.As(err, &ce) {
		ce = &stt.CaptureError{Kind: stt.KindAudioCapture, Message: "failed to start capture", Err: err}
	}
	o.onCaptureError(ce)
	if !ce.Kind.Fatal() {
		o.scheduleRestart()
	}
}

// onUtterance is called by the accumulator with a completed utterance.
func (o *Orchestrator) onUtterance(u models.Utterance, trigger transcript.Trigger) {
	o.mu.Lock()
	run := o.run
	history := append([]models.ConversationTurn(nil), o.history...)
	ctx := o.runCtx
	o.mu.Unlock()

	if err := o.advance(run, StateListening, StateProcessing); err != nil {
		o.logger.Debug().Err(err).Msg("Dropping utterance outside listening")
		o.acc.Reset()
		return
	}
	o.moved(StateListening, StateProcessing, ReasonUtterance)

	o.logger.Info().
		Str("trigger", string(trigger)).
		Float64("confidence", u.Confidence).
		Int("length", len(u.Text)).
		Msg("Utterance complete")

	o.appendTurn(models.SpeakerUser, u.Text, nil)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runTurn(ctx, run, u, history)
	}()
}

// runTurn resolves a reply and speaks it.
func (o *Orchestrator) runTurn(ctx context.Context, run uint64, u models.Utterance, history []models.ConversationTurn) {
	start := time.Now()
	reply := o.responder.Respond(context.WithoutCancel(ctx), responder.Request{
		SessionID: o.cfg.SessionID,
		Text:      u.Text,
		Profile:   o.cfg.Profile,
		History:   history,
	})
	o.metrics.RecordTurnLatency(time.Since(start).Seconds())

	if err := o.advance(run, StateProcessing, StateSpeaking); err != nil {
		o.logger.Info().Str("tier", string(reply.Tier)).Msg("Conversation stopped while resolving, reply dropped")
		return
	}
	o.moved(StateProcessing, StateSpeaking, ReasonReplyReady)
	o.detachCapture()
	o.appendTurn(models.SpeakerAssistant, reply.Text, &reply)

	o.speak(run, reply.Text)
}

// speak renders text and returns to LISTENING unless the conversation was stopped.
func (o *Orchestrator) speak(run uint64, text string) {
	o.mu.Lock()
	ctx := o.runCtx
	o.mu.Unlock()

	res := o.speaker.Speak(ctx, text)
	if res.Err != nil {
		o.logger.Warn().Err(res.Err).Str("path", string(res.Path)).Msg("Speech ended with error")
	}

	if err := o.listen(run, StateSpeaking, ReasonPlaybackEnded); err != nil {
		o.logger.Debug().Err(err).Msg("Not resuming listening")
	}
}

func (o *Orchestrator) appendTurn(speaker models.Speaker, text string, reply *responder.Reply) {
	turn := models.ConversationTurn{
		ID:        o.ids.Next(o.cfg.SessionID, "turn"),
		Speaker:   speaker,
		Text:      text,
		Timestamp: o.cfg.Now(),
	}

	o.mu.Lock()
	o.history = append(o.history, turn)
	o.mu.Unlock()

	o.metrics.RecordTurn(string(speaker))
	o.notifier.TurnAppended(turn)

	ev := models.TurnEvent{
		EventType:  models.TurnEventType,
		SessionID:  o.cfg.SessionID,
		ClientName: o.cfg.Profile.Name,
		Timestamp:  turn.Timestamp.UnixMilli(),
		TurnID:     turn.ID,
		Speaker:    turn.Speaker,
		Text:       turn.Text,
	}
	if reply != nil {
		ev.Tier = string(reply.Tier)
		ev.Sentiment = reply.Sentiment
		ev.Intent = reply.Intent
	}
	o.recorder.RecordTurn(ev)
}

// moved reports a completed transition.
func (o *Orchestrator) moved(from, to State, reason Reason) {
	o.metrics.RecordTransition(from.String(), to.String())
	o.logger.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", string(reason)).
		Msg("State transition")

	o.notifier.StateChanged(from, to, reason)
	o.recorder.RecordState(models.StateEvent{
		EventType: models.StateEventType,
		SessionID: o.cfg.SessionID,
		Timestamp: o.cfg.Now().UnixMilli(),
		From:      from.String(),
		To:        to.String(),
		Reason:    string(reason),
	})
}

func (o *Orchestrator) newBackoff() retry.Backoff {
	b := retry.NewExponential(o.cfg.RestartDelay)
	b = retry.WithCappedDuration(o.cfg.MaxRestartDelay, b)
	return retry.WithMaxRetries(uint64(o.cfg.MaxRestarts), b)
}

// current reports whether epoch belongs to the running capture.
func (o *Orchestrator) current(epoch uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active && o.epoch == epoch
}

func (o *Orchestrator) onFragment(epoch uint64, f models.Utterance) {
	if !o.current(epoch) {
		return
	}
	o.mu.Lock()
	o.backoff = o.newBackoff()
	o.mu.Unlock()

	o.logger.Debug().Bool("final", f.IsFinal).Str("text", f.Text).Msg("Fragment")
	o.acc.OnFragment(f)
}

func (o *Orchestrator) onCaptureError(err *stt.CaptureError) {
	o.metrics.RecordCaptureError(string(err.Kind))

	if err.Kind.Silent() {
		o.logger.Debug().Str("kind", string(err.Kind)).Msg("Ignoring capture error")
		return
	}

	o.logger.Warn().Err(err).Str("kind", string(err.Kind)).Msg("Capture error")
	o.notifier.Error(string(err.Kind), errorMessage(err))

	if err.Kind.Fatal() {
		o.halt(ReasonPermissionDenied)
	}
}

func (o *Orchestrator) onCaptureEnded(epoch uint64) {
	if !o.current(epoch) {
		return
	}
	if s := o.lifecycle.State(); s != StateListening && s != StateProcessing {
		return
	}
	o.logger.Debug().Msg("Capture ended unexpectedly")
	o.scheduleRestart()
}

// scheduleRestart restarts capture after the next backoff delay, or gives up.
func (o *Orchestrator) scheduleRestart() {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	delay, stop := o.backoff.Next()
	if stop {
		o.mu.Unlock()
		o.metrics.RecordCaptureRestart("exhausted")
		o.logger.Warn().Int("maxRestarts", o.cfg.MaxRestarts).Msg("Capture restart budget exhausted")
		o.notifier.Error(ErrorKindRestartExhausted, "Speech recognition keeps stopping. Please start the conversation again.")
		o.halt(ReasonRestartExhausted)
		return
	}
	epoch := o.epoch
	if o.restartTimer != nil {
		o.restartTimer.Stop()
	}
	o.restartTimer = time.AfterFunc(delay, func() { o.restart(epoch) })
	o.mu.Unlock()

	o.logger.Debug().Dur("delay", delay).Msg("Scheduled capture restart")
}

func (o *Orchestrator) restart(epoch uint64) {
	o.mu.Lock()
	o.restartTimer = nil
	o.mu.Unlock()

	// Only restart the capture that ended, and only while it is still wanted.
	if !o.current(epoch) {
		return
	}
	if s := o.lifecycle.State(); s != StateListening && s != StateProcessing {
		return
	}

	if err := o.startCapture(); err != nil {
		o.metrics.RecordCaptureRestart("failed")
		o.captureFailed(err)
		return
	}
	o.metrics.RecordCaptureRestart("ok")
}

func errorMessage(err *stt.CaptureError) string {
	switch err.Kind {
	case stt.KindPermissionDenied:
		return "Microphone access denied. Please allow microphone access and try again."
	case stt.KindNetwork:
		return "Network error occurred. Please check your connection."
	default:
		if err.Message != "" {
			return "Speech recognition error: " + err.Message
		}
		return "Speech recognition error: " + string(err.Kind)
	}
}

// captureSink tags engine callbacks with the capture they belong to.
type captureSink struct {
	o     *Orchestrator
	epoch uint64
}

func (s *captureSink) OnFragment(f models.Utterance) {
	s.o.onFragment(s.epoch, f)
}

func (s *captureSink) OnCaptureError(err *stt.CaptureError) {
	if !s.o.current(s.epoch) {
		return
	}
	s.o.onCaptureError(err)
}

func (s *captureSink) OnCaptureEnded() {
	s.o.onCaptureEnded(s.epoch)
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(models.TurnEvent)   {}
func (nopRecorder) RecordState(models.StateEvent) {}
