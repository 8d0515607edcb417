package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/consultedge/emi-reminder-ai/internal/config"
	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/responder"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
	"github.com/consultedge/emi-reminder-ai/internal/store/turns"
)

type stubResponder struct {
	last responder.Request
}

func (s *stubResponder) Respond(ctx context.Context, req responder.Request) responder.Reply {
	s.last = req
	return responder.Reply{
		Text:      "Thank you " + req.Profile.Name + ".",
		Tier:      responder.TierRules,
		Sentiment: models.SentimentNeutral,
	}
}

type stubSynthesizer struct {
	err  error
	opts tts.SynthesizeOptions
}

func (s *stubSynthesizer) Name() string { return "stub" }

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return &tts.Synthesis{Audio: []byte("abc"), Format: opts.Format}, nil
}

type fixture struct {
	responder   *stubResponder
	synthesizer *stubSynthesizer
	turns       *turns.Memory
	sessions    *session.Manager
	handler     http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		responder:   &stubResponder{},
		synthesizer: &stubSynthesizer{},
		turns:       turns.NewMemory(0),
	}
	f.sessions = session.NewManager(session.Dependencies{
		Responder:       f.responder,
		Engines:         session.NewEngineFactory(config.STTConfig{}),
		CaptureProvider: "client",
		Conversation: config.ConversationConfig{
			Debounce:        time.Second,
			PlaybackTimeout: time.Second,
		},
	})
	f.handler = newRouter(Deps{
		Responder:   f.responder,
		Synthesizer: f.synthesizer,
		Voice:       tts.SynthesizeOptions{Voice: "Joanna", Format: "mp3"},
		Sessions:    f.sessions,
		Turns:       f.turns,
		StartedAt:   time.Now(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, out
}

const clientData = `{"name":"Asha","mobile":"9876543210","totalDue":"15000","emiAmount":2500,"dueDate":"2026-10-23"}`

func TestHealth(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodGet, "/api/health", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["success"] != true || body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
	if body["requestId"] == "" || body["requestId"] == nil {
		t.Error("expected requestId to be echoed")
	}
}

func TestChat(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodPost, "/api/chat",
		`{"message":"I will pay tomorrow","sessionId":"web-1","clientData":`+clientData+`}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["success"] != true || body["response"] != "Thank you Asha." {
		t.Errorf("body = %v", body)
	}
	if body["sessionId"] != "web-1" || body["tier"] != "rules" {
		t.Errorf("body = %v", body)
	}
	if f.responder.last.Profile.TotalOutstanding != 15000 {
		t.Errorf("profile = %+v", f.responder.last.Profile)
	}
}

func TestChat_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"malformed", `{"message":`},
		{"missing message", `{"clientData":` + clientData + `}`},
		{"missing name", `{"message":"hi","clientData":{"totalDue":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			code, body := f.do(t, http.MethodPost, "/api/chat", tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d", code)
			}
			if body["success"] != false || body["message"] == nil || body["error"] == nil {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestChatVoice(t *testing.T) {
	f := newFixture()

	code, body := f.do(t, http.MethodPost, "/api/chat/voice", `{"transcript":"  ","clientData":`+clientData+`}`)
	if code != http.StatusBadRequest || body["message"] != "No transcript provided" {
		t.Errorf("empty transcript: %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/chat/voice",
		`{"transcript":"I lost my job","sessionId":"web-2","clientData":`+clientData+`}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["confidence"] != defaultVoiceConfidence || body["transcript"] != "I lost my job" {
		t.Errorf("body = %v", body)
	}
}

func TestSynthesize(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodPost, "/api/polly/synthesize", `{"text":"Hello Asha","voiceId":"Aditi"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["audioUrl"] != "data:audio/mp3;base64,YWJj" {
		t.Errorf("audioUrl = %v", body["audioUrl"])
	}
	if f.synthesizer.opts.Voice != "Aditi" || f.synthesizer.opts.Format != "mp3" {
		t.Errorf("opts = %+v", f.synthesizer.opts)
	}

	f.synthesizer.err = errors.New("throttled")
	code, body = f.do(t, http.MethodPost, "/api/polly/synthesize", `{"text":"Hello"}`)
	if code != http.StatusBadGateway || body["success"] != false {
		t.Errorf("failure: %d %v", code, body)
	}
}

func TestSynthesize_NotConfigured(t *testing.T) {
	h := newRouter(Deps{Turns: turns.NewMemory(0)})
	req := httptest.NewRequest(http.MethodPost, "/api/polly/synthesize", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSpeechDebug(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodPost, "/api/speech/debug", `{"transcript":"hello","confidence":0.7,"isFinal":true}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	received, _ := body["received"].(map[string]any)
	if received["transcript"] != "hello" || received["isFinal"] != true {
		t.Errorf("received = %v", received)
	}
}

func TestConversationTurns(t *testing.T) {
	f := newFixture()

	code, _ := f.do(t, http.MethodGet, "/api/conversations/missing/turns", "")
	if code != http.StatusNotFound {
		t.Errorf("missing: status = %d", code)
	}

	_ = f.turns.Append(context.Background(), models.TurnEvent{SessionID: "call-9", TurnID: "call-9-turn-1", Speaker: models.SpeakerUser, Text: "hi"})
	code, body := f.do(t, http.MethodGet, "/api/conversations/call-9/turns", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["count"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodGet, "/api/clients", "")
	if code != http.StatusNotFound || body["success"] != false {
		t.Errorf("%d %v", code, body)
	}
}

func TestConversationSocket(t *testing.T) {
	f := newFixture()
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/conversations/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func(typ string) models.Event {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var ev models.Event
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatalf("waiting for %s: %v", typ, err)
			}
			if ev.Type == typ {
				return ev
			}
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)); err != nil {
		t.Fatal(err)
	}
	if ev := read(models.EventError); ev.ErrorKind != session.ErrorKindRequest {
		t.Errorf("malformed message error = %+v", ev)
	}

	start := `{"type":"session.start","sessionId":"ws-1","profile":` + clientData + `}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(start)); err != nil {
		t.Fatal(err)
	}
	if ev := read(models.EventSessionReady); ev.SessionID != "ws-1" {
		t.Errorf("ready = %+v", ev)
	}

	if err := conn.WriteJSON(models.ClientMessage{Type: models.MessageConversationStart}); err != nil {
		t.Fatal(err)
	}
	if ev := read(models.EventState); ev.State != "listening" {
		t.Errorf("state = %+v", ev)
	}
	read(models.EventCaptureStart)

	if err := conn.WriteJSON(models.ClientMessage{Type: "dance"}); err != nil {
		t.Fatal(err)
	}
	if ev := read(models.EventError); ev.ErrorKind != session.ErrorKindRequest {
		t.Errorf("unknown type error = %+v", ev)
	}

	// Live turns are served while the archive is empty.
	code, body := f.do(t, http.MethodGet, "/api/conversations/ws-1/turns", "")
	if code != http.StatusOK || body["count"] != float64(0) {
		t.Errorf("live turns: %d %v", code, body)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	deadline := time.Now().Add(2 * time.Second)
	for f.sessions.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not closed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
