package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/consultedge/emi-reminder-ai/internal/app"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/schema"
	"github.com/consultedge/emi-reminder-ai/internal/service/conversation"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
	"github.com/consultedge/emi-reminder-ai/internal/service/tts"
	"github.com/consultedge/emi-reminder-ai/internal/store/turns"
)

// Deps are the collaborators the HTTP API serves.
type Deps struct {
	Responder   conversation.Responder
	Synthesizer tts.Provider // nil disables /api/polly/synthesize
	Voice       tts.SynthesizeOptions
	Sessions    *session.Manager
	Turns       turns.Store
	Ready       func() bool
	StartedAt   time.Time
}

// handler carries the dependencies of every route.
type handler struct {
	Deps
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	return newRouter(Deps{
		Responder:   application.Responder,
		Synthesizer: application.Synthesizer,
		Voice:       application.Voice,
		Sessions:    application.Sessions,
		Turns:       application.Turns,
		Ready:       application.Ready,
		StartedAt:   application.StartupTime,
	})
}

func newRouter(deps Deps) http.Handler {
	if deps.Ready == nil {
		deps.Ready = func() bool { return true }
	}
	h := &handler{
		Deps:      deps,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !h.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("starting"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/chat", h.chat)
		r.Post("/chat/voice", h.chatVoice)
		r.Post("/polly/synthesize", h.synthesize)
		r.Post("/speech/debug", h.speechDebug)
		r.Get("/conversations/ws", h.conversationSocket)
		r.Get("/conversations/{sessionID}/turns", h.conversationTurns)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "API endpoint not found", r.Method+" "+r.URL.Path)
	})

	return r
}
