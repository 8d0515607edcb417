package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/responder"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
	"github.com/consultedge/emi-reminder-ai/internal/store/turns"
)

const (
	maxBodyBytes = 1 << 20

	// defaultVoiceConfidence is assumed when a voice transcript arrives without one.
	defaultVoiceConfidence = 0.8
)

type chatRequest struct {
	Message    string               `json:"message"`
	ClientData models.ClientProfile `json:"clientData"`
	SessionID  string               `json:"sessionId"`
}

type voiceChatRequest struct {
	Transcript string               `json:"transcript"`
	ClientData models.ClientProfile `json:"clientData"`
	SessionID  string               `json:"sessionId"`
	Confidence *float64             `json:"confidence"`
}

type synthesizeRequest struct {
	Text         string `json:"text"`
	VoiceID      string `json:"voiceId"`
	OutputFormat string `json:"outputFormat"`
}

type speechDebugRequest struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	active := 0
	if h.Sessions != nil {
		active = h.Sessions.Count()
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":        true,
		"status":         "healthy",
		"service":        "emi-reminder-ai",
		"activeSessions": active,
		"uptimeSeconds":  int64(time.Since(h.StartedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validator.Text("message", req.Message); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid message", err.Error())
		return
	}
	if err := h.validator.Profile(&req.ClientData); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid client data", err.Error())
		return
	}

	reply := h.Responder.Respond(r.Context(), responder.Request{
		SessionID: req.SessionID,
		Text:      req.Message,
		Profile:   req.ClientData,
	})
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"response":  reply.Text,
		"tier":      reply.Tier,
		"sentiment": reply.Sentiment,
		"intent":    reply.Intent,
		"sessionId": req.SessionID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) chatVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceChatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, r, http.StatusBadRequest, "No transcript provided", "Empty or missing transcript")
		return
	}
	if err := h.validator.Text("transcript", req.Transcript); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid transcript", err.Error())
		return
	}
	if err := h.validator.Profile(&req.ClientData); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid client data", err.Error())
		return
	}
	confidence := defaultVoiceConfidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	log.Debug().
		Str("sessionId", req.SessionID).
		Str("client", req.ClientData.Name).
		Float64("confidence", confidence).
		Msg("Voice transcript received")

	reply := h.Responder.Respond(r.Context(), responder.Request{
		SessionID: req.SessionID,
		Text:      req.Transcript,
		Profile:   req.ClientData,
	})
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"response":   reply.Text,
		"transcript": req.Transcript,
		"confidence": confidence,
		"tier":       reply.Tier,
		"sentiment":  reply.Sentiment,
		"intent":     reply.Intent,
		"sessionId":  req.SessionID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) synthesize(w http.ResponseWriter, r *http.Request) {
	if h.Synthesizer == nil {
		writeError(w, r, http.StatusServiceUnavailable, "Speech synthesis is not configured", "no synthesizer")
		return
	}
	var req synthesizeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validator.Text("text", req.Text); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid text", err.Error())
		return
	}

	opts := h.Voice
	if req.VoiceID != "" {
		opts.Voice = req.VoiceID
	}
	if req.OutputFormat != "" {
		opts.Format = req.OutputFormat
	}

	start := time.Now()
	clip, err := h.Synthesizer.Synthesize(r.Context(), req.Text, opts)
	h.metrics.RecordProviderCall("tts:"+h.Synthesizer.Name(), err, time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Str("provider", h.Synthesizer.Name()).Msg("Speech synthesis failed")
		writeError(w, r, http.StatusBadGateway, "Speech synthesis failed", err.Error())
		return
	}
	h.metrics.RecordSynthesis(len(clip.Audio))

	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":      true,
		"audioUrl":     clip.DataURL(),
		"text":         req.Text,
		"voiceId":      opts.Voice,
		"outputFormat": clip.Format,
	})
}

func (h *handler) speechDebug(w http.ResponseWriter, r *http.Request) {
	var req speechDebugRequest
	if !decode(w, r, &req) {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	log.Debug().
		Str("transcript", req.Transcript).
		Float64("confidence", req.Confidence).
		Bool("isFinal", req.IsFinal).
		Msg("Speech recognition debug")

	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "Speech debug data received",
		"received": map[string]any{
			"transcript": req.Transcript,
			"confidence": req.Confidence,
			"isFinal":    req.IsFinal,
			"timestamp":  now,
		},
	})
}

// conversationTurns lists the archived turns of a session, falling back to the
// live session log while the archive has nothing for it.
func (h *handler) conversationTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	list, err := h.Turns.List(r.Context(), id)
	if errors.Is(err, turns.ErrNotFound) {
		list, err = h.liveTurns(id)
	}
	switch {
	case errors.Is(err, turns.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, "Conversation not found", err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("sessionId", id).Msg("Failed to list turns")
		writeError(w, r, http.StatusInternalServerError, "Failed to list turns", err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": id,
		"turns":     list,
		"count":     len(list),
	})
}

func (h *handler) liveTurns(id string) ([]models.TurnEvent, error) {
	if h.Sessions == nil {
		return nil, session.ErrSessionNotFound
	}
	s, err := h.Sessions.Get(id)
	if err != nil {
		return nil, err
	}
	name := s.Profile().Name
	history := s.Turns()
	out := make([]models.TurnEvent, 0, len(history))
	for _, t := range history {
		out = append(out, models.TurnEvent{
			EventType:  models.TurnEventType,
			SessionID:  id,
			ClientName: name,
			Timestamp:  t.Timestamp.UnixMilli(),
			TurnID:     t.ID,
			Speaker:    t.Speaker,
			Text:       t.Text,
		})
	}
	return out, nil
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty request body")
		}
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message, detail string) {
	writeJSON(w, r, status, map[string]any{
		"success": false,
		"message": message,
		"error":   detail,
	})
}

// writeJSON stamps the request id onto body and writes it.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body map[string]any) {
	if id := middleware.GetReqID(r.Context()); id != "" {
		body["requestId"] = id
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
