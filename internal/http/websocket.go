package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/service/session"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // The browser client is served from a different origin
	},
}

// conversationSocket runs one live session over a websocket. Client messages
// are read in order and handed to the session; session events are written
// back as JSON.
func (h *handler) conversationSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	start := time.Now()
	h.metrics.RecordStreamStart("websocket")

	send := func(ev models.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}
	sess := h.Sessions.Open(r.Context(), send)

	err = sess.Serve(func() (models.ClientMessage, error) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return models.ClientMessage{}, err
			}
			var msg models.ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				if sendErr := sess.Reject(fmt.Errorf("malformed message: %w", err)); sendErr != nil {
					return models.ClientMessage{}, sendErr
				}
				continue
			}
			return msg, nil
		}
	})

	success := errors.Is(err, session.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	h.metrics.RecordStreamEnd("websocket", success, time.Since(start).Seconds())

	log.Info().
		Str("sessionId", sess.ID()).
		Dur("duration", time.Since(start)).
		Bool("success", success).
		Err(err).
		Msg("WebSocket session ended")
}
