package models

// Event types sent from the service to a connected client.
const (
	EventSessionReady   = "session.ready"
	EventState          = "state"
	EventStatus         = "status"
	EventTurn           = "turn"
	EventCaptureStart   = "capture.start"
	EventCaptureStop    = "capture.stop"
	EventSpeakAudio     = "speak.audio"
	EventSpeakLocal     = "speak.local"
	EventPlaybackCancel = "playback.cancel"
	EventError          = "error"
)

// Message types sent from a client to the service.
const (
	MessageSessionStart      = "session.start"
	MessageConversationStart = "conversation.start"
	MessageConversationStop  = "conversation.stop"
	MessageFragment          = "fragment"
	MessageAudio             = "audio"
	MessageCaptureEnded      = "capture.ended"
	MessageCaptureError      = "capture.error"
	MessagePlaybackEnded     = "playback.ended"
	MessagePlaybackError     = "playback.error"
)

// Published event types.
const (
	TurnEventType  = "conversation.turn"
	StateEventType = "conversation.state"
)

// Event is a server-to-client session event.
type Event struct {
	Type         string            `json:"type"`
	SessionID    string            `json:"sessionId,omitempty"`
	State        string            `json:"state,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Text         string            `json:"text,omitempty"`
	Turn         *ConversationTurn `json:"turn,omitempty"`
	CaptureID    string            `json:"captureId,omitempty"`
	PlaybackID   string            `json:"playbackId,omitempty"`
	Audio        []byte            `json:"audio,omitempty"`
	Format       string            `json:"format,omitempty"`
	ErrorKind    string            `json:"errorKind,omitempty"`
	ClearAfterMs int64             `json:"clearAfterMs,omitempty"`
	Timestamp    int64             `json:"timestamp"`
}

// ClientMessage is a client-to-server session message.
type ClientMessage struct {
	Type       string         `json:"type"`
	SessionID  string         `json:"sessionId,omitempty"`
	Profile    *ClientProfile `json:"profile,omitempty"`
	Capture    string         `json:"capture,omitempty"`
	Text       string         `json:"text,omitempty"`
	IsFinal    bool           `json:"isFinal,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	CaptureID  string         `json:"captureId,omitempty"`
	PlaybackID string         `json:"playbackId,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Message    string         `json:"message,omitempty"`
	Audio      []byte         `json:"audio,omitempty"`
}

// TurnEvent is published for every appended conversation turn.
type TurnEvent struct {
	EventType  string    `json:"eventType"`
	SessionID  string    `json:"sessionId"`
	ClientName string    `json:"clientName,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	TurnID     string    `json:"turnId"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Tier       string    `json:"tier,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Intent     string    `json:"intent,omitempty"`
}

// StateEvent is published for every conversation state transition.
type StateEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
}
