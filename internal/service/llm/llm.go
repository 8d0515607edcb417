// Package llm generates domain-restricted collection replies with a large language model.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// DefaultMaxTokens bounds reply length; replies are spoken aloud.
const DefaultMaxTokens = 300

var (
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("llm returned empty response")
	// ErrUnknownProvider is returned by New for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Request carries everything the model sees for one reply.
type Request struct {
	SessionID  string
	Text       string
	Profile    models.ClientProfile
	Sentiment  models.Sentiment
	IntentHint string
	ReplyHint  string
	History    []models.ConversationTurn
}

// Generator produces a reply for a request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// cleanReply trims model output and rejects empty content.
func cleanReply(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
