// Package schema validates inbound client data before it reaches a conversation.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// MaxTextLength caps utterance and synthesis text.
const MaxTextLength = 3000

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("validation failed")

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field errors.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validator checks client profiles and session messages.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate dispatches on the value type. Unknown types are accepted.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case *models.ClientProfile:
		return v.Profile(e)
	case models.ClientProfile:
		return v.Profile(&e)
	case *models.ClientMessage:
		return v.Message(e)
	case models.ClientMessage:
		return v.Message(&e)
	default:
		return nil
	}
}

// Profile checks the fields the reply templates depend on.
func (v *Validator) Profile(p *models.ClientProfile) error {
	ve := &ValidationError{}
	if p == nil {
		ve.add("clientData", "is required")
		return ve
	}
	if strings.TrimSpace(p.Name) == "" {
		ve.add("name", "is required")
	}
	if p.TotalOutstanding < 0 {
		ve.add("totalDue", "must not be negative")
	}
	if p.InstallmentAmount < 0 {
		ve.add("emiAmount", "must not be negative")
	}
	if p.Mobile != "" && !validMobile(p.Mobile) {
		ve.add("mobile", "must contain 7 to 15 digits")
	}
	return ve.err()
}

// Text checks a free-text field.
func (v *Validator) Text(field, text string) error {
	ve := &ValidationError{}
	switch {
	case strings.TrimSpace(text) == "":
		ve.add(field, "is required")
	case len(text) > MaxTextLength:
		ve.add(field, fmt.Sprintf("must be at most %d characters", MaxTextLength))
	}
	return ve.err()
}

// Message checks a session message for the fields its type requires.
func (v *Validator) Message(m *models.ClientMessage) error {
	ve := &ValidationError{}
	switch m.Type {
	case models.MessageSessionStart:
		if err := v.Profile(m.Profile); err != nil {
			return err
		}
	case models.MessageFragment:
		if len(m.Text) > MaxTextLength {
			ve.add("text", fmt.Sprintf("must be at most %d characters", MaxTextLength))
		}
		if m.Confidence < 0 || m.Confidence > 1 {
			ve.add("confidence", "must be between 0 and 1")
		}
	case models.MessagePlaybackEnded, models.MessagePlaybackError:
		if m.PlaybackID == "" {
			ve.add("playbackId", "is required")
		}
	case models.MessageCaptureError:
		if m.Kind == "" {
			ve.add("kind", "is required")
		}
	case models.MessageAudio:
		if len(m.Audio) == 0 {
			ve.add("audio", "is required")
		}
	case models.MessageConversationStart, models.MessageConversationStop, models.MessageCaptureEnded:
	case "":
		ve.add("type", "is required")
	default:
		ve.add("type", fmt.Sprintf("unknown message type %q", m.Type))
	}
	return ve.err()
}

func validMobile(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
