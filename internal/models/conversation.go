// Package models defines the data structures shared by the conversation pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Utterance is one recognized span of speech text.
// Fragments from the recognizer use the same shape with IsFinal=false for interim results.
type Utterance struct {
	Text       string  `json:"text"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence"`
}

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// ConversationTurn is one entry of the append-only conversation log.
type ConversationTurn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Sentiment is the coarse polarity attached to an utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// ParseSentiment normalizes a provider label. Anything that is not clearly
// positive or negative (MIXED, empty, unknown) is neutral.
func ParseSentiment(label string) Sentiment {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "POSITIVE":
		return SentimentPositive
	case "NEGATIVE":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// DueDateLayout is how due dates are read out to the client.
const DueDateLayout = "2 January 2006"

// ClientProfile is the immutable context supplied once per session.
// JSON field names follow the web client form (totalDue, emiAmount).
type ClientProfile struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Mobile            string `json:"mobile"`
	TotalOutstanding  Amount `json:"totalDue"`
	InstallmentAmount Amount `json:"emiAmount"`
	DueDate           Date   `json:"dueDate"`
}

// OutstandingText returns the outstanding amount formatted in rupees.
func (p ClientProfile) OutstandingText() string {
	return FormatRupees(float64(p.TotalOutstanding))
}

// InstallmentText returns the EMI amount formatted in rupees.
func (p ClientProfile) InstallmentText() string {
	return FormatRupees(float64(p.InstallmentAmount))
}

// DueDateText returns the due date formatted for speech.
func (p ClientProfile) DueDateText() string {
	if p.DueDate.IsZero() {
		return "the scheduled due date"
	}
	return p.DueDate.Format(DueDateLayout)
}

// DaysUntilDue counts calendar days from now until the due date.
// Negative values mean the installment is overdue.
func (p ClientProfile) DaysUntilDue(now time.Time) int {
	if p.DueDate.IsZero() {
		return 0
	}
	due := p.DueDate.Time
	y, m, d := now.In(due.Location()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, due.Location())
	dy, dm, dd := due.Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, due.Location())
	return int(math.Round(dueDay.Sub(today).Hours() / 24))
}

// FormatRupees renders an amount as ₹ followed by the shortest decimal form.
func FormatRupees(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}

// Amount accepts both JSON numbers and numeric strings, since the web form posts strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if s == "" {
			*a = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		*a = Amount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// Date is a calendar date that accepts "2006-01-02" as well as RFC3339 timestamps.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate wraps t as a Date.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// ParseDate parses "2006-01-02" or RFC3339 input.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return Date{Time: t}, nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
