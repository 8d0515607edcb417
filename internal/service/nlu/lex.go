// Package nlu queries an intent service for the caller's intent and a suggested reply.
package nlu

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimeservice"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// Result is an intent service answer. Either field may be empty.
type Result struct {
	IntentName  string
	Message     string
	DialogState string
}

// Query is one intent lookup.
type Query struct {
	SessionID string
	Text      string
	Profile   models.ClientProfile
}

// Service is an intent service.
type Service interface {
	Name() string
	Query(ctx context.Context, q Query) (*Result, error)
}

// lexAPI is the part of the Lex runtime client used here.
type lexAPI interface {
	PostText(ctx context.Context, in *lexruntimeservice.PostTextInput, optFns ...func(*lexruntimeservice.Options)) (*lexruntimeservice.PostTextOutput, error)
}

// Lex queries an Amazon Lex (V1) bot.
type Lex struct {
	client   lexAPI
	botName  string
	botAlias string
}

// NewLex creates a Lex intent service from an AWS config.
func NewLex(cfg aws.Config, botName, botAlias string) *Lex {
	return newLex(lexruntimeservice.NewFromConfig(cfg), botName, botAlias)
}

func newLex(client lexAPI, botName, botAlias string) *Lex {
	return &Lex{client: client, botName: botName, botAlias: botAlias}
}

// Name returns the service name.
func (l *Lex) Name() string { return "lex" }

// Query posts the utterance with the client profile as session attributes.
func (l *Lex) Query(ctx context.Context, q Query) (*Result, error) {
	out, err := l.client.PostText(ctx, &lexruntimeservice.PostTextInput{
		BotName:           aws.String(l.botName),
		BotAlias:          aws.String(l.botAlias),
		UserId:            aws.String(q.SessionID),
		InputText:         aws.String(q.Text),
		SessionAttributes: SessionAttributes(q.Profile),
	})
	if err != nil {
		return nil, fmt.Errorf("lex post text: %w", err)
	}
	return &Result{
		IntentName:  aws.ToString(out.IntentName),
		Message:     aws.ToString(out.Message),
		DialogState: string(out.DialogState),
	}, nil
}

// SessionAttributes renders the profile the way the bot's slots expect it.
func SessionAttributes(p models.ClientProfile) map[string]string {
	attrs := map[string]string{
		"clientName": p.Name,
		"mobile":     p.Mobile,
		"emiAmount":  strconv.FormatFloat(float64(p.InstallmentAmount), 'f', -1, 64),
		"totalDue":   strconv.FormatFloat(float64(p.TotalOutstanding), 'f', -1, 64),
	}
	if !p.DueDate.IsZero() {
		attrs["dueDate"] = p.DueDate.Format("2006-01-02")
	}
	return attrs
}
