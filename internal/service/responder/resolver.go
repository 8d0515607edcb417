// Package responder produces the assistant's reply to a caller utterance.
//
// Replies come from a fixed fallback chain:
//
//	LLM ──fail──→ intent reply + enhancement ──missing──→ keyword rules
//
// The chain never returns an error and never returns empty text.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/service/llm"
	"github.com/consultedge/emi-reminder-ai/internal/service/nlu"
)

// DefaultTimeout bounds each remote tier.
const DefaultTimeout = 10 * time.Second

// Tier names the source of a reply.
type Tier string

const (
	TierLLM   Tier = "llm"
	TierNLU   Tier = "nlu"
	TierRules Tier = "rules"
)

var (
	// ErrProviderPanic wraps a recovered provider panic.
	ErrProviderPanic = errors.New("provider panicked")
	// ErrProviderTimeout is returned when a provider exceeds its time budget.
	ErrProviderTimeout = errors.New("provider timed out")
)

// Input is one resolve request.
type Input struct {
	SessionID string
	Text      string
	Profile   models.ClientProfile
	Sentiment models.Sentiment
	Intent    *nlu.Result
	History   []models.ConversationTurn
}

// Reply is a resolved reply and where it came from.
type Reply struct {
	Text      string           `json:"text"`
	Tier      Tier             `json:"tier"`
	Sentiment models.Sentiment `json:"sentiment"`
	Intent    string           `json:"intent,omitempty"`
}

// Resolver runs the fallback chain.
type Resolver struct {
	generator llm.Generator
	rules     *RuleResponder
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewResolver creates a resolver. generator may be nil to skip the LLM tier.
func NewResolver(generator llm.Generator, rules *RuleResponder, timeout time.Duration) *Resolver {
	if rules == nil {
		rules = NewRuleResponder("")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		generator: generator,
		rules:     rules,
		timeout:   timeout,
		metrics:   metrics.DefaultMetrics,
	}
}

// Resolve returns exactly one non-empty reply.
func (r *Resolver) Resolve(ctx context.Context, in Input) Reply {
	sentiment := in.Sentiment
	if sentiment == "" {
		sentiment = models.SentimentNeutral
	}
	reply := Reply{Sentiment: sentiment}
	var intentHint, replyHint string
	if in.Intent != nil {
		intentHint = in.Intent.IntentName
		replyHint = strings.TrimSpace(in.Intent.Message)
		reply.Intent = intentHint
	}

	if r.generator != nil {
		text, err := call(ctx, r.timeout, "llm:"+r.generator.Name(), r.metrics, func(ctx context.Context) (string, error) {
			return r.generator.Generate(ctx, llm.Request{
				SessionID:  in.SessionID,
				Text:       in.Text,
				Profile:    in.Profile,
				Sentiment:  sentiment,
				IntentHint: intentHint,
				ReplyHint:  replyHint,
				History:    in.History,
			})
		})
		if text = strings.TrimSpace(text); err == nil && text != "" {
			return r.done(reply, text, TierLLM)
		}
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		log.Warn().Err(err).Str("sessionId", in.SessionID).Str("provider", r.generator.Name()).
			Msg("LLM tier failed, falling back")
	}

	if replyHint != "" {
		return r.done(reply, Enhance(replyHint, in.Profile, sentiment), TierNLU)
	}

	return r.done(reply, r.rules.Reply(in.Text, in.Profile, sentiment), TierRules)
}

func (r *Resolver) done(reply Reply, text string, tier Tier) Reply {
	reply.Text = text
	reply.Tier = tier
	r.metrics.RecordResolverTier(string(tier))
	return reply
}

// call runs fn with a timeout and turns panics into errors. A provider that
// ignores its context is abandoned once the timeout passes.
func call[T any](ctx context.Context, timeout time.Duration, provider string, m *metrics.Metrics, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				done <- result{zero, fmt.Errorf("%w: %s: %v", ErrProviderPanic, provider, p)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%w: %s: %v", ErrProviderTimeout, provider, ctx.Err())
	}
	m.RecordProviderCall(provider, res.err, time.Since(start).Seconds())
	return res.val, res.err
}
