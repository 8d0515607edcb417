package responder

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/consultedge/emi-reminder-ai/internal/models"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
	"github.com/consultedge/emi-reminder-ai/internal/service/nlu"
	"github.com/consultedge/emi-reminder-ai/internal/service/sentiment"
)

// Request is one caller utterance to answer.
type Request struct {
	SessionID string
	Text      string
	Profile   models.ClientProfile
	History   []models.ConversationTurn
}

// Responder looks up sentiment and intent for an utterance, then resolves a reply.
type Responder struct {
	resolver   *Resolver
	classifier sentiment.Classifier
	intents    nlu.Service
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// New creates a responder. classifier and intents may be nil.
func New(resolver *Resolver, classifier sentiment.Classifier, intents nlu.Service, timeout time.Duration) *Responder {
	if classifier == nil {
		classifier = sentiment.Neutral{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Responder{
		resolver:   resolver,
		classifier: classifier,
		intents:    intents,
		timeout:    timeout,
		metrics:    metrics.DefaultMetrics,
	}
}

// Respond never fails: sentiment errors become neutral and intent errors drop the intent tier.
func (r *Responder) Respond(ctx context.Context, req Request) Reply {
	label := models.SentimentNeutral
	var intent *nlu.Result

	// Both lookups swallow their own errors, so the group never cancels.
	var g errgroup.Group
	g.Go(func() error {
		s, err := call(ctx, r.timeout, "sentiment:"+r.classifier.Name(), r.metrics, func(ctx context.Context) (models.Sentiment, error) {
			return r.classifier.Classify(ctx, req.Text)
		})
		if err != nil {
			log.Warn().Err(err).Str("sessionId", req.SessionID).Str("provider", r.classifier.Name()).
				Msg("Sentiment lookup failed, using neutral")
			return nil
		}
		label = models.ParseSentiment(string(s))
		return nil
	})
	if r.intents != nil {
		g.Go(func() error {
			res, err := call(ctx, r.timeout, "nlu:"+r.intents.Name(), r.metrics, func(ctx context.Context) (*nlu.Result, error) {
				return r.intents.Query(ctx, nlu.Query{SessionID: req.SessionID, Text: req.Text, Profile: req.Profile})
			})
			if err != nil {
				log.Warn().Err(err).Str("sessionId", req.SessionID).Str("provider", r.intents.Name()).
					Msg("Intent lookup failed, skipping intent tier")
				return nil
			}
			intent = res
			return nil
		})
	}
	_ = g.Wait()

	r.metrics.RecordSentiment(string(label))

	return r.resolver.Resolve(ctx, Input{
		SessionID: req.SessionID,
		Text:      req.Text,
		Profile:   req.Profile,
		Sentiment: label,
		Intent:    intent,
		History:   req.History,
	})
}
