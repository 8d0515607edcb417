// Package sentiment classifies the polarity of caller utterances.
package sentiment

import (
	"context"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// Classifier labels text as positive, negative or neutral.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (models.Sentiment, error)
}

// Neutral is used when no classifier is configured.
type Neutral struct{}

// Name returns the classifier name.
func (Neutral) Name() string { return "neutral" }

// Classify always returns neutral.
func (Neutral) Classify(context.Context, string) (models.Sentiment, error) {
	return models.SentimentNeutral, nil
}
