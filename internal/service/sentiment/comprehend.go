package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// comprehendAPI is the part of the Comprehend client used here.
type comprehendAPI interface {
	DetectSentiment(ctx context.Context, in *comprehend.DetectSentimentInput, optFns ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error)
}

// Comprehend classifies sentiment with Amazon Comprehend.
type Comprehend struct {
	client   comprehendAPI
	language types.LanguageCode
}

// NewComprehend creates a classifier from an AWS config.
func NewComprehend(cfg aws.Config) *Comprehend {
	return newComprehend(comprehend.NewFromConfig(cfg))
}

func newComprehend(client comprehendAPI) *Comprehend {
	return &Comprehend{client: client, language: types.LanguageCodeEn}
}

// Name returns the classifier name.
func (c *Comprehend) Name() string { return "comprehend" }

// Classify calls DetectSentiment. MIXED and unknown labels are neutral.
func (c *Comprehend) Classify(ctx context.Context, text string) (models.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return models.SentimentNeutral, nil
	}
	out, err := c.client.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
		Text:         aws.String(text),
		LanguageCode: c.language,
	})
	if err != nil {
		return models.SentimentNeutral, fmt.Errorf("comprehend detect sentiment: %w", err)
	}
	return models.ParseSentiment(string(out.Sentiment)), nil
}
