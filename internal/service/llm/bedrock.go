package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// DefaultBedrockModel is the Claude model used when none is configured.
const DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"

const anthropicVersion = "bedrock-2023-05-31"

type bedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock generates replies with an Anthropic model on Amazon Bedrock.
type Bedrock struct {
	client    bedrockAPI
	model     string
	maxTokens int
}

// NewBedrock creates a Bedrock generator from an AWS config.
func NewBedrock(cfg aws.Config, model string) *Bedrock {
	return newBedrock(bedrockruntime.NewFromConfig(cfg), model)
}

func newBedrock(client bedrockAPI, model string) *Bedrock {
	if model == "" {
		model = DefaultBedrockModel
	}
	return &Bedrock{client: client, model: model, maxTokens: DefaultMaxTokens}
}

// Name returns the provider name.
func (b *Bedrock) Name() string { return "bedrock" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate invokes the model with the Anthropic messages body.
func (b *Bedrock) Generate(ctx context.Context, req Request) (string, error) {
	system, user, err := Prompt(req)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.maxTokens,
		System:           system,
		Messages:         []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "" || c.Type == "text" {
			return cleanReply(c.Text)
		}
	}
	return "", ErrEmptyResponse
}
