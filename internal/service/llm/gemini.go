package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type geminiAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates replies with the Gemini API.
type Gemini struct {
	models    geminiAPI
	model     string
	maxTokens int32
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models geminiAPI, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{models: models, model: model, maxTokens: DefaultMaxTokens}
}

// Name returns the provider name.
func (g *Gemini) Name() string { return "gemini" }

// Generate sends the user prompt with the system prompt as system instruction.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	system, user, err := Prompt(req)
	if err != nil {
		return "", err
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return cleanReply(resp.Text())
}
