package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Config selects and configures a generator.
type Config struct {
	Provider string // none, bedrock, gemini, openai, ollama
	Model    string
	APIKey   string
	BaseURL  string
}

// New builds the configured generator. Provider "none" or "" returns nil, nil.
func New(ctx context.Context, cfg Config, awsCfg aws.Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "bedrock":
		return NewBedrock(awsCfg, cfg.Model), nil
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
