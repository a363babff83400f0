// factory.go - Page extractor factory

package ai

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ExtractorFactory builds a PageExtractor for one request's credential.
type ExtractorFactory func(ctx context.Context, apiKey string) (PageExtractor, error)

// NewExtractorFactory returns a factory for the named provider.
func NewExtractorFactory(provider, modelName string, timeout time.Duration) (ExtractorFactory, error) {
	switch provider {
	case "gemini":
		log.Printf("🔵 Page extraction provider: Gemini (%s, timeout %s)", modelName, timeout)
		return func(ctx context.Context, apiKey string) (PageExtractor, error) {
			return NewGeminiProvider(ctx, apiKey, modelName, timeout)
		}, nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s (supported: gemini)", provider)
	}
}
