// interface.go - Page extraction provider interface

package ai

import (
	"context"

	"github.com/bosocmputer/bill_extract_gemini/internal/common"
	"github.com/bosocmputer/bill_extract_gemini/internal/processor"
)

// PageExtractor turns one page image into line items.
type PageExtractor interface {
	// ExtractPage sends one page to the model and parses its reply.
	// The returned usage is nil when the model reported none; it may be non-nil alongside an error.
	ExtractPage(ctx context.Context, page processor.PageImage, reqCtx *common.RequestContext) (*PageLineItems, *common.TokenUsage, error)

	// GetProviderName returns the name of the provider (e.g., "gemini")
	GetProviderName() string

	// Close releases the provider's client.
	Close() error
}
