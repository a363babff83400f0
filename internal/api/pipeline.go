// pipeline.go - Rasterize, extract page by page, aggregate

package api

import (
	"context"
	"fmt"

	"github.com/bosocmputer/bill_extract_gemini/internal/ai"
	"github.com/bosocmputer/bill_extract_gemini/internal/common"
	"github.com/bosocmputer/bill_extract_gemini/internal/document"
	"github.com/bosocmputer/bill_extract_gemini/internal/processor"
)

// Pipeline turns an acquired document into an ExtractBillResponse.
type Pipeline struct {
	Rasterizer        processor.Rasterizer
	NewExtractor      ai.ExtractorFactory
	Preprocess        bool
	MaxImageDimension int
}

// Run processes every page strictly in order. The first failing page aborts the request;
// there is no partial result.
func (p *Pipeline) Run(ctx context.Context, doc document.Document, apiKey string, reqCtx *common.RequestContext) (*ai.ExtractBillResponse, error) {
	reqCtx.StartStep("rasterize_pages")
	pages, err := processor.ToPages(ctx, doc, p.Rasterizer)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, fmt.Errorf("failed to prepare pages: %w", err)
	}
	reqCtx.LogInfo("✓ %d page(s) ready (pdf: %v)", len(pages), processor.IsPDF(doc.Data, doc.Hint))

	if p.Preprocess {
		for _, perr := range processor.PreprocessPages(pages, p.MaxImageDimension) {
			reqCtx.LogWarning("Preprocessing failed, using original: %v", perr)
		}
	}
	reqCtx.EndStep("success", nil, nil)

	extractor, err := p.NewExtractor(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create page extractor: %w", err)
	}
	defer extractor.Close()

	reqCtx.StartStep("extract_pages")
	results := make([]ai.PageLineItems, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			reqCtx.EndStep("cancelled", usageSnapshot(reqCtx), err)
			return nil, fmt.Errorf("request cancelled before page %d: %w", page.Number, err)
		}

		items, usage, err := extractor.ExtractPage(ctx, page, reqCtx)
		reqCtx.AddTokens(usage)
		if err != nil {
			reqCtx.EndStep("failed", usageSnapshot(reqCtx), err)
			return nil, fmt.Errorf("extraction failed: %w", err)
		}

		reqCtx.LogInfo("✓ Page %s (%s): %d item(s)", items.PageNo, items.PageType, len(items.BillItems))
		results = append(results, *items)
	}
	reqCtx.EndStep("success", usageSnapshot(reqCtx), nil)

	reqCtx.StartStep("aggregate")
	response := ai.BuildResponse(results, reqCtx.TotalTokens)
	reqCtx.EndStep("success", nil, nil)

	return &response, nil
}

// usageSnapshot copies the running total so step logs are not mutated by later pages.
func usageSnapshot(reqCtx *common.RequestContext) *common.TokenUsage {
	total := reqCtx.TotalTokens
	return &total
}
