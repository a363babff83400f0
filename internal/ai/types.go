// types.go - Bill extraction data model

package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bosocmputer/bill_extract_gemini/internal/common"
)

// Page types the model may assign.
const (
	PageTypeBillDetail = "Bill Detail"
	PageTypeFinalBill  = "Final Bill"
	PageTypePharmacy   = "Pharmacy"
)

// PageTypes lists the accepted page_type literals.
var PageTypes = []string{PageTypeBillDetail, PageTypeFinalBill, PageTypePharmacy}

// BillItem is one itemized charge. ItemAmount is the net line amount as printed;
// it is not derived from ItemRate * ItemQuantity.
type BillItem struct {
	ItemName     string  `json:"item_name"`
	ItemAmount   float64 `json:"item_amount"`
	ItemRate     float64 `json:"item_rate"`
	ItemQuantity float64 `json:"item_quantity"`
}

// UnmarshalJSON requires item_name and item_amount. item_rate and item_quantity
// default to 0 when absent but must not be null when present. Unknown keys are ignored.
func (b *BillItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bill item must be an object: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("bill item must be an object, got null")
	}

	var item BillItem
	var err error

	nameRaw, ok := raw["item_name"]
	if !ok {
		return fmt.Errorf("bill item: item_name is required")
	}
	if isNull(nameRaw) {
		return fmt.Errorf("bill item: item_name must not be null")
	}
	if err := json.Unmarshal(nameRaw, &item.ItemName); err != nil {
		return fmt.Errorf("bill item: item_name must be a string: %w", err)
	}

	amountRaw, ok := raw["item_amount"]
	if !ok {
		return fmt.Errorf("bill item %q: item_amount is required", item.ItemName)
	}
	if item.ItemAmount, err = parseNumber(amountRaw); err != nil {
		return fmt.Errorf("bill item %q: item_amount %w", item.ItemName, err)
	}

	if rateRaw, ok := raw["item_rate"]; ok {
		if item.ItemRate, err = parseNumber(rateRaw); err != nil {
			return fmt.Errorf("bill item %q: item_rate %w", item.ItemName, err)
		}
	}

	if qtyRaw, ok := raw["item_quantity"]; ok {
		if item.ItemQuantity, err = parseNumber(qtyRaw); err != nil {
			return fmt.Errorf("bill item %q: item_quantity %w", item.ItemName, err)
		}
	}

	*b = item
	return nil
}

// PageLineItems holds the items found on one page. PageNo is the 1-based page position.
type PageLineItems struct {
	PageNo    string     `json:"page_no"`
	PageType  string     `json:"page_type"`
	BillItems []BillItem `json:"bill_items"`
}

// ExtractedData is the aggregated result across all pages.
type ExtractedData struct {
	PagewiseLineItems []PageLineItems `json:"pagewise_line_items"`
	TotalItemCount    int             `json:"total_item_count"`
}

// ExtractBillResponse is the response body of a successful extraction.
type ExtractBillResponse struct {
	IsSuccess  bool              `json:"is_success"`
	TokenUsage common.TokenUsage `json:"token_usage"`
	Data       ExtractedData     `json:"data"`
}

// BuildResponse aggregates per-page results. TotalItemCount is always recomputed here.
func BuildResponse(pages []PageLineItems, usage common.TokenUsage) ExtractBillResponse {
	if pages == nil {
		pages = []PageLineItems{}
	}

	total := 0
	for _, page := range pages {
		total += len(page.BillItems)
	}

	return ExtractBillResponse{
		IsSuccess:  true,
		TokenUsage: usage,
		Data: ExtractedData{
			PagewiseLineItems: pages,
			TotalItemCount:    total,
		},
	}
}

func isValidPageType(pageType string) bool {
	for _, t := range PageTypes {
		if t == pageType {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// parseNumber accepts a finite JSON number or numeric string; null, NaN, Inf and anything else fail.
func parseNumber(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, fmt.Errorf("must not be null")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f, raw)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return finite(parsed, raw)
		}
	}

	return 0, fmt.Errorf("must be a number, got %s", truncate(string(raw), 50))
}

// finite rejects values encoding/json cannot write back out.
func finite(f float64, raw json.RawMessage) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a finite number, got %s", truncate(string(raw), 50))
	}
	return f, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
