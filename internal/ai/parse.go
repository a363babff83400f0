// parse.go - Turns a model reply into PageLineItems

package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const fence = "```"

// UnwrapFencedJSON trims the reply and, if it opens with a code fence, keeps only
// the content between the first pair of fences (dropping a leading "json" tag).
// Unfenced input is returned trimmed and otherwise unchanged.
func UnwrapFencedJSON(text string) string {
	content := strings.TrimSpace(text)
	if !strings.HasPrefix(content, fence) {
		return content
	}

	parts := strings.SplitN(content, fence, 3)
	content = parts[1]
	if len(content) >= 4 && strings.EqualFold(content[:4], "json") {
		content = content[4:]
	}
	return strings.TrimSpace(content)
}

// ParsePageResponse parses one page's reply. page_type defaults to "Bill Detail" and
// bill_items to empty when the keys are absent; null values and malformed items fail.
func ParsePageResponse(text string, pageNo int) (*PageLineItems, error) {
	content := UnwrapFencedJSON(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing model JSON output: %w (raw: %s)", err, truncate(content, 500))
	}
	if raw == nil {
		return nil, fmt.Errorf("parsing model JSON output: expected an object, got null")
	}

	page := &PageLineItems{
		PageNo:    strconv.Itoa(pageNo),
		PageType:  PageTypeBillDetail,
		BillItems: []BillItem{},
	}

	if pageTypeRaw, ok := raw["page_type"]; ok {
		if isNull(pageTypeRaw) {
			return nil, fmt.Errorf("page_type must not be null")
		}
		if err := json.Unmarshal(pageTypeRaw, &page.PageType); err != nil {
			return nil, fmt.Errorf("page_type must be a string: %w", err)
		}
		if !isValidPageType(page.PageType) {
			return nil, fmt.Errorf("unknown page_type %q (expected one of %s)", page.PageType, strings.Join(PageTypes, ", "))
		}
	}

	if itemsRaw, ok := raw["bill_items"]; ok {
		if isNull(itemsRaw) {
			return nil, fmt.Errorf("bill_items must not be null")
		}
		var items []BillItem
		if err := json.Unmarshal(itemsRaw, &items); err != nil {
			return nil, fmt.Errorf("invalid bill_items: %w", err)
		}
		if items != nil {
			page.BillItems = items
		}
	}

	return page, nil
}
