// prompt.go - Extraction prompt and response schema

package ai

import "github.com/google/generative-ai-go/genai"

// ExtractionPrompt is sent with every page image. It is fixed; requests cannot change it.
const ExtractionPrompt = `You are an expert at extracting line item data from bills and invoices.

Analyze this bill/invoice image and extract ALL line items with their details.

For each page, identify:
1. Page type: "Bill Detail", "Final Bill", or "Pharmacy"
2. All line items with:
   - item_name: Exactly as written in the bill
   - item_amount: Net amount after discounts (float)
   - item_rate: Unit rate/price (float)
   - item_quantity: Quantity (float)

IMPORTANT:
- Extract EVERY line item, don't miss any
- Don't double count items
- Use 0.0 if rate or quantity is not mentioned
- item_amount should be the final amount for that line item

Return exactly ONE JSON object for this image.
Return ONLY valid JSON in this exact format (no markdown, no code blocks, no explanations):
{
    "page_type": "Bill Detail",
    "bill_items": [
        {
            "item_name": "string",
            "item_amount": 0.0,
            "item_rate": 0.0,
            "item_quantity": 0.0
        }
    ]
}
`

// createPageSchema mirrors the prompt's output contract as a Gemini response schema.
func createPageSchema() *genai.Schema {
	itemSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"item_name": {
				Type:        genai.TypeString,
				Description: "Item name exactly as written on the bill",
			},
			"item_amount": {
				Type:        genai.TypeNumber,
				Description: "Net amount for the line after discounts",
			},
			"item_rate": {
				Type:        genai.TypeNumber,
				Description: "Unit rate/price, 0.0 if not printed",
			},
			"item_quantity": {
				Type:        genai.TypeNumber,
				Description: "Quantity, 0.0 if not printed",
			},
		},
		Required: []string{"item_name", "item_amount", "item_rate", "item_quantity"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"page_type": {
				Type:        genai.TypeString,
				Description: "Kind of bill page",
				Enum:        PageTypes,
			},
			"bill_items": {
				Type:  genai.TypeArray,
				Items: itemSchema,
			},
		},
		Required: []string{"page_type", "bill_items"},
	}
}
