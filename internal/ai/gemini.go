// gemini.go - Gemini page extraction provider

package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bosocmputer/bill_extract_gemini/configs"
	"github.com/bosocmputer/bill_extract_gemini/internal/common"
	"github.com/bosocmputer/bill_extract_gemini/internal/processor"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// contentGenerator is the slice of *genai.GenerativeModel the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiProvider implements PageExtractor for Google Gemini.
type GeminiProvider struct {
	client    *genai.Client
	model     contentGenerator
	modelName string
	timeout   time.Duration
}

// NewGeminiProvider creates a Gemini client for apiKey. Every model call is bounded by timeout.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	configureModel(model)

	return &GeminiProvider{
		client:    client,
		model:     model,
		modelName: modelName,
		timeout:   timeout,
	}, nil
}

// configureModel applies the fixed, near-deterministic decoding settings and the output schema.
func configureModel(model *genai.GenerativeModel) {
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptr(configs.MODEL_TEMPERATURE),
		MaxOutputTokens: ptr(configs.MAX_OUTPUT_TOKENS),
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = createPageSchema()
}

// GetProviderName returns "gemini"
func (p *GeminiProvider) GetProviderName() string {
	return "gemini"
}

// Close closes the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// ExtractPage sends the prompt and one page image to Gemini and parses the reply.
func (p *GeminiProvider) ExtractPage(ctx context.Context, page processor.PageImage, reqCtx *common.RequestContext) (*PageLineItems, *common.TokenUsage, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reqCtx.LogInfo("📄 Page %d: %d bytes (%s) -> %s", page.Number, len(page.Data), page.MIMEType, p.modelName)

	resp, err := p.model.GenerateContent(ctx,
		genai.Text(ExtractionPrompt),
		genai.Blob{
			MIMEType: page.MIMEType,
			Data:     page.Data,
		},
	)
	if err != nil {
		gemErr := CategorizeGeminiError(err)
		reqCtx.LogError("Gemini call failed for page %d: %v", page.Number, err)
		return nil, nil, fmt.Errorf("page %d: %w", page.Number, gemErr)
	}

	usage := usageFromResponse(resp)

	text, err := responseText(resp)
	if err != nil {
		return nil, usage, fmt.Errorf("page %d: %w", page.Number, err)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		reqCtx.LogWarning("Page %d reply was truncated (FinishReason: MAX_TOKENS)", page.Number)
	}

	reqCtx.LogInfo("📦 Page %d reply: %d chars", page.Number, len(text))

	items, err := ParsePageResponse(text, page.Number)
	if err != nil {
		return nil, usage, fmt.Errorf("page %d: %w", page.Number, err)
	}

	return items, usage, nil
}

// usageFromResponse converts usage metadata; nil when the model sent none.
func usageFromResponse(resp *genai.GenerateContentResponse) *common.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &common.TokenUsage{
		TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response from Gemini API")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini API (FinishReason: %v)", candidate.FinishReason)
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	if text == "" {
		return "", fmt.Errorf("no text in Gemini response (FinishReason: %v)", candidate.FinishReason)
	}
	return text, nil
}

func ptr[T any](v T) *T {
	return &v
}
