package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Compile-time interface check.
var _ AIProvider = (*AnthropicProvider)(nil)

// AnthropicProvider implements AIProvider using the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates an AnthropicProvider with a 60-second request
// timeout. The SDK's own retries are disabled; callers retry whole calls.
// Extra options are applied last, so they can override the defaults.
func NewAnthropicProvider(apiKey, model string, opts ...option.RequestOption) *AnthropicProvider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(60 * time.Second),
		option.WithMaxRetries(0),
	}
	client := anthropic.NewClient(append(base, opts...)...)
	return &AnthropicProvider{
		client: &client,
		model:  model,
	}
}

// TranslateBatch translates texts using the Anthropic API.
func (p *AnthropicProvider) TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	systemPrompt, userPrompt := TranslatePrompt(texts, source, target)

	text, err := p.callAPI(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("anthropic translate: %w", err)
	}

	out, err := parseTranslation(text, len(texts))
	if err != nil {
		return nil, fmt.Errorf("anthropic translate: %w", err)
	}
	return out, nil
}

// Enrich generates the summary, keywords, highlights and watch score for the
// given content using the Anthropic API.
func (p *AnthropicProvider) Enrich(ctx context.Context, in EnrichInput) (*Enrichment, error) {
	systemPrompt, userPrompt := EnrichPrompt(in)

	text, err := p.callAPI(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("anthropic enrich: %w", err)
	}

	e, err := parseEnrichment(text)
	if err != nil {
		return nil, fmt.Errorf("anthropic enrich: %w", err)
	}
	return e, nil
}

// callAPI sends one message and returns the text of the first text block.
func (p *AnthropicProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	slog.Debug("calling Anthropic API", "model", p.model)

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 8192,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("API error (status %d): %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("sending request: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response: no text content returned")
}
