package ai

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// Compile-time interface checks.
var (
	_ AIProvider  = (*GeminiProvider)(nil)
	_ Transcriber = (*GeminiProvider)(nil)
)

// GeminiProvider implements AIProvider and Transcriber using the Gemini API.
// Gemini accepts a public video URL as a content part, which makes it usable
// as a speech-to-text fallback.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a GeminiProvider backed by the Gemini Developer
// API.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// TranslateBatch translates texts using Gemini.
func (p *GeminiProvider) TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	systemPrompt, userPrompt := TranslatePrompt(texts, source, target)

	text, err := p.generate(ctx, systemPrompt, []*genai.Part{genai.NewPartFromText(userPrompt)})
	if err != nil {
		return nil, fmt.Errorf("gemini translate: %w", err)
	}

	out, err := parseTranslation(text, len(texts))
	if err != nil {
		return nil, fmt.Errorf("gemini translate: %w", err)
	}
	return out, nil
}

// Enrich generates the summary, keywords, highlights and watch score for the
// given content using Gemini.
func (p *GeminiProvider) Enrich(ctx context.Context, in EnrichInput) (*Enrichment, error) {
	systemPrompt, userPrompt := EnrichPrompt(in)

	text, err := p.generate(ctx, systemPrompt, []*genai.Part{genai.NewPartFromText(userPrompt)})
	if err != nil {
		return nil, fmt.Errorf("gemini enrich: %w", err)
	}

	e, err := parseEnrichment(text)
	if err != nil {
		return nil, fmt.Errorf("gemini enrich: %w", err)
	}
	return e, nil
}

// Transcribe asks Gemini to transcribe the speech in the video at mediaURL.
func (p *GeminiProvider) Transcribe(ctx context.Context, mediaURL, languageHint string) ([]models.Segment, error) {
	parts := []*genai.Part{
		genai.NewPartFromText("Transcribe this video."),
		genai.NewPartFromURI(mediaURL, "video/mp4"),
	}

	text, err := p.generate(ctx, TranscribePrompt(languageHint), parts)
	if err != nil {
		return nil, fmt.Errorf("gemini transcribe: %w", err)
	}

	segs, err := parseTranscript(text)
	if err != nil {
		return nil, fmt.Errorf("gemini transcribe: %w", err)
	}
	return segs, nil
}

// generate sends one user turn with a system instruction and returns the
// response text.
func (p *GeminiProvider) generate(ctx context.Context, systemPrompt string, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	slog.Debug("calling Gemini API", "model", p.model)

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty response: no text returned")
	}
	return text, nil
}
