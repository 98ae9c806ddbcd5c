package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// ErrMisaligned is returned when a translation response does not line up
// one-to-one, in order, with its input.
var ErrMisaligned = errors.New("translation response misaligned with input")

// AIProvider is the interface that all LLM providers must implement.
type AIProvider interface {
	// TranslateBatch translates texts from source to target language. The
	// result has the same length and order as texts. source may be "auto"
	// when the language could not be detected reliably.
	TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error)

	// Enrich produces a summary, keywords, highlights and a watch score for
	// the given content.
	Enrich(ctx context.Context, in EnrichInput) (*Enrichment, error)
}

// Transcriber produces timed transcript segments from a media reference.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL, languageHint string) ([]models.Segment, error)
}

// NewProvider creates the appropriate provider based on config.
func NewProvider(cfg ProviderConfig) (AIProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	case "gemini":
		p, err := NewGeminiProvider(context.Background(), cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// NewTranscriber creates a speech-to-text provider. Only Gemini can take a
// video URL as input.
func NewTranscriber(cfg ProviderConfig) (Transcriber, error) {
	switch cfg.Provider {
	case "gemini":
		p, err := NewGeminiProvider(context.Background(), cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Provider)
	}
}
