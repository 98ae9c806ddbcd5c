package ai

import "github.com/hoanghai1803/dokhae/internal/models"

// ProviderConfig holds the configuration needed to create an AI provider.
type ProviderConfig struct {
	Provider string // "anthropic" | "openai" | "gemini"
	APIKey   string
	Model    string
}

// EnrichInput is the content handed to the enrichment prompt.
type EnrichInput struct {
	Kind            models.Kind
	Title           string
	Author          string
	Description     string
	SourceLanguage  string
	TargetLanguage  string
	OffsetUnit      string
	DurationSeconds int
	// MetadataOnly is set when no transcript or body could be obtained; the
	// model then works from title, author and description alone.
	MetadataOnly bool
	Passages     []Passage
}

// Passage is one offset-addressed piece of content shown to the model.
type Passage struct {
	Offset int64  `json:"offset"`
	Text   string `json:"text"`
}

// Enrichment is the structured output of the enrichment call, before
// validation.
type Enrichment struct {
	Summary          string             `json:"summary"`
	Keywords         []string           `json:"keywords"`
	Highlights       []models.Highlight `json:"highlights"`
	WatchScore       int                `json:"watch_score"`
	WatchScoreReason string             `json:"watch_score_reason"`
}

// translatedLine is one element of the translation response array.
type translatedLine struct {
	I int    `json:"i"`
	T string `json:"t"`
}

// transcriptLine is one element of the transcription response array.
type transcriptLine struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}
