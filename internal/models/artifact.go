package models

import "time"

// Highlight points at a notable moment (video) or passage (text).
type Highlight struct {
	Offset      int64  `json:"offset"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Artifact is the finished analysis of one reference for one target language.
// It is published once and never modified; callers must treat it as read-only.
type Artifact struct {
	SourceContent

	Language         LanguageInfo `json:"language"`
	TargetLanguage   string       `json:"target_language"`
	Translated       bool         `json:"translated"`
	Summary          string       `json:"summary"`
	Keywords         []string     `json:"keywords"`
	Highlights       []Highlight  `json:"highlights"`
	WatchScore       int          `json:"watch_score"`
	WatchScoreReason string       `json:"watch_score_reason"`
	ReadingMinutes   int          `json:"reading_minutes"`
	GeneratedAt      time.Time    `json:"generated_at"`
}
