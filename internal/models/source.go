package models

import "time"

// Kind identifies what a reference points at.
type Kind string

const (
	KindVideo Kind = "video"
	KindURL   Kind = "url"
	KindText  Kind = "text"
)

// Valid reports whether k is one of the known reference kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindURL, KindText:
		return true
	}
	return false
}

// ContentSource tags how the body of a SourceContent was obtained. Values are
// ordered by preference: a lower Rank is a better source.
type ContentSource string

const (
	SourcePrimaryPlatform      ContentSource = "primary-platform"
	SourceDerivedTranscription ContentSource = "derived-transcription"
	SourceNone                 ContentSource = "none"
)

// Rank returns the position of s in the preference order, or -1 when s is not
// a known content source.
func (s ContentSource) Rank() int {
	switch s {
	case SourcePrimaryPlatform:
		return 0
	case SourceDerivedTranscription:
		return 1
	case SourceNone:
		return 2
	}
	return -1
}

// Offset units for Segment.Start and Segment.End.
const (
	UnitMillis = "ms"
	UnitChars  = "char"
)

// Segment is one ordered, offset-addressed unit of content. Start and End are
// milliseconds for video transcripts and rune offsets for text documents.
type Segment struct {
	Index          int    `json:"index"`
	Start          int64  `json:"start"`
	End            int64  `json:"end"`
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text,omitempty"`
}

// LanguageInfo is the detected language of a whole SourceContent.
type LanguageInfo struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
	Reliable   bool    `json:"reliable"`
}

// SourceContent is the raw material fetched for a reference.
type SourceContent struct {
	ID               string        `json:"id"`
	Kind             Kind          `json:"kind"`
	URL              string        `json:"url,omitempty"`
	Title            string        `json:"title"`
	Author           string        `json:"author,omitempty"`
	AuthorID         string        `json:"author_id,omitempty"`
	Description      string        `json:"description,omitempty"`
	PublishedAt      *time.Time    `json:"published_at,omitempty"`
	Views            int64         `json:"views"`
	Likes            int64         `json:"likes"`
	DurationSeconds  int           `json:"duration_seconds,omitempty"`
	ThumbnailURL     string        `json:"thumbnail_url,omitempty"`
	DeclaredLanguage string        `json:"declared_language,omitempty"`
	ContentSource    ContentSource `json:"content_source"`
	OffsetUnit       string        `json:"offset_unit"`
	Segments         []Segment     `json:"segments"`
	Text             string        `json:"-"`
}

// HasBody reports whether the content carries any segments to work on.
func (c *SourceContent) HasBody() bool {
	return c.ContentSource != SourceNone && len(c.Segments) > 0
}

// Document is the readable content extracted from a web page.
type Document struct {
	URL         string
	Title       string
	Author      string
	SiteName    string
	Excerpt     string
	Text        string
	ImageURL    string
	PublishedAt *time.Time
}
