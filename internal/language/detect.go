// Package language detects the language of fetched content and splits plain
// text into offset-addressed sentence segments.
package language

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// Undetermined is the code reported when no language could be guessed.
const Undetermined = "und"

// Detector guesses the dominant language of a text sample.
type Detector struct {
	// MinConfidence is the confidence at or above which a guess is reported
	// as reliable.
	MinConfidence float64
}

// NewDetector returns a Detector with the given reliability threshold.
func NewDetector(minConfidence float64) *Detector {
	return &Detector{MinConfidence: minConfidence}
}

// Detect returns the best guess for sample. It never fails: an empty or
// unrecognisable sample yields Undetermined with zero confidence.
func (d *Detector) Detect(sample string) models.LanguageInfo {
	sample = strings.TrimSpace(sample)
	if sample == "" {
		return models.LanguageInfo{Code: Undetermined}
	}

	info := whatlanggo.Detect(sample)
	code := normalizeCode(info.Lang.Iso6391(), info.Lang.Iso6393())
	if code == Undetermined {
		return models.LanguageInfo{Code: Undetermined}
	}

	return models.LanguageInfo{
		Code:       code,
		Confidence: info.Confidence,
		Reliable:   info.Confidence >= d.MinConfidence,
	}
}

// normalizeCode reduces a detector code to a BCP 47 base language, preferring
// the two-letter form.
func normalizeCode(codes ...string) string {
	for _, c := range codes {
		if c == "" {
			continue
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No || base.String() == Undetermined {
			continue
		}
		return base.String()
	}
	return Undetermined
}

// SameLanguage reports whether two codes share a base language. Undetermined
// never matches.
func SameLanguage(a, b string) bool {
	a, b = normalizeCode(a), normalizeCode(b)
	return a != Undetermined && a == b
}

// Sample builds the detection sample for content: segment texts joined in
// order until maxChars runes are collected. Content without a body falls back
// to its title and description.
func Sample(content *models.SourceContent, maxChars int) string {
	var b strings.Builder
	n := 0
	add := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" {
			return true
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
			n++
		}
		for _, r := range s {
			if maxChars > 0 && n >= maxChars {
				return false
			}
			b.WriteRune(r)
			n++
		}
		return maxChars <= 0 || n < maxChars
	}

	if content.HasBody() {
		for _, seg := range content.Segments {
			if !add(seg.Text) {
				break
			}
		}
		return b.String()
	}
	if add(content.Title) {
		add(content.Description)
	}
	return b.String()
}

// RuneCount is utf8.RuneCountInString, exported for offset bookkeeping.
func RuneCount(s string) int64 {
	return int64(utf8.RuneCountInString(s))
}
