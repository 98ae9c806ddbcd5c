package language

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// ErrSpanViolation is returned when segments do not tile their text or are
// out of order.
var ErrSpanViolation = errors.New("segment span violation")

// Terminators that end a sentence only when followed by whitespace or the end
// of the text.
const latinTerminators = ".?!"

// Terminators that end a sentence wherever they appear.
const wideTerminators = "…。？！"

const closers = "\"')]}’”」』》〉"

// Korean sentence-final endings that close a sentence when followed by
// whitespace even without punctuation.
var koreanEndings = []string{"니다", "습니까", "죠"}

// politeStems are the syllables that precede 요 in the polite speech level
// (먹어요, 좋아요, 학생이에요, 가세요, 그렇군요, 할까요). A 요 after any
// other syllable is taken as part of a noun such as 필요, 중요, 주요 or 개요.
var politeStems = map[rune]bool{
	'어': true, '아': true, '에': true, '예': true, '세': true, '네': true,
	'군': true, '지': true, '까': true, '게': true, '래': true, '대': true,
	'데': true, '해': true, '돼': true, '봐': true, '와': true, '줘': true,
	'워': true, '셔': true, '져': true, '려': true, '가': true, '나': true,
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "fig": true, "inc": true,
	"ltd": true, "co": true, "approx": true, "dept": true,
}

// SplitSentences normalises text to NFC and splits it into sentence segments.
// Start and End are rune offsets into the normalised text, the spans tile it
// without gaps, and whitespace following a sentence belongs to that
// sentence's span. Segment.Text is the trimmed sentence.
func SplitSentences(text string) []models.Segment {
	runes := []rune(norm.NFC.String(text))
	var segs []models.Segment
	start := 0

	emit := func(end int) {
		body := strings.TrimSpace(string(runes[start:end]))
		if body == "" {
			if n := len(segs); n > 0 {
				segs[n-1].End = int64(end)
				start = end
			}
			return
		}
		segs = append(segs, models.Segment{
			Index: len(segs),
			Start: int64(start),
			End:   int64(end),
			Text:  body,
		})
		start = end
	}

	for i := 0; i < len(runes); i++ {
		end, ok := boundaryAt(runes, i)
		if !ok {
			continue
		}
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		emit(end)
		i = end - 1
	}
	if start < len(runes) {
		emit(len(runes))
	}
	return segs
}

// boundaryAt reports whether a sentence ends at runes[i], returning the index
// just past the sentence body (terminators and closers included).
func boundaryAt(runes []rune, i int) (int, bool) {
	r := runes[i]
	switch {
	case r == '\n':
		return i + 1, true

	case strings.ContainsRune(wideTerminators, r):
		return skipClosers(runes, skipTerminators(runes, i)), true

	case strings.ContainsRune(latinTerminators, r):
		if r == '.' && (isDecimalPoint(runes, i) || isAbbreviation(runes, i)) {
			return 0, false
		}
		end := skipClosers(runes, skipTerminators(runes, i))
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			return 0, false
		}
		return end, true

	case unicode.Is(unicode.Hangul, r):
		if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) && hasKoreanEnding(runes[:i+1]) {
			return i + 1, true
		}
	}
	return 0, false
}

func skipTerminators(runes []rune, i int) int {
	for i < len(runes) && strings.ContainsRune(latinTerminators+wideTerminators, runes[i]) {
		i++
	}
	return i
}

func skipClosers(runes []rune, i int) int {
	for i < len(runes) && strings.ContainsRune(closers, runes[i]) {
		i++
	}
	return i
}

func isDecimalPoint(runes []rune, i int) bool {
	return i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

// isAbbreviation reports whether the period at runes[i] closes a known
// abbreviation, a single-letter initial or a dotted initialism (U.S., U.K.).
func isAbbreviation(runes []rune, i int) bool {
	j := i
	for j > 0 && (unicode.IsLetter(runes[j-1]) || runes[j-1] == '.') {
		j--
	}
	word := string(runes[j:i])
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsUpper(runes[j]) && unicode.In(runes[j], unicode.Latin) {
		return true
	}
	if abbreviations[strings.ToLower(word)] {
		return true
	}
	return isInitialism(word)
}

// isInitialism reports whether word is two or more single Latin letters
// joined by periods, such as "U.S" or "N.Y.C".
func isInitialism(word string) bool {
	parts := strings.Split(word, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		r := []rune(p)
		if len(r) != 1 || !unicode.In(r[0], unicode.Latin) {
			return false
		}
	}
	return true
}

func hasKoreanEnding(prefix []rune) bool {
	if n := len(prefix); n >= 2 && prefix[n-1] == '요' {
		return politeStems[prefix[n-2]]
	}
	s := string(prefix)
	for _, e := range koreanEndings {
		if strings.HasSuffix(s, e) {
			return true
		}
	}
	return false
}

// CheckSpans verifies that segments are indexed in order and tile their text:
// each span is non-empty and starts where the previous one ended.
func CheckSpans(segs []models.Segment) error {
	for i, s := range segs {
		if s.Index != i {
			return fmt.Errorf("%w: segment %d has index %d", ErrSpanViolation, i, s.Index)
		}
		if s.End <= s.Start {
			return fmt.Errorf("%w: segment %d is empty [%d,%d)", ErrSpanViolation, i, s.Start, s.End)
		}
		if i > 0 && s.Start != segs[i-1].End {
			return fmt.Errorf("%w: segment %d starts at %d, previous ends at %d",
				ErrSpanViolation, i, s.Start, segs[i-1].End)
		}
	}
	return nil
}

// CheckOrder verifies that timed segments are indexed in order with
// non-decreasing start times. Overlaps and gaps are allowed since caption
// tracks contain both.
func CheckOrder(segs []models.Segment) error {
	for i, s := range segs {
		if s.Index != i {
			return fmt.Errorf("%w: segment %d has index %d", ErrSpanViolation, i, s.Index)
		}
		if s.End < s.Start {
			return fmt.Errorf("%w: segment %d ends before it starts", ErrSpanViolation, i)
		}
		if i > 0 && s.Start < segs[i-1].Start {
			return fmt.Errorf("%w: segment %d starts at %d before segment %d at %d",
				ErrSpanViolation, i, s.Start, i-1, segs[i-1].Start)
		}
	}
	return nil
}
