package language

import (
	"math"
	"strings"
	"unicode"
)

// learnerWPM is the reading speed assumed for study material in a foreign
// language, well below the ~238 WPM of native technical reading.
const learnerWPM = 120

// ReadingMinutes estimates study time in minutes for the given text. Words
// are whitespace- or punctuation-delimited; in unspaced scripts (Han, kana)
// every character counts as a word. Returns a minimum of 1 minute, or 0 for
// empty text.
func ReadingMinutes(text string) int {
	words := countWords(text)
	if words == 0 {
		return 0
	}

	minutes := math.Ceil(float64(words) / learnerWPM)
	if minutes < 1 {
		minutes = 1
	}
	return int(minutes)
}

// countWords counts words in the text. Hangul is spaced by eojeol, so it
// counts like Latin text.
func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || strings.ContainsRune(".,;:!?\"'()[]{}—–-·。、「」", r):
			if inWord {
				count++
				inWord = false
			}
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
			if inWord {
				count++
				inWord = false
			}
			count++
		default:
			inWord = true
		}
	}
	if inWord {
		count++
	}
	return count
}
