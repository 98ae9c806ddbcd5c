package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hoanghai1803/dokhae/internal/models"
)

const translateSystemPromptTmpl = `You are a professional subtitle translator for language learners. Translate each numbered line from %s into %s. Keep the meaning and register of every line; do not merge, split, drop or reorder lines. Return ONLY valid JSON: an array with exactly one object per input line, in input order, each with "i" (the line number as given) and "t" (the translation).`

const enrichSystemPromptTmpl = `You are a language tutor preparing study material. Given a piece of content, write for a learner whose language is %s. Return ONLY valid JSON with these fields:
"summary": 3-4 sentences summarizing the content, written in %s;
"keywords": 5-10 important words or phrases from the original content, in the original language;
"highlights": 3-6 notable moments, each an object with "offset" (copied exactly from one of the given passage offsets), "title" (a few words) and "description" (one sentence), written in %s;
"watch_score": an integer from 1 to 10 rating how worthwhile this content is for a learner;
"watch_score_reason": one sentence explaining the score.`

const enrichMetadataOnlyNote = `No transcript or body is available. Work from the title, author and description only, and return an empty "highlights" array.`

const transcribeSystemPrompt = `You are a transcription service. Transcribe the speech in the provided video verbatim in its original language. Return ONLY valid JSON: an array of objects, one per spoken sentence or caption-length phrase, in playback order, each with "start_ms" and "end_ms" (integers, milliseconds from the start of the video) and "text".`

// TranslatePrompt builds the system and user prompts for translating a batch
// of lines.
func TranslatePrompt(texts []string, source, target string) (systemPrompt string, userPrompt string) {
	from := source
	if from == "" || from == "auto" {
		from = "the detected source language"
	}
	systemPrompt = fmt.Sprintf(translateSystemPromptTmpl, from, target)

	var b strings.Builder
	fmt.Fprintf(&b, "Lines (%d):\n", len(texts))
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i, strings.ReplaceAll(t, "\n", " "))
	}

	userPrompt = b.String()
	return systemPrompt, userPrompt
}

// EnrichPrompt builds the system and user prompts for the enrichment call.
func EnrichPrompt(in EnrichInput) (systemPrompt string, userPrompt string) {
	systemPrompt = fmt.Sprintf(enrichSystemPromptTmpl, in.TargetLanguage, in.TargetLanguage, in.TargetLanguage)
	if in.MetadataOnly {
		systemPrompt += "\n" + enrichMetadataOnlyNote
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Kind: %s\n", in.Kind)
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	if in.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", in.Author)
	}
	if in.SourceLanguage != "" {
		fmt.Fprintf(&b, "Language: %s\n", in.SourceLanguage)
	}
	if in.DurationSeconds > 0 {
		fmt.Fprintf(&b, "Duration: %d minutes\n", (in.DurationSeconds+59)/60)
	}
	if in.Description != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", in.Description)
	}
	if len(in.Passages) > 0 {
		unit := "character offset"
		if in.OffsetUnit == models.UnitMillis {
			unit = "milliseconds"
		}
		fmt.Fprintf(&b, "\nContent (offset in %s | text):\n", unit)
		for _, p := range in.Passages {
			fmt.Fprintf(&b, "%d | %s\n", p.Offset, p.Text)
		}
	}

	userPrompt = b.String()
	return systemPrompt, userPrompt
}

// TranscribePrompt builds the instruction sent alongside the video part.
func TranscribePrompt(languageHint string) string {
	if languageHint == "" {
		return transcribeSystemPrompt
	}
	return transcribeSystemPrompt + fmt.Sprintf(" The spoken language is most likely %s.", languageHint)
}

// parseTranslation decodes a translation response for n input lines. The
// response must hold exactly n elements numbered 0..n-1 in order.
func parseTranslation(text string, n int) ([]string, error) {
	var lines []translatedLine
	if err := json.Unmarshal([]byte(extractJSON(text)), &lines); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	if len(lines) != n {
		return nil, fmt.Errorf("%w: got %d lines, want %d", ErrMisaligned, len(lines), n)
	}
	out := make([]string, n)
	for pos, l := range lines {
		if l.I != pos {
			return nil, fmt.Errorf("%w: line %d numbered %d", ErrMisaligned, pos, l.I)
		}
		out[pos] = l.T
	}
	return out, nil
}

func parseEnrichment(text string) (*Enrichment, error) {
	var e Enrichment
	if err := json.Unmarshal([]byte(extractJSON(text)), &e); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	return &e, nil
}

func parseTranscript(text string) ([]models.Segment, error) {
	var lines []transcriptLine
	if err := json.Unmarshal([]byte(extractJSON(text)), &lines); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	segs := make([]models.Segment, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l.Text)
		if t == "" {
			continue
		}
		segs = append(segs, models.Segment{
			Index: len(segs),
			Start: l.StartMs,
			End:   max(l.EndMs, l.StartMs),
			Text:  t,
		})
	}
	return segs, nil
}

// extractJSON strips markdown code fences from a string that may contain
// JSON wrapped in ```json ... ``` or ``` ... ``` blocks. This handles the
// common case where LLMs return JSON inside code fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Try ```json ... ``` first.
	if after, found := strings.CutPrefix(s, "```json"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// Try plain ``` ... ```.
	if after, found := strings.CutPrefix(s, "```"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	return s
}
