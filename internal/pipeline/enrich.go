package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hoanghai1803/dokhae/internal/ai"
	"github.com/hoanghai1803/dokhae/internal/models"
)

// EnrichProvider is the generative collaborator behind enrichment.
type EnrichProvider interface {
	Enrich(ctx context.Context, in ai.EnrichInput) (*ai.Enrichment, error)
}

// Watch score bounds.
const (
	MinWatchScore = 1
	MaxWatchScore = 10
)

// maxPassageRunes caps the content shown to the model.
const maxPassageRunes = 12000

// Enricher produces validated summaries, keywords, highlights and scores.
type Enricher struct {
	provider EnrichProvider
	retry    RetryPolicy
}

// NewEnricher creates an Enricher.
func NewEnricher(provider EnrichProvider, policy RetryPolicy) *Enricher {
	return &Enricher{provider: provider, retry: policy.withDefaults()}
}

// Enrich makes one enrichment call for content and validates the result.
// Content without a body is enriched from its metadata alone. Any failure is
// returned as a *StageError of kind ErrEnrichment.
func (e *Enricher) Enrich(ctx context.Context, content *models.SourceContent, segs []models.Segment, lang models.LanguageInfo, target string) (*ai.Enrichment, error) {
	in := ai.EnrichInput{
		Kind:            content.Kind,
		Title:           content.Title,
		Author:          content.Author,
		Description:     content.Description,
		SourceLanguage:  lang.Code,
		TargetLanguage:  target,
		OffsetUnit:      content.OffsetUnit,
		DurationSeconds: content.DurationSeconds,
		MetadataOnly:    !content.HasBody(),
	}
	if !in.MetadataOnly {
		in.Passages = passages(segs, maxPassageRunes)
	}

	// Malformed output counts as a failed attempt.
	var out *ai.Enrichment
	err := retry(ctx, e.retry, "enrich", func(ctx context.Context) error {
		var err error
		out, err = e.provider.Enrich(ctx, in)
		if err == nil {
			err = validateEnrichment(out, segs, in.MetadataOnly)
		}
		return err
	})
	if err != nil {
		return nil, stageErr(StageEnrich, ErrEnrichment, err)
	}
	return out, nil
}

func passages(segs []models.Segment, budget int) []ai.Passage {
	out := make([]ai.Passage, 0, len(segs))
	used := 0
	for _, s := range segs {
		n := len([]rune(s.Text))
		if used+n > budget && len(out) > 0 {
			break
		}
		out = append(out, ai.Passage{Offset: s.Start, Text: s.Text})
		used += n
	}
	return out
}

// validateEnrichment checks the model output in place: it trims and dedupes
// keywords, sorts highlights by offset, and rejects anything malformed.
func validateEnrichment(e *ai.Enrichment, segs []models.Segment, metadataOnly bool) error {
	if e == nil {
		return errors.New("empty enrichment")
	}

	e.Summary = strings.TrimSpace(e.Summary)
	if e.Summary == "" {
		return errors.New("summary is missing")
	}
	if e.WatchScore < MinWatchScore || e.WatchScore > MaxWatchScore {
		return fmt.Errorf("watch score %d outside %d..%d", e.WatchScore, MinWatchScore, MaxWatchScore)
	}
	e.WatchScoreReason = strings.TrimSpace(e.WatchScoreReason)

	keywords := make([]string, 0, len(e.Keywords))
	seen := make(map[string]bool)
	for _, k := range e.Keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
	}
	if len(keywords) == 0 {
		return errors.New("no keywords")
	}
	e.Keywords = keywords

	if metadataOnly {
		// There is no content span to point into.
		e.Highlights = []models.Highlight{}
		return nil
	}

	var lo, hi int64
	if len(segs) > 0 {
		lo = segs[0].Start
		for _, s := range segs {
			lo = min(lo, s.Start)
			hi = max(hi, s.End)
		}
	}
	for i := range e.Highlights {
		h := &e.Highlights[i]
		h.Title = strings.TrimSpace(h.Title)
		h.Description = strings.TrimSpace(h.Description)
		if h.Title == "" {
			return fmt.Errorf("highlight %d has no title", i)
		}
		if h.Offset < lo || h.Offset > hi {
			return fmt.Errorf("highlight %d offset %d outside content span [%d, %d]", i, h.Offset, lo, hi)
		}
	}
	if e.Highlights == nil {
		e.Highlights = []models.Highlight{}
	}
	slices.SortStableFunc(e.Highlights, func(a, b models.Highlight) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})
	return nil
}
