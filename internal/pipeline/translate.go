package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/dokhae/internal/ai"
	"github.com/hoanghai1803/dokhae/internal/language"
	"github.com/hoanghai1803/dokhae/internal/models"
)

// BatchTranslator translates a batch of lines, returning them in input order.
type BatchTranslator interface {
	TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error)
}

// Translator fills Segment.TranslatedText through a BatchTranslator.
type Translator struct {
	provider    BatchTranslator
	batchSize   int
	concurrency int
	retry       RetryPolicy
}

// NewTranslator creates a Translator. Non-positive sizes default to 40 lines
// per batch and 4 batches in flight.
func NewTranslator(provider BatchTranslator, batchSize, concurrency int, policy RetryPolicy) *Translator {
	if batchSize <= 0 {
		batchSize = 40
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Translator{
		provider:    provider,
		batchSize:   batchSize,
		concurrency: concurrency,
		retry:       policy.withDefaults(),
	}
}

// Translate returns a copy of segs with TranslatedText filled. segs is never
// modified. Offsets and indices are taken from the input, never from the
// provider.
//
// When source and target share a base language the provider is not called
// and every TranslatedText equals Text; translated is false in that case and
// when there is nothing to translate.
func (t *Translator) Translate(ctx context.Context, segs []models.Segment, source, target string) (out []models.Segment, translated bool, err error) {
	out = make([]models.Segment, len(segs))
	copy(out, segs)

	if language.SameLanguage(source, target) {
		for i := range out {
			out[i].TranslatedText = out[i].Text
		}
		return out, false, nil
	}
	if len(segs) == 0 {
		return out, false, nil
	}

	batches := (len(segs) + t.batchSize - 1) / t.batchSize
	results := make([][]string, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for b := range batches {
		lo := b * t.batchSize
		hi := min(lo+t.batchSize, len(segs))
		texts := make([]string, hi-lo)
		for i := lo; i < hi; i++ {
			texts[i-lo] = segs[i].Text
		}

		g.Go(func() error {
			var lines []string
			err := retry(gctx, t.retry, "translate", func(ctx context.Context) error {
				var err error
				lines, err = t.provider.TranslateBatch(ctx, texts, source, target)
				if err == nil && len(lines) != len(texts) {
					err = fmt.Errorf("%w: got %d lines, want %d", ai.ErrMisaligned, len(lines), len(texts))
				}
				return err
			})
			if err != nil {
				return fmt.Errorf("batch %d (segments %d-%d): %w", b, lo, hi-1, err)
			}
			results[b] = lines
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, ai.ErrMisaligned) {
			return nil, false, stageErr(StageTranslate, ErrTranslationOrder, err)
		}
		return nil, false, stageErr(StageTranslate, ErrTranslation, err)
	}

	for b, lines := range results {
		for j, line := range lines {
			out[b*t.batchSize+j].TranslatedText = line
		}
	}

	slog.Debug("translated segments", "segments", len(segs), "batches", batches, "source", source, "target", target)
	return out, true, nil
}
