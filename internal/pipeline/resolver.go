package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/hoanghai1803/dokhae/internal/language"
	"github.com/hoanghai1803/dokhae/internal/models"
)

// Platform is the primary video platform: metadata plus its own caption
// tracks.
type Platform interface {
	Metadata(ctx context.Context, id string) (*models.SourceContent, error)
	Transcript(ctx context.Context, id, languageHint string) ([]models.Segment, error)
}

// Transcriber derives a transcript from a video's media.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL, languageHint string) ([]models.Segment, error)
}

// Extractor dereferences a document URL into readable text.
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.Document, error)
}

// transcriptStep is one position of the transcript chain.
type transcriptStep struct {
	source models.ContentSource
	fetch  func(ctx context.Context, content *models.SourceContent) ([]models.Segment, error)
}

// Resolver turns a normalized request into SourceContent.
type Resolver struct {
	platform  Platform
	extractor Extractor
	retry     RetryPolicy
	chain     []transcriptStep
}

// NewResolver builds a resolver. transcriber may be nil, in which case the
// chain goes straight from platform captions to no transcript.
func NewResolver(platform Platform, transcriber Transcriber, extractor Extractor, policy RetryPolicy) *Resolver {
	r := &Resolver{
		platform:  platform,
		extractor: extractor,
		retry:     policy.withDefaults(),
	}
	if platform != nil {
		r.chain = append(r.chain, transcriptStep{
			source: models.SourcePrimaryPlatform,
			fetch: func(ctx context.Context, c *models.SourceContent) ([]models.Segment, error) {
				return platform.Transcript(ctx, c.ID, c.DeclaredLanguage)
			},
		})
	}
	if transcriber != nil {
		r.chain = append(r.chain, transcriptStep{
			source: models.SourceDerivedTranscription,
			fetch: func(ctx context.Context, c *models.SourceContent) ([]models.Segment, error) {
				return transcriber.Transcribe(ctx, models.WatchURL(c.ID), c.DeclaredLanguage)
			},
		})
	}
	return r
}

// Resolve fetches the content for req, which must be normalized.
func (r *Resolver) Resolve(ctx context.Context, req models.Request) (*models.SourceContent, error) {
	switch req.Kind {
	case models.KindVideo:
		return r.resolveVideo(ctx, req)
	case models.KindURL:
		return r.resolveDocument(ctx, req)
	case models.KindText:
		return resolveText(req)
	}
	return nil, stageErr(StageResolve, ErrInvalidRequest, fmt.Errorf("unknown kind %q", req.Kind))
}

func (r *Resolver) resolveVideo(ctx context.Context, req models.Request) (*models.SourceContent, error) {
	if r.platform == nil {
		return nil, stageErr(StageResolve, ErrSourceUnavailable, errors.New("no video platform configured"))
	}

	var content *models.SourceContent
	err := retry(ctx, r.retry, "metadata", func(ctx context.Context) error {
		var err error
		content, err = r.platform.Metadata(ctx, req.Reference)
		return err
	})
	if err != nil {
		return nil, stageErr(StageResolve, ErrSourceUnavailable, err)
	}
	if content.Title == "" {
		content.Title = req.TitleHint
	}
	content.Kind = models.KindVideo
	content.OffsetUnit = models.UnitMillis
	content.ContentSource = models.SourceNone
	content.Segments = nil

	for _, step := range r.chain {
		segs, err := r.attempt(ctx, step, content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stageErr(StageResolve, ErrSourceUnavailable, ctx.Err())
			}
			slog.Warn("transcript source failed, falling back",
				"video", content.ID,
				"source", step.source,
				"error", err,
			)
			continue
		}
		content.ContentSource = step.source
		content.Segments = segs
		break
	}

	if content.ContentSource == models.SourceNone {
		slog.Info("no transcript available, continuing with metadata only", "video", content.ID)
	}
	return content, nil
}

// attempt runs one chain position with its retry budget and checks the
// segments it returns.
func (r *Resolver) attempt(ctx context.Context, step transcriptStep, content *models.SourceContent) ([]models.Segment, error) {
	var segs []models.Segment
	err := retry(ctx, r.retry, string(step.source), func(ctx context.Context) error {
		var err error
		segs, err = step.fetch(ctx, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty transcript: %w", models.ErrUnavailable)
	}
	if err := language.CheckOrder(segs); err != nil {
		return nil, err
	}
	return segs, nil
}

func (r *Resolver) resolveDocument(ctx context.Context, req models.Request) (*models.SourceContent, error) {
	if r.extractor == nil {
		return nil, stageErr(StageResolve, ErrSourceUnavailable, errors.New("no content extractor configured"))
	}

	var doc *models.Document
	err := retry(ctx, r.retry, "extract", func(ctx context.Context) error {
		var err error
		doc, err = r.extractor.Extract(ctx, req.Reference)
		return err
	})
	if err != nil {
		return nil, stageErr(StageResolve, ErrSourceUnavailable, err)
	}

	text := norm.NFC.String(doc.Text)
	segs := language.SplitSentences(text)
	if len(segs) == 0 {
		return nil, stageErr(StageResolve, ErrSourceUnavailable, fmt.Errorf("%s: %w", req.Reference, models.ErrUnavailable))
	}

	url := doc.URL
	if url == "" {
		url = req.Reference
	}
	return &models.SourceContent{
		ID:            shortHash(req.Reference),
		Kind:          models.KindURL,
		URL:           url,
		Title:         firstNonEmpty(doc.Title, req.TitleHint, titleFrom(segs)),
		Author:        firstNonEmpty(doc.Author, doc.SiteName),
		Description:   doc.Excerpt,
		PublishedAt:   doc.PublishedAt,
		ThumbnailURL:  doc.ImageURL,
		ContentSource: models.SourcePrimaryPlatform,
		OffsetUnit:    models.UnitChars,
		Segments:      segs,
		Text:          text,
	}, nil
}

func resolveText(req models.Request) (*models.SourceContent, error) {
	text := norm.NFC.String(req.Reference)
	segs := language.SplitSentences(text)
	if len(segs) == 0 {
		return nil, stageErr(StageResolve, ErrInvalidRequest, errors.New("text has no content"))
	}
	return &models.SourceContent{
		ID:            shortHash(text),
		Kind:          models.KindText,
		Title:         firstNonEmpty(req.TitleHint, titleFrom(segs)),
		ContentSource: models.SourcePrimaryPlatform,
		OffsetUnit:    models.UnitChars,
		Segments:      segs,
		Text:          text,
	}, nil
}

const maxTitleRunes = 80

// titleFrom derives a title from the first sentence.
func titleFrom(segs []models.Segment) string {
	if len(segs) == 0 {
		return ""
	}
	t := segs[0].Text
	if utf8.RuneCountInString(t) <= maxTitleRunes {
		return t
	}
	return strings.TrimSpace(string([]rune(t)[:maxTitleRunes])) + "…"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
