// Package pipeline turns a reference (video id, document URL or raw text)
// into a translated, enriched Artifact. Results are cached per (kind,
// reference, target language) and concurrent identical requests share one
// computation.
package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoanghai1803/dokhae/internal/cache"
	"github.com/hoanghai1803/dokhae/internal/language"
	"github.com/hoanghai1803/dokhae/internal/models"
)

// Config holds the pipeline tunables.
type Config struct {
	// TTL is how long a finished artifact is served from the cache.
	TTL time.Duration
	// Timeout bounds one whole computation, fallbacks included.
	Timeout time.Duration
	Retry   RetryPolicy

	TranslateBatchSize   int
	TranslateConcurrency int

	DefaultTargetLanguage string
	// MinLanguageConfidence is the detector confidence below which the
	// source language is passed to the translator as "auto".
	MinLanguageConfidence float64
	// SampleChars is the size of the language detection sample.
	SampleChars int
}

// Recorder receives one record per Analyze call.
type Recorder interface {
	RecordRun(ctx context.Context, run *models.AnalysisRun) (int64, error)
}

// Deps are the pipeline's collaborators. Translator and Enricher are
// required; Transcriber, Backend and Recorder are optional.
type Deps struct {
	Platform    Platform
	Transcriber Transcriber
	Extractor   Extractor
	Translator  BatchTranslator
	Enricher    EnrichProvider
	Backend     cache.Backend
	Recorder    Recorder
	// Clock replaces time.Now, for tests.
	Clock func() time.Time
}

// Result is an artifact plus how it was obtained.
type Result struct {
	Artifact *models.Artifact
	// Cached is true when no computation ran for this call.
	Cached bool
	// Shared is true when this call joined a computation started by, or
	// also serving, another caller.
	Shared     bool
	ComputedAt time.Time
	// ExpiresAt is zero when the artifact was not retained.
	ExpiresAt time.Time
	// Elapsed is how long this caller waited.
	Elapsed time.Duration
	// EnrichmentErr is set when enrichment failed and the artifact carries
	// no summary, keywords or highlights. Such artifacts are not cached.
	EnrichmentErr error
}

// outcome is the cached value.
type outcome struct {
	Artifact      *models.Artifact `json:"artifact"`
	EnrichmentErr error            `json:"-"`
}

// Pipeline runs and caches analyses.
type Pipeline struct {
	cfg        Config
	cache      *cache.Cache[outcome]
	resolver   *Resolver
	detector   *language.Detector
	translator *Translator
	enricher   *Enricher
	recorder   Recorder
	now        func() time.Time
}

// New creates a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Translator == nil {
		return nil, errors.New("pipeline: translator is required")
	}
	if deps.Enricher == nil {
		return nil, errors.New("pipeline: enricher is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.DefaultTargetLanguage == "" {
		cfg.DefaultTargetLanguage = "en"
	}
	if cfg.SampleChars <= 0 {
		cfg.SampleChars = 2000
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	opts := []cache.Option{cache.WithClock(now)}
	if deps.Backend != nil {
		opts = append(opts, cache.WithBackend(deps.Backend))
	}

	return &Pipeline{
		cfg:        cfg,
		cache:      cache.New[outcome](opts...),
		resolver:   NewResolver(deps.Platform, deps.Transcriber, deps.Extractor, cfg.Retry),
		detector:   language.NewDetector(cfg.MinLanguageConfidence),
		translator: NewTranslator(deps.Translator, cfg.TranslateBatchSize, cfg.TranslateConcurrency, cfg.Retry),
		enricher:   NewEnricher(deps.Enricher, cfg.Retry),
		recorder:   deps.Recorder,
		now:        now,
	}, nil
}

// Analyze returns the artifact for req, from the cache when a fresh one
// exists. If ctx ends first Analyze returns ctx.Err(), but the computation
// carries on and still fills the cache.
func (p *Pipeline) Analyze(ctx context.Context, req models.Request) (*Result, error) {
	start := time.Now()

	nreq, err := req.Normalized(p.cfg.DefaultTargetLanguage)
	if err != nil {
		return nil, stageErr(StageRequest, ErrInvalidRequest, err)
	}
	key := nreq.CacheKey()

	out, meta, err := p.cache.GetOrCompute(ctx, key, p.cfg.TTL, func(ctx context.Context) (outcome, bool, error) {
		return p.compute(ctx, nreq)
	})
	elapsed := time.Since(start)

	var res *Result
	if err == nil {
		res = &Result{
			Artifact:      out.Artifact,
			Cached:        meta.Cached,
			Shared:        meta.Shared,
			ComputedAt:    meta.ComputedAt,
			ExpiresAt:     meta.ExpiresAt,
			Elapsed:       elapsed,
			EnrichmentErr: out.EnrichmentErr,
		}
	}
	p.record(ctx, nreq, key, res, elapsed, err)

	if err != nil {
		return nil, err
	}
	return res, nil
}

// compute runs resolve, language, translate and enrich for one request. It
// runs detached from any single caller and is bounded by the pipeline
// timeout. The returned bool tells the cache whether to keep the result.
func (p *Pipeline) compute(ctx context.Context, req models.Request) (outcome, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	content, err := p.resolver.Resolve(ctx, req)
	if err != nil {
		return outcome{}, false, err
	}
	if content.Kind == models.KindURL || content.Kind == models.KindText {
		if err := language.CheckSpans(content.Segments); err != nil {
			return outcome{}, false, stageErr(StageLanguage, ErrInternal, err)
		}
	}

	lang := p.detector.Detect(language.Sample(content, p.cfg.SampleChars))

	segs, translated, err := p.translator.Translate(ctx, content.Segments, sourceHint(lang, req.TargetLanguage), req.TargetLanguage)
	if err != nil {
		return outcome{}, false, err
	}

	art := &models.Artifact{
		SourceContent:  *content,
		Language:       lang,
		TargetLanguage: req.TargetLanguage,
		Translated:     translated,
		Keywords:       []string{},
		Highlights:     []models.Highlight{},
		ReadingMinutes: readingMinutes(content),
		GeneratedAt:    p.now(),
	}
	art.Segments = segs

	enrichment, err := p.enricher.Enrich(ctx, content, segs, lang, req.TargetLanguage)
	if err != nil {
		slog.Warn("enrichment failed, returning artifact without it",
			"reference", req.Reference,
			"target", req.TargetLanguage,
			"error", err,
		)
		return outcome{Artifact: art, EnrichmentErr: err}, false, nil
	}
	art.Summary = enrichment.Summary
	art.Keywords = enrichment.Keywords
	art.Highlights = enrichment.Highlights
	art.WatchScore = enrichment.WatchScore
	art.WatchScoreReason = enrichment.WatchScoreReason

	slog.Info("analysis computed",
		"kind", req.Kind,
		"reference", logRef(req),
		"target", req.TargetLanguage,
		"content_source", content.ContentSource,
		"language", lang.Code,
		"segments", len(segs),
	)
	return outcome{Artifact: art}, true, nil
}

// sourceHint picks the source language passed to the translator. A guess
// below the confidence threshold is sent as "auto", except when it matches
// the target, so that same-language content is never translated.
func sourceHint(lang models.LanguageInfo, target string) string {
	if lang.Reliable || language.SameLanguage(lang.Code, target) {
		return lang.Code
	}
	return "auto"
}

func readingMinutes(c *models.SourceContent) int {
	if c.Kind == models.KindVideo && c.DurationSeconds > 0 {
		return (c.DurationSeconds + 59) / 60
	}
	if c.Text != "" {
		return language.ReadingMinutes(c.Text)
	}
	n := 0
	for _, s := range c.Segments {
		n += language.ReadingMinutes(s.Text)
	}
	return n
}

// Key returns the cache key req maps to.
func (p *Pipeline) Key(req models.Request) (string, error) {
	nreq, err := req.Normalized(p.cfg.DefaultTargetLanguage)
	if err != nil {
		return "", stageErr(StageRequest, ErrInvalidRequest, err)
	}
	return nreq.CacheKey(), nil
}

// Invalidate drops the cached artifact for req.
func (p *Pipeline) Invalidate(ctx context.Context, req models.Request) error {
	key, err := p.Key(req)
	if err != nil {
		return err
	}
	return p.cache.Invalidate(ctx, key)
}

// Sweep evicts expired artifacts.
func (p *Pipeline) Sweep(ctx context.Context) (int, error) {
	return p.cache.Sweep(ctx)
}

// Stats returns the cache counters.
func (p *Pipeline) Stats() cache.Stats {
	return p.cache.Stats()
}

func (p *Pipeline) record(ctx context.Context, req models.Request, key string, res *Result, elapsed time.Duration, runErr error) {
	if p.recorder == nil {
		return
	}
	run := &models.AnalysisRun{
		CacheKey:       key,
		Kind:           req.Kind,
		Reference:      logRef(req),
		TargetLanguage: req.TargetLanguage,
		ElapsedMs:      elapsed.Milliseconds(),
	}
	if res != nil {
		a := res.Artifact
		run.ContentSource = a.ContentSource
		run.SourceLanguage = a.Language.Code
		run.SegmentCount = len(a.Segments)
		run.Translated = a.Translated
		run.Cached = res.Cached
		if res.EnrichmentErr != nil {
			msg := res.EnrichmentErr.Error()
			run.EnrichmentError = &msg
		}
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := p.recorder.RecordRun(ctx, run); err != nil {
		slog.Warn("recording run", "key", key, "error", err)
	}
}

// logRef shortens raw text references for logs and run records.
func logRef(req models.Request) string {
	if req.Kind != models.KindText {
		return req.Reference
	}
	r := []rune(req.Reference)
	if len(r) <= 40 {
		return req.Reference
	}
	return string(r[:40]) + "…"
}

func shortHash(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))[:16]
}
