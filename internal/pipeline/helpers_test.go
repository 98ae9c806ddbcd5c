package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoanghai1803/dokhae/internal/ai"
	"github.com/hoanghai1803/dokhae/internal/cache"
	"github.com/hoanghai1803/dokhae/internal/models"
)

// fakePlatform serves fixed metadata and captions. When gate is set,
// Metadata blocks until it is closed.
type fakePlatform struct {
	meta          models.SourceContent
	metaErr       error
	segments      []models.Segment
	transcriptErr error
	gate          chan struct{}

	metaCalls       atomic.Int64
	transcriptCalls atomic.Int64
}

func (f *fakePlatform) Metadata(ctx context.Context, id string) (*models.SourceContent, error) {
	f.metaCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	c := f.meta
	c.ID = id
	return &c, nil
}

func (f *fakePlatform) Transcript(ctx context.Context, id, languageHint string) ([]models.Segment, error) {
	f.transcriptCalls.Add(1)
	if f.transcriptErr != nil {
		return nil, f.transcriptErr
	}
	return append([]models.Segment(nil), f.segments...), nil
}

type fakeTranscriber struct {
	segments []models.Segment
	err      error
	calls    atomic.Int64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaURL, languageHint string) ([]models.Segment, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Segment(nil), f.segments...), nil
}

type fakeExtractor struct {
	doc   models.Document
	err   error
	calls atomic.Int64
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*models.Document, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	d := f.doc
	return &d, nil
}

// fakeTranslator prefixes every line with the target language. dropLast
// makes every response one line short.
type fakeTranslator struct {
	err      error
	dropLast bool

	calls   atomic.Int64
	mu      sync.Mutex
	sources []string
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sources = append(f.sources, source)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "[" + target + "] " + t
	}
	if f.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// fakeEnricher returns a fresh, valid enrichment on every call.
type fakeEnricher struct {
	err       error
	highlight int64
	calls     atomic.Int64
	last      ai.EnrichInput
	mu        sync.Mutex
}

func (f *fakeEnricher) Enrich(ctx context.Context, in ai.EnrichInput) (*ai.Enrichment, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = in
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Enrichment{
		Summary:          "A short talk about " + in.Title,
		Keywords:         []string{"practice", " practice ", "study"},
		Highlights:       []models.Highlight{{Offset: f.highlight, Title: "Opening", Description: "Introduction"}},
		WatchScore:       7,
		WatchScoreReason: "Clear speech",
	}, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []models.AnalysisRun
}

func (f *fakeRecorder) RecordRun(ctx context.Context, run *models.AnalysisRun) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return int64(len(f.runs)), nil
}

func (f *fakeRecorder) all() []models.AnalysisRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AnalysisRun(nil), f.runs...)
}

// memBackend is an in-memory cache.Backend.
type memBackend struct {
	mu      sync.Mutex
	records map[string]*cache.Record
}

func newMemBackend() *memBackend {
	return &memBackend{records: make(map[string]*cache.Record)}
}

func (b *memBackend) Get(_ context.Context, key string) (*cache.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (b *memBackend) Put(_ context.Context, rec *cache.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *rec
	b.records[rec.Key] = &cp
	return nil
}

func (b *memBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, key)
	return nil
}

func (b *memBackend) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k, rec := range b.records {
		if !now.Before(rec.ExpiresAt) {
			delete(b.records, k)
			n++
		}
	}
	return n, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// timedSegments builds an ordered transcript, two seconds per line.
func timedSegments(lines ...string) []models.Segment {
	segs := make([]models.Segment, len(lines))
	for i, l := range lines {
		segs[i] = models.Segment{
			Index: i,
			Start: int64(i) * 2000,
			End:   int64(i)*2000 + 1800,
			Text:  l,
		}
	}
	return segs
}

var englishLines = []string{
	"Welcome back to the channel, today we are going to talk about learning languages.",
	"The most important thing is to listen to native speakers every single day.",
	"After a few weeks you will notice that your understanding improves a lot.",
}

var koreanLines = []string{
	"안녕하세요, 오늘은 한국어 공부 방법에 대해 이야기해 보겠습니다.",
	"매일 조금씩 듣고 따라 말하는 것이 가장 중요합니다.",
	"몇 주가 지나면 실력이 많이 늘었다는 것을 느낄 수 있을 거예요.",
}

type fixture struct {
	platform    *fakePlatform
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	translator  *fakeTranslator
	enricher    *fakeEnricher
	recorder    *fakeRecorder
	clock       *fakeClock
}

func newFixture(lines []string) *fixture {
	return &fixture{
		platform: &fakePlatform{
			meta: models.SourceContent{
				Title:           "Study with me",
				Author:          "Kim Minji",
				DurationSeconds: 125,
			},
			segments: timedSegments(lines...),
		},
		transcriber: &fakeTranscriber{segments: timedSegments(lines...)},
		extractor:   &fakeExtractor{},
		translator:  &fakeTranslator{},
		enricher:    &fakeEnricher{},
		recorder:    &fakeRecorder{},
		clock:       newFakeClock(),
	}
}

func (f *fixture) pipeline(t *testing.T, backend cache.Backend) *Pipeline {
	t.Helper()
	deps := Deps{
		Platform:    f.platform,
		Transcriber: f.transcriber,
		Extractor:   f.extractor,
		Translator:  f.translator,
		Enricher:    f.enricher,
		Backend:     backend,
		Recorder:    f.recorder,
		Clock:       f.clock.Now,
	}
	p, err := New(Config{
		TTL:                   time.Hour,
		Timeout:               5 * time.Second,
		Retry:                 fastPolicy(2),
		TranslateBatchSize:    2,
		DefaultTargetLanguage: "en",
		MinLanguageConfidence: 0.5,
	}, deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func hasPrefixAll(segs []models.Segment, prefix string) bool {
	for _, s := range segs {
		if !strings.HasPrefix(s.TranslatedText, prefix) {
			return false
		}
	}
	return true
}
