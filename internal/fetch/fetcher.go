// Package fetch dereferences document URLs into readable text. Plain web
// pages go through go-readability; feed:// URLs are resolved to the newest
// entry of the feed first.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoanghai1803/dokhae/internal/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 1 * time.Second
	defaultMaxWords  = 5000
)

// ErrNoContent is returned when a page yields no readable text.
var ErrNoContent = fmt.Errorf("no readable text: %w", models.ErrUnavailable)

// Options configures a Fetcher. Zero fields take defaults.
type Options struct {
	Timeout time.Duration
	// RateLimit is the minimum interval between requests to the same host.
	RateLimit time.Duration
	// MaxWords truncates extracted text.
	MaxWords int
}

// Fetcher extracts documents with per-domain rate limiting.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	interval time.Duration
	maxWords int

	mu       sync.Mutex // protects limiters
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a Fetcher whose HTTP client sends browser-like headers.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = defaultMaxWords
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &userAgentTransport{
				base: http.DefaultTransport,
			},
		},
		timeout:  opts.Timeout,
		interval: opts.RateLimit,
		maxWords: opts.MaxWords,
		limiters: make(map[string]*rate.Limiter),
	}
}

// userAgentTransport wraps an http.RoundTripper to inject a custom User-Agent
// header on every request.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	browserHeaders(req)
	return t.base.RoundTrip(req)
}

// Extract returns the readable content behind rawURL. feed:// URLs are
// resolved to their newest entry, whose own content is used when the entry
// page cannot be extracted.
func (f *Fetcher) Extract(ctx context.Context, rawURL string) (*models.Document, error) {
	var fallback *models.Document
	pageURL := rawURL

	if IsFeedURL(rawURL) {
		item, err := f.newestEntry(ctx, FeedURLToHTTPS(rawURL))
		if err != nil {
			return nil, err
		}
		pageURL = item.URL
		fallback = item
	}

	if err := f.waitForRateLimit(ctx, pageURL); err != nil {
		return nil, err
	}

	doc, err := extractDocument(ctx, pageURL, f.timeout)
	if err != nil || strings.TrimSpace(doc.Text) == "" {
		if fallback != nil && fallback.Text != "" {
			slog.Warn("using feed entry content", "url", pageURL, "error", err)
			doc = fallback
		} else if err != nil {
			return nil, fmt.Errorf("extracting %q: %w", pageURL, err)
		} else {
			return nil, fmt.Errorf("extracting %q: %w", pageURL, ErrNoContent)
		}
	}
	if fallback != nil {
		mergeEntry(doc, fallback)
	}

	doc.Text = truncateWords(doc.Text, f.maxWords)
	return doc, nil
}

// mergeEntry fills fields the page did not provide from its feed entry.
func mergeEntry(doc, entry *models.Document) {
	if doc.Title == "" {
		doc.Title = entry.Title
	}
	if doc.Author == "" {
		doc.Author = entry.Author
	}
	if doc.PublishedAt == nil {
		doc.PublishedAt = entry.PublishedAt
	}
	if doc.SiteName == "" {
		doc.SiteName = entry.SiteName
	}
}

// waitForRateLimit blocks until a request to rawURL's host is allowed.
func (f *Fetcher) waitForRateLimit(ctx context.Context, rawURL string) error {
	if err := f.limiter(extractDomain(rawURL)).Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limit: %w", err)
	}
	return nil
}

func (f *Fetcher) limiter(domain string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[domain]
	if !ok {
		l = rate.NewLimiter(rate.Every(f.interval), 1)
		f.limiters[domain] = l
	}
	return l
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// truncateWords returns the first maxWords whitespace-delimited words from s.
// If s contains fewer than maxWords words, it is returned unchanged.
func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}
