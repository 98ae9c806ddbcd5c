package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// browserHeaders sets browser-like request headers so sites that check Accept
// or User-Agent don't reject the request with 406.
func browserHeaders(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	r.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Dokhae/1.0; +https://github.com/hoanghai1803/dokhae)")
}

// extractDocument fetches the web page at pageURL and returns its main
// readable content using go-readability.
func extractDocument(ctx context.Context, pageURL string, timeout time.Duration) (*models.Document, error) {
	type result struct {
		article readability.Article
		err     error
	}
	// readability.FromURL takes no context; run it aside so ctx can end the
	// wait early.
	ch := make(chan result, 1)
	go func() {
		article, err := readability.FromURL(pageURL, timeout, browserHeaders)
		ch <- result{article, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("readability extraction: %w", res.err)
	}

	a := res.article
	return &models.Document{
		URL:         pageURL,
		Title:       strings.TrimSpace(a.Title),
		Author:      strings.TrimSpace(a.Byline),
		SiteName:    a.SiteName,
		Excerpt:     a.Excerpt,
		Text:        strings.TrimSpace(a.TextContent),
		ImageURL:    a.Image,
		PublishedAt: a.PublishedTime,
	}, nil
}
