package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// IsFeedURL returns true if the URL uses the feed:// scheme, indicating it
// names an RSS/Atom feed whose newest entry is the document.
func IsFeedURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "feed://")
}

// FeedURLToHTTPS converts a feed:// URL to its https:// equivalent. The
// "feed:https://host" form is accepted too.
func FeedURLToHTTPS(rawURL string) string {
	rest := strings.TrimPrefix(rawURL, "feed://")
	if strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://") {
		return rest
	}
	return "https://" + rest
}

// newestEntry fetches the feed at feedURL and returns its newest entry as a
// document, with the entry's own content as text.
func (f *Fetcher) newestEntry(ctx context.Context, feedURL string) (*models.Document, error) {
	if err := f.waitForRateLimit(ctx, feedURL); err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone) {
			return nil, fmt.Errorf("feed %q: %w", feedURL, models.ErrNotFound)
		}
		return nil, fmt.Errorf("parsing feed %q: %w", feedURL, err)
	}

	item := newestItem(feed)
	if item == nil {
		return nil, fmt.Errorf("feed %q: %w", feedURL, ErrNoContent)
	}
	return entryDocument(feed, item), nil
}

// newestItem returns the item with the latest publish (or update) date.
// Undated items lose to dated ones; among undated items the first wins.
func newestItem(feed *gofeed.Feed) *gofeed.Item {
	var (
		best     *gofeed.Item
		bestTime time.Time
	)
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		t := itemTime(item)
		if best == nil || t.After(bestTime) {
			best, bestTime = item, t
		}
	}
	return best
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func entryDocument(feed *gofeed.Feed, item *gofeed.Item) *models.Document {
	body := item.Content
	if body == "" {
		body = item.Description
	}
	doc := &models.Document{
		URL:      item.Link,
		Title:    strings.TrimSpace(item.Title),
		SiteName: feed.Title,
		Excerpt:  htmlToText(item.Description),
		Text:     htmlToText(body),
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		doc.Author = item.Authors[0].Name
	}
	if t := itemTime(item); !t.IsZero() {
		doc.PublishedAt = &t
	}
	if item.Image != nil {
		doc.ImageURL = item.Image.URL
	}
	return doc
}

// blockElements end a line of text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "blockquote": true,
	"tr": true, "section": true, "article": true, "pre": true,
}

// htmlToText returns the text content of an HTML fragment, with block
// elements on their own lines. Script and style content is dropped.
func htmlToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return strings.TrimSpace(s)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte('\n')
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
