// Package youtube reads video metadata from the YouTube Data API and caption
// tracks from the public timed-text endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// DefaultTimedTextURL is the public caption endpoint.
const DefaultTimedTextURL = "https://www.youtube.com/api/timedtext"

var (
	// ErrNotFound is returned when a video does not exist or is private.
	ErrNotFound = fmt.Errorf("video %w", models.ErrNotFound)
	// ErrNoTranscript is returned when no caption track is available in any
	// of the tried languages.
	ErrNoTranscript = fmt.Errorf("no transcript: %w", models.ErrUnavailable)
)

// Config configures a Client.
type Config struct {
	APIKey string
	// TranscriptLanguages are tried in order after the video's declared
	// audio language.
	TranscriptLanguages []string
	TimedTextURL        string
	// Options are passed to the Data API service, mainly for tests.
	Options []option.ClientOption
}

// Client fetches video metadata and transcripts.
type Client struct {
	service      *youtube.Service
	httpClient   *http.Client
	timedTextURL string
	languages    []string
}

// NewClient creates a Client authenticated with an API key.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := cfg.Options
	if cfg.APIKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating YouTube service: %w", err)
	}

	timedText := cfg.TimedTextURL
	if timedText == "" {
		timedText = DefaultTimedTextURL
	}

	return &Client{
		service:      service,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		timedTextURL: timedText,
		languages:    cfg.TranscriptLanguages,
	}, nil
}

// Metadata returns the video's metadata as a SourceContent without a body.
func (c *Client) Metadata(ctx context.Context, id string) (*models.SourceContent, error) {
	resp, err := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("listing video %s: %w", id, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return toSourceContent(resp.Items[0]), nil
}

func toSourceContent(item *youtube.Video) *models.SourceContent {
	content := &models.SourceContent{
		ID:            item.Id,
		Kind:          models.KindVideo,
		URL:           models.WatchURL(item.Id),
		ContentSource: models.SourceNone,
		OffsetUnit:    models.UnitMillis,
	}

	if s := item.Snippet; s != nil {
		content.Title = s.Title
		content.Author = s.ChannelTitle
		content.AuthorID = s.ChannelId
		content.Description = s.Description
		content.DeclaredLanguage = s.DefaultAudioLanguage
		if content.DeclaredLanguage == "" {
			content.DeclaredLanguage = s.DefaultLanguage
		}
		if publishedAt, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			content.PublishedAt = &publishedAt
		}
		if s.Thumbnails != nil {
			for _, th := range []*youtube.Thumbnail{s.Thumbnails.Maxres, s.Thumbnails.High, s.Thumbnails.Medium, s.Thumbnails.Default} {
				if th != nil && th.Url != "" {
					content.ThumbnailURL = th.Url
					break
				}
			}
		}
	}
	if item.ContentDetails != nil {
		content.DurationSeconds = parseDurationSeconds(item.ContentDetails.Duration)
	}
	if item.Statistics != nil {
		content.Views = int64(item.Statistics.ViewCount)
		content.Likes = int64(item.Statistics.LikeCount)
	}
	return content
}

// timedText is the json3 caption format.
type timedText struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Transcript returns the caption track of a video as timed segments. The
// declared language is tried first, then the configured languages.
func (c *Client) Transcript(ctx context.Context, id, declaredLanguage string) ([]models.Segment, error) {
	for _, lang := range c.candidateLanguages(declaredLanguage) {
		segs, err := c.fetchTrack(ctx, id, lang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Debug("caption track unavailable", "video", id, "lang", lang, "error", err)
			continue
		}
		if len(segs) > 0 {
			slog.Debug("fetched caption track", "video", id, "lang", lang, "segments", len(segs))
			return segs, nil
		}
	}
	return nil, fmt.Errorf("video %s: %w", id, ErrNoTranscript)
}

func (c *Client) candidateLanguages(declared string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, l := range append([]string{declared}, c.languages...) {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		langs = append(langs, l)
	}
	return langs
}

func (c *Client) fetchTrack(ctx context.Context, id, lang string) ([]models.Segment, error) {
	q := url.Values{}
	q.Set("v", id)
	q.Set("lang", lang)
	q.Set("fmt", "json3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.timedTextURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading captions: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]models.Segment, error) {
	var tt timedText
	if err := json.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parsing captions: %w", err)
	}

	var segs []models.Segment
	for _, ev := range tt.Events {
		var b strings.Builder
		for _, s := range ev.Segs {
			b.WriteString(s.UTF8)
		}
		text := strings.Join(strings.Fields(b.String()), " ")
		if text == "" {
			continue
		}
		segs = append(segs, models.Segment{
			Index: len(segs),
			Start: ev.TStartMs,
			End:   ev.TStartMs + max(ev.DDurationMs, 0),
			Text:  text,
		})
	}
	return segs, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseDurationSeconds converts an ISO 8601 duration such as "PT1M30S" or
// "P1DT2H" to seconds. Unparseable input yields 0.
func parseDurationSeconds(duration string) int {
	m := isoDuration.FindStringSubmatch(duration)
	if m == nil {
		return 0
	}
	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		if n, err := strconv.Atoi(m[i+1]); err == nil {
			total += n * unit
		}
	}
	return total
}
