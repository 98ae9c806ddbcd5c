package models

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Request asks for the analysis of one reference. Kind may be left empty, in
// which case it is inferred from the reference.
type Request struct {
	Reference      string `json:"reference"`
	Kind           Kind   `json:"kind,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	TitleHint      string `json:"title_hint,omitempty"`
}

// ErrEmptyReference is returned when a request carries no reference.
var ErrEmptyReference = errors.New("reference is required")

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	hasLetter        = regexp.MustCompile(`[A-Za-z]`)
	hasDigit         = regexp.MustCompile(`[0-9]`)
)

// Normalized returns a copy of r with Kind inferred, Reference reduced to its
// canonical form (bare video id, trimmed URL, NFC text) and TargetLanguage
// reduced to a base language code. defaultTarget is used when the request
// does not name a target language.
func (r Request) Normalized(defaultTarget string) (Request, error) {
	ref := strings.TrimSpace(r.Reference)
	if ref == "" {
		return Request{}, ErrEmptyReference
	}

	kind := r.Kind
	if kind == "" {
		kind = InferKind(ref)
	}
	if !kind.Valid() {
		return Request{}, fmt.Errorf("unknown reference kind %q", kind)
	}

	switch kind {
	case KindVideo:
		id, ok := VideoID(ref)
		if !ok {
			return Request{}, fmt.Errorf("invalid video reference %q", ref)
		}
		ref = id
	case KindURL:
		if !IsFetchableURL(ref) {
			return Request{}, fmt.Errorf("invalid document URL %q", ref)
		}
	case KindText:
		ref = norm.NFC.String(ref)
	}

	target := r.TargetLanguage
	if target == "" {
		target = defaultTarget
	}
	code, err := BaseLanguage(target)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Reference:      ref,
		Kind:           kind,
		TargetLanguage: code,
		TitleHint:      strings.TrimSpace(r.TitleHint),
	}, nil
}

// CacheKey derives the cache identity of a normalized request. Raw text is
// hashed so keys stay short.
func (r Request) CacheKey() string {
	ref := r.Reference
	if r.Kind == KindText {
		ref = fmt.Sprintf("%x", sha256.Sum256([]byte(ref)))
	}
	return string(r.Kind) + ":" + ref + "|" + r.TargetLanguage
}

// InferKind guesses the kind of a reference. YouTube URLs and bare video ids
// are videos, http(s) and feed URLs are documents, everything else is text.
// A bare id is an 11-character YouTube id or a single token mixing letters
// and digits; callers with other ids should set Kind explicitly.
func InferKind(ref string) Kind {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		if _, ok := videoIDFromURL(u); ok {
			return KindVideo
		}
		if IsFetchableURL(ref) {
			return KindURL
		}
	}
	if youtubeIDPattern.MatchString(ref) {
		return KindVideo
	}
	if len(ref) <= 20 && videoIDPattern.MatchString(ref) && hasLetter.MatchString(ref) && hasDigit.MatchString(ref) {
		return KindVideo
	}
	return KindText
}

// VideoID extracts a video id from a bare id or a YouTube URL.
func VideoID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		return videoIDFromURL(u)
	}
	if videoIDPattern.MatchString(ref) {
		return ref, true
	}
	return "", false
}

func videoIDFromURL(u *url.URL) (string, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")
	var id string
	switch host {
	case "youtu.be":
		id, _, _ = strings.Cut(path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if path == "watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/", "v/"} {
			if rest, ok := strings.CutPrefix(path, prefix); ok {
				id, _, _ = strings.Cut(rest, "/")
				break
			}
		}
	default:
		return "", false
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// IsFetchableURL reports whether ref is an absolute http, https or feed URL.
func IsFetchableURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "feed":
		return true
	}
	return false
}

// BaseLanguage reduces a BCP 47 tag such as "ko-KR" to its base language
// code ("ko"). The undetermined tag "und" is rejected.
func BaseLanguage(tag string) (string, error) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", tag, err)
	}
	base, conf := t.Base()
	if conf == language.No || base.String() == "und" {
		return "", fmt.Errorf("invalid language %q: undetermined", tag)
	}
	return base.String(), nil
}

// WatchURL returns the public watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
