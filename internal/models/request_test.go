package models

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		ref  string
		want Kind
	}{
		{"https://youtu.be/dQw4w9WgXcQ", KindVideo},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", KindVideo},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", KindVideo},
		{"dQw4w9WgXcQ", KindVideo},
		// Short tokens mixing letters and digits are taken as bare ids.
		{"abc123", KindVideo},
		{"https://www.youtube.com/channel/UCabc", KindURL},
		{"https://example.com/post/1", KindURL},
		{"feed://example.com/rss.xml", KindURL},
		{"hello", KindText},
		{"12345", KindText},
		{"ftp://example.com/file", KindText},
		{"안녕하세요. 반갑습니다.", KindText},
		{"a sentence with 2 words mixed in", KindText},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := InferKind(tt.ref); got != tt.want {
				t.Errorf("InferKind(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"  vid123  ", "vid123", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ/", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch", "", false},
		{"https://www.youtube.com/channel/UCabc", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"not an id!", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := VideoID(tt.ref)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("VideoID(%q) = %q, %v, want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsFetchableURL(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://example.com/a", true},
		{"http://example.com", true},
		{"feed://example.com/rss", true},
		{"ftp://example.com/file", false},
		{"example.com/a", false},
		{"/relative/path", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsFetchableURL(tt.ref); got != tt.want {
			t.Errorf("IsFetchableURL(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestBaseLanguage(t *testing.T) {
	tests := []struct {
		tag     string
		want    string
		wantErr bool
	}{
		{"ko", "ko", false},
		{"ko-KR", "ko", false},
		{"EN-us", "en", false},
		{"zh-Hant-TW", "zh", false},
		{"und", "", true},
		{"", "", true},
		{"not a language", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := BaseLanguage(tt.tag)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BaseLanguage(%q) error = %v, wantErr %v", tt.tag, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BaseLanguage(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestRequest_Normalized(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    Request
		wantErr error
	}{
		{
			name: "watch URL reduced to id",
			req:  Request{Reference: " https://youtu.be/dQw4w9WgXcQ ", TargetLanguage: "ko-KR", TitleHint: "  hint "},
			want: Request{Reference: "dQw4w9WgXcQ", Kind: KindVideo, TargetLanguage: "ko", TitleHint: "hint"},
		},
		{
			name: "default target language",
			req:  Request{Reference: "https://example.com/post"},
			want: Request{Reference: "https://example.com/post", Kind: KindURL, TargetLanguage: "en"},
		},
		{
			name: "explicit kind overrides inference",
			req:  Request{Reference: "abc123", Kind: KindText},
			want: Request{Reference: "abc123", Kind: KindText, TargetLanguage: "en"},
		},
		{
			name:    "empty reference",
			req:     Request{Reference: "   "},
			wantErr: ErrEmptyReference,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Normalized("en")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalized() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalized() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalized() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequest_NormalizedRejects(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown kind", Request{Reference: "x", Kind: "audio"}},
		{"bad video id", Request{Reference: "not an id!", Kind: KindVideo}},
		{"non-video URL as video", Request{Reference: "https://example.com/watch?v=abc", Kind: KindVideo}},
		{"URL without scheme", Request{Reference: "example.com/post", Kind: KindURL}},
		{"undetermined target", Request{Reference: "hello", TargetLanguage: "und"}},
		{"malformed target", Request{Reference: "hello", TargetLanguage: "not a language"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := tt.req.Normalized("en"); err == nil {
				t.Errorf("Normalized() = %+v, want error", got)
			}
		})
	}
}

func TestRequest_CacheKey(t *testing.T) {
	key := func(t *testing.T, r Request) string {
		t.Helper()
		n, err := r.Normalized("en")
		if err != nil {
			t.Fatalf("Normalized(%+v) error: %v", r, err)
		}
		return n.CacheKey()
	}

	text := "한국어 공부는 재미있어요."

	t.Run("NFC and NFD text share a key", func(t *testing.T) {
		nfc := key(t, Request{Reference: norm.NFC.String(text), Kind: KindText})
		nfd := key(t, Request{Reference: norm.NFD.String(text), Kind: KindText})
		if nfc != nfd {
			t.Errorf("keys differ: %q vs %q", nfc, nfd)
		}
		if strings.Contains(nfc, "한국어") {
			t.Errorf("key %q carries raw text", nfc)
		}
		if !strings.HasPrefix(nfc, "text:") || !strings.HasSuffix(nfc, "|en") {
			t.Errorf("key %q, want text:<hash>|en", nfc)
		}
	})

	t.Run("regional target shares a key with its base", func(t *testing.T) {
		a := key(t, Request{Reference: "dQw4w9WgXcQ", TargetLanguage: "ko-KR"})
		b := key(t, Request{Reference: "dQw4w9WgXcQ", TargetLanguage: "ko"})
		if a != b || a != "video:dQw4w9WgXcQ|ko" {
			t.Errorf("keys = %q, %q, want video:dQw4w9WgXcQ|ko", a, b)
		}
	})

	t.Run("URL and bare id share a key", func(t *testing.T) {
		a := key(t, Request{Reference: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
		b := key(t, Request{Reference: "dQw4w9WgXcQ"})
		if a != b {
			t.Errorf("keys differ: %q vs %q", a, b)
		}
	})

	t.Run("kind and target separate keys", func(t *testing.T) {
		reqs := []Request{
			{Reference: "abc123"},
			{Reference: "abc123", Kind: KindText},
			{Reference: "abc123", TargetLanguage: "ko"},
			{Reference: "feed://example.com/rss.xml"},
			{Reference: "https://example.com/rss.xml"},
		}
		keys := make(map[string]bool)
		for _, r := range reqs {
			keys[key(t, r)] = true
		}
		if len(keys) != 5 {
			t.Errorf("got %d distinct keys, want 5: %v", len(keys), keys)
		}
	})
}
