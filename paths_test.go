package main

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		max   int
		want  string
	}{
		{"plain", "Hello World", 80, "Hello World"},
		{"illegal chars", `a/b\c:d*e?f"g<h>i|j`, 80, "a-b-c-d-e-f-g-h-i-j"},
		{"html entities", "Tom &amp; Jerry", 80, "Tom & Jerry"},
		{"whitespace collapse", "  a \t b \n c  ", 80, "a b c"},
		{"trailing dots", "ending...", 80, "ending"},
		{"empty fallback", "", 80, "wechat_article"},
		{"only illegal", "///", 80, "-"},
		{"chinese", "深入理解 Go 调度器", 80, "深入理解 Go 调度器"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.title, tt.max); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitleTruncatesRunes(t *testing.T) {
	title := strings.Repeat("长", 100)
	got := SanitizeTitle(title, 10)
	if runes := []rune(got); len(runes) != 10 {
		t.Errorf("SanitizeTitle() returned %d runes, want 10", len(runes))
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://mp.weixin.qq.com/s/abc?chksm=123&mpshare=1", "https://mp.weixin.qq.com/s/abc"},
		{"https://mp.weixin.qq.com/s/abc", "https://mp.weixin.qq.com/s/abc"},
		{"  https://example.com/p#frag  ", "https://example.com/p"},
	}

	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAssetIDStableAcrossTracking(t *testing.T) {
	a := AssetID("https://mp.weixin.qq.com/s/abc?chksm=123")
	b := AssetID("https://mp.weixin.qq.com/s/abc?from=timeline&isappinstalled=0")

	if a != b {
		t.Errorf("AssetID() differs across tracking params: %s vs %s", a, b)
	}
	if len(a) != 40 {
		t.Errorf("AssetID() length = %d, want 40 hex chars", len(a))
	}
}

func TestCheckpointKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://MP.Weixin.QQ.com/s/ABC/", "mp.weixin.qq.com/s/abc"},
		{"https://mp.weixin.qq.com/s/abc?chksm=x", "mp.weixin.qq.com/s/abc"},
		{"https://mp.weixin.qq.com/s/abc", "mp.weixin.qq.com/s/abc"},
	}

	for _, tt := range tests {
		if got := CheckpointKey(tt.in); got != tt.want {
			t.Errorf("CheckpointKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSlugFormats(t *testing.T) {
	date := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	url := "https://mp.weixin.qq.com/s/abc"

	settings := defaultSettings()

	settings.Slug.Format = "title"
	if got := BuildSlug(settings, "My Article", url, date); got != "My Article" {
		t.Errorf("BuildSlug(title) = %q, want %q", got, "My Article")
	}

	settings.Slug.Format = "date-title"
	if got := BuildSlug(settings, "My Article", url, date); got != "20240315-My Article" {
		t.Errorf("BuildSlug(date-title) = %q, want %q", got, "20240315-My Article")
	}

	settings.Slug.Format = "date-title-hash"
	got := BuildSlug(settings, "My Article", url, date)
	if !strings.HasPrefix(got, "20240315-My Article-") {
		t.Errorf("BuildSlug(date-title-hash) = %q, want 20240315-My Article-<hash> prefix", got)
	}
	suffix := got[strings.LastIndex(got, "-")+1:]
	if len(suffix) != 6 {
		t.Errorf("BuildSlug(date-title-hash) hash suffix = %q, want 6 hex chars", suffix)
	}
}

func TestBuildSlugDeterministic(t *testing.T) {
	settings := defaultSettings()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	url := "https://mp.weixin.qq.com/s/abc"

	a := BuildSlug(settings, "Title", url, date)
	b := BuildSlug(settings, "Title", url, date)
	if a != b {
		t.Errorf("BuildSlug() not deterministic: %q vs %q", a, b)
	}
}

func TestBuildSlugRespectsMaxLength(t *testing.T) {
	settings := defaultSettings()
	settings.Slug.Format = "date-title-hash"
	settings.Slug.MaxLength = 40

	long := strings.Repeat("很长的标题", 20)
	got := BuildSlug(settings, long, "https://example.com/x", time.Now())
	if runes := []rune(got); len(runes) > 40 {
		t.Errorf("BuildSlug() length = %d runes, want <= 40", len(runes))
	}
}
