// paths.go
package main

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	nethtml "golang.org/x/net/html"
)

var illegalFSChars = regexp.MustCompile(`[\\/:*?"<>|]+`)

// SanitizeTitle cleans an article title for filesystem use.
func SanitizeTitle(title string, maxLen int) string {
	t := nethtml.UnescapeString(title)
	t = illegalFSChars.ReplaceAllString(t, "-")
	t = collapseWhitespace(t)
	t = strings.Trim(t, ".")
	if t == "" {
		t = "wechat_article"
	}
	if runes := []rune(t); len(runes) > maxLen {
		t = strings.TrimRight(string(runes[:maxLen]), " ")
	}
	return t
}

// NormalizeURL canonicalizes a source URL for identity purposes: query
// parameters (tracking noise) are dropped, keeping scheme, host and path.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
}

// AssetID derives the stable identifier for a source URL: SHA-1 of the
// normalized URL.
func AssetID(rawURL string) string {
	sum := sha1.Sum([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// CheckpointKey normalizes a URL for checkpoint deduplication: host+path,
// lowercased, trailing slash stripped, query dropped. The same logical
// article maps to one key regardless of incidental URL variation.
func CheckpointKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.ToLower(strings.TrimRight(u.Host+u.Path, "/"))
}

// BuildSlug generates the asset directory slug according to the configured
// format.
func BuildSlug(settings *Settings, title, rawURL string, date time.Time) string {
	maxLen := settings.Slug.MaxLength
	sanitized := SanitizeTitle(title, maxLen)

	switch settings.Slug.Format {
	case "date-title":
		prefix := date.Format("20060102")
		titleMax := maxLen - len(prefix) - 1
		return prefix + "-" + SanitizeTitle(title, titleMax)
	case "date-title-hash":
		prefix := date.Format("20060102")
		sum := sha256.Sum256([]byte(rawURL))
		short := hex.EncodeToString(sum[:])[:6]
		titleMax := maxLen - len(prefix) - len(short) - 2
		if titleMax < 10 {
			titleMax = 10
		}
		return prefix + "-" + SanitizeTitle(title, titleMax) + "-" + short
	default: // "title"
		return sanitized
	}
}
