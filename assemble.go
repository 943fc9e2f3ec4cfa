// assemble.go
package main

import (
	"fmt"
	"regexp"
	"strings"
)

// Plain-text URL patterns. Only a small allow-list of code-hosting domains
// is recognized; the patterns deliberately avoid matching inside text that
// is already a Markdown link.
var (
	labeledURLRe = regexp.MustCompile(
		`((?:[\p{L}\p{N}_\s]*?)地址)\s*[→：:]\s*((?:https?://)?(?:github\.com|gitee\.com|gitlab\.com|bitbucket\.org)[^\s\)）\]<]*)`)
	bareURLRe = regexp.MustCompile(
		`(?m)(^|[>\s])((?:github\.com|gitee\.com|gitlab\.com|bitbucket\.org)/[^\s\)）\]<]+)`)
)

// FixPlainTextURLs rewrites recognized plain-text URL mentions into proper
// Markdown links, inferring an https:// scheme when absent.
//
// Patterns handled:
//   - "地址：github.com/xxx" and "GitHub 地址→github.com/xxx"
//   - bare "github.com/xxx" at line start or after whitespace
func FixPlainTextURLs(text string) string {
	text = labeledURLRe.ReplaceAllStringFunc(text, func(match string) string {
		m := labeledURLRe.FindStringSubmatch(match)
		label := strings.TrimSpace(m[1])
		url := strings.TrimSpace(m[2])
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			url = "https://" + url
		}
		return fmt.Sprintf("[%s](%s)", label, url)
	})

	text = bareURLRe.ReplaceAllStringFunc(text, func(match string) string {
		m := bareURLRe.FindStringSubmatch(match)
		return fmt.Sprintf("%s[%s](https://%s)", m[1], m[2], m[2])
	})

	return text
}

// BuildDocument assembles the final document text: linkified body under a
// title heading, with a failure list section when any image download
// failed.
func BuildDocument(title, body string, manifest []ImageAsset) string {
	body = FixPlainTextURLs(body)

	var parts []string
	parts = append(parts, "# "+title, "")

	var failures []ImageAsset
	for _, asset := range manifest {
		if !asset.OK {
			failures = append(failures, asset)
		}
	}
	if len(failures) > 0 {
		parts = append(parts, "## 图片下载失败列表")
		for _, it := range failures {
			detail := it.Err
			if detail == "" {
				detail = "download failed"
			}
			ref := it.OriginalURL
			if ref == "" {
				ref = "(missing url)"
			}
			parts = append(parts, fmt.Sprintf("- %03d: %s (%s)", it.Index, ref, detail))
		}
		parts = append(parts, "")
	}

	parts = append(parts, strings.TrimSpace(body), "")
	return strings.TrimRight(strings.Join(parts, "\n"), "\n") + "\n"
}
