// frontmatter.go
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FrontmatterGenerator emits the optional YAML header on article.md.
// Only the allow-listed fields {title, author, created, source, tags} are
// ever written.
type FrontmatterGenerator struct {
	settings *Settings
}

// NewFrontmatterGenerator creates a generator bound to the given settings.
func NewFrontmatterGenerator(settings *Settings) *FrontmatterGenerator {
	return &FrontmatterGenerator{settings: settings}
}

// Generate returns the frontmatter block (including --- delimiters and a
// trailing blank line), or "" when frontmatter is disabled or no fields
// apply.
func (g *FrontmatterGenerator) Generate(title, author, sourceURL string, created time.Time, extraTags []string) string {
	if !g.settings.Frontmatter.Enabled {
		return ""
	}

	include := make(map[string]bool, len(g.settings.Frontmatter.IncludeFields))
	for _, f := range g.settings.Frontmatter.IncludeFields {
		include[f] = true
	}

	var lines []string
	if include["title"] {
		lines = append(lines, "title: "+escapeYAMLString(title))
	}
	if include["author"] && author != "" {
		lines = append(lines, "author: "+escapeYAMLString(author))
	}
	if include["created"] {
		lines = append(lines, "created: "+created.Format("2006-01-02"))
	}
	if include["source"] && sourceURL != "" {
		lines = append(lines, "source: "+escapeYAMLString(sourceURL))
	}
	if include["tags"] {
		if tags := g.buildTags(extraTags); len(tags) > 0 {
			escaped := make([]string, len(tags))
			for i, t := range tags {
				escaped[i] = escapeYAMLString(t)
			}
			lines = append(lines, "tags: ["+strings.Join(escaped, ", ")+"]")
		}
	}

	if len(lines) == 0 {
		return ""
	}

	return "---\n" + strings.Join(lines, "\n") + "\n---\n\n"
}

// buildTags merges default and extra tags, deduplicated, capped at the
// configured maximum.
func (g *FrontmatterGenerator) buildTags(extraTags []string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, t := range append(append([]string{}, g.settings.Tags.DefaultTags...), extraTags...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if max := g.settings.Tags.MaxCount; max > 0 && len(tags) > max {
		tags = tags[:max]
	}
	return tags
}

// escapeYAMLString quotes a value when it contains structural characters,
// looks like a boolean or number, or has leading/trailing whitespace.
func escapeYAMLString(s string) string {
	if s == "" {
		return `""`
	}

	needsQuotes := false
	if strings.ContainsAny(s, `:#[]{},&*!|>'"%@`+"`") {
		needsQuotes = true
	}
	if s != strings.TrimSpace(s) {
		needsQuotes = true
	}
	if strings.ContainsAny(s, "\n\r") {
		needsQuotes = true
	}
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "null", "on", "off":
		needsQuotes = true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		needsQuotes = true
	}

	if !needsQuotes {
		return s
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`"%s"`, escaped)
}
