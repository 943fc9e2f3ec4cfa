// processor.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// loginWallMarkers appear in the HTML WeChat serves instead of article
// content when it decides the client must authenticate.
var loginWallMarkers = []string{
	"环境异常",
	"请在微信客户端打开",
}

// ProcessOptions control a single-article run.
type ProcessOptions struct {
	Force          bool
	FolderOverride string
	// OutputDir, when set, places the article directly in this directory
	// instead of the slug-derived path. Album runs use it for per-item
	// numbered directories.
	OutputDir string
	// SlugOverride replaces the title-derived slug as the directory name.
	SlugOverride string
	ExtraTags    []string
}

// ArticleProcessor runs the full pipeline for one article URL: fetch,
// locate content, download images, render Markdown, assemble the
// document and persist it alongside its metadata and run log.
type ArticleProcessor struct {
	fetcher     *ContentFetcher
	images      *ImagePipeline
	frontmatter *FrontmatterGenerator
	settings    *Settings
}

func NewArticleProcessor(settings *Settings) *ArticleProcessor {
	fetcher := NewContentFetcher(settings)
	return &ArticleProcessor{
		fetcher:     fetcher,
		images:      NewImagePipeline(fetcher),
		frontmatter: NewFrontmatterGenerator(settings),
		settings:    settings,
	}
}

// Process archives one article. Idempotency is decided by the content
// hash: an unchanged article is skipped (metadata still updated) unless
// opts.Force is set. The returned result carries the terminal status;
// the error is also embedded in it for error status.
func (p *ArticleProcessor) Process(articleURL string, opts ProcessOptions) ProcessingResult {
	start := time.Now()
	result := ProcessingResult{URL: articleURL, Status: StatusError}

	log.Printf("Fetching %s", articleURL)
	pageHTML, err := p.fetcher.FetchPage(articleURL)
	if err != nil {
		result.Error = fmt.Errorf("fetching page: %w", err)
		return result
	}
	if marker := loginWallMarker(pageHTML); marker != "" {
		result.Error = fmt.Errorf("page requires WeChat login (%s)", marker)
		return result
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		result.Error = fmt.Errorf("parsing page: %w", err)
		return result
	}
	title := SanitizeTitle(ExtractTitle(doc), 100)
	author := ExtractAuthor(doc)
	published := parsePublishTime(ExtractPublishTime(doc))
	result.Title = title

	tree, err := LocateContent(pageHTML)
	if err != nil {
		result.Error = fmt.Errorf("locating content: %w", err)
		return result
	}

	slug := opts.SlugOverride
	if slug == "" {
		slugDate := published
		if slugDate.IsZero() {
			slugDate = time.Now()
		}
		slug = BuildSlug(p.settings, title, articleURL, slugDate)
	}
	debugLog("  slug=%s author=%s published=%s", slug, author, ExtractPublishTime(doc))

	assetDir := opts.OutputDir
	if assetDir == "" {
		assetDir = filepath.Join(p.settings.OutputSettings.BaseDir, p.settings.folder(opts.FolderOverride), slug)
	}
	if err := os.MkdirAll(assetDir, 0755); err != nil {
		result.Error = fmt.Errorf("creating output directory: %w", err)
		return result
	}
	result.AssetDir = assetDir

	imagesDir := filepath.Join(assetDir, p.settings.OutputSettings.ImagesDirname)
	manifest := p.images.Process(tree, articleURL, imagesDir, "./"+p.settings.OutputSettings.ImagesDirname+"/")
	logImageSummary(manifest)

	body := RenderMarkdown(tree)
	hash := CalculateContentHash(body)

	metaPath := filepath.Join(assetDir, "meta.json")
	existing := LoadMetadata(metaPath)
	decision := CheckIdempotency(existing, hash, opts.Force)

	now := nowISO()
	fresh := &ContentMetadata{
		AssetID:       AssetID(articleURL),
		URL:           articleURL,
		Title:         title,
		Slug:          slug,
		Author:        author,
		Hash:          hash,
		HashAlgorithm: "sha256",
		IngestedAt:    now,
		LastRunAt:     now,
		RunCount:      1,
		Tags:          p.frontmatter.buildTags(opts.ExtraTags),
	}
	if !published.IsZero() {
		fresh.PublishedAt = published.Format(time.RFC3339)
	}

	if !decision.ShouldGenerate {
		log.Printf("  → content unchanged, skipping %s", slug)
		merged := MergeMetadata(existing, fresh)
		merged.LastRunStatus = string(StatusSkipped)
		merged.LastRunReason = decision.Reason
		if err := SaveMetadata(metaPath, merged); err != nil {
			result.Error = fmt.Errorf("saving metadata: %w", err)
			return result
		}
		p.appendRunLog(assetDir, fresh.AssetID, string(StatusSkipped), decision.Reason, hash, start)
		removeDirIfEmpty(imagesDir)
		result.Status = StatusSkipped
		return result
	}

	document := BuildDocument(title, body, manifest)
	created := published
	if created.IsZero() {
		created = time.Now()
	}
	if front := p.frontmatter.Generate(title, author, articleURL, created, opts.ExtraTags); front != "" {
		document = front + document
	}

	articlePath := filepath.Join(assetDir, p.settings.OutputSettings.ArticleFilename)
	if err := os.WriteFile(articlePath, []byte(document), 0644); err != nil {
		result.Error = fmt.Errorf("writing article: %w", err)
		return result
	}

	merged := MergeMetadata(existing, fresh)
	merged.LastRunStatus = string(StatusSuccess)
	merged.LastRunReason = decision.Reason
	if err := SaveMetadata(metaPath, merged); err != nil {
		result.Error = fmt.Errorf("saving metadata: %w", err)
		return result
	}
	p.appendRunLog(assetDir, fresh.AssetID, string(StatusSuccess), decision.Reason, hash, start)
	removeDirIfEmpty(imagesDir)

	log.Printf("✓ Saved %s", articlePath)
	result.Status = StatusSuccess
	return result
}

func (p *ArticleProcessor) appendRunLog(assetDir, assetID, status, reason, hash string, start time.Time) {
	entry := RunLogEntry{
		Timestamp:  time.Now(),
		Action:     "archive",
		AssetID:    assetID,
		Status:     status,
		Reason:     reason,
		Hash:       hash,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err := AppendRunLog(assetDir, entry); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func loginWallMarker(pageHTML string) string {
	for _, marker := range loginWallMarkers {
		if strings.Contains(pageHTML, marker) {
			return marker
		}
	}
	return ""
}

// publishTimeLayouts cover the formats WeChat renders into the
// publish_time element.
var publishTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"2006年01月02日 15:04",
}

func parsePublishTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range publishTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func logImageSummary(manifest []ImageAsset) {
	if len(manifest) == 0 {
		return
	}
	failed := 0
	for _, asset := range manifest {
		if !asset.OK {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("  → %d images downloaded, %d failed", len(manifest)-failed, failed)
		return
	}
	log.Printf("  → %d images downloaded", len(manifest))
}

// removeDirIfEmpty drops the images directory when no image survived, so
// an article without local assets has a clean layout.
func removeDirIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}
