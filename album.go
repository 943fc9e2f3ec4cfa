// album.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	albumAPIBase   = "https://mp.weixin.qq.com/mp/appmsgalbum"
	albumPageSize  = 10
	checkpointFile = ".checkpoint.json"
)

// throttleCooldown is how long a run waits after a frequency-control
// response before retrying the same listing page.
var throttleCooldown = 30 * time.Second

// IsAlbumURL reports whether the URL points at a WeChat album listing
// rather than a single article.
func IsAlbumURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Host != "mp.weixin.qq.com" && u.Host != "weixin.qq.com" {
		return false
	}
	return strings.Contains(u.Path, "/mp/appmsgalbum")
}

// ParseAlbumURL extracts the account and album identifiers from an album
// URL.
func ParseAlbumURL(rawURL string) (*AlbumInfo, error) {
	if !IsAlbumURL(rawURL) {
		return nil, fmt.Errorf("not an album URL: %s", rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing album URL: %w", err)
	}
	q := u.Query()
	biz := q.Get("__biz")
	albumID := q.Get("album_id")
	if biz == "" || albumID == "" {
		return nil, fmt.Errorf("album URL missing __biz or album_id: %s", rawURL)
	}
	return &AlbumInfo{Biz: biz, AlbumID: albumID}, nil
}

// ListingPage is one batch from the album listing endpoint.
type ListingPage struct {
	AlbumName    string
	ArticleCount int
	Items        []ArticleInfo
	ContinueFlag bool
}

// ListingFetcher fetches one page of an album listing. Implementations
// must return a ThrottleError (not a generic error) when the endpoint
// signals frequency control, so callers can cool down and retry.
type ListingFetcher interface {
	FetchListing(biz, albumID, beginMsgID string) (*ListingPage, error)
}

// flexInt64 tolerates the listing API returning numeric fields as either
// JSON numbers or strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt64(n)
	return nil
}

type albumAPIResponse struct {
	BaseResp struct {
		Ret    flexInt64 `json:"ret"`
		ErrMsg string    `json:"errmsg"`
	} `json:"base_resp"`
	GetalbumResp struct {
		AlbumInfo struct {
			AlbumName    string    `json:"album_name"`
			ArticleCount flexInt64 `json:"article_count"`
		} `json:"album_info"`
		ArticleList []struct {
			Title      string    `json:"title"`
			URL        string    `json:"url"`
			MsgID      flexInt64 `json:"msgid"`
			CreateTime flexInt64 `json:"create_time"`
		} `json:"article_list"`
		ContinueFlag flexInt64 `json:"continue_flag"`
	} `json:"getalbum_resp"`
}

// albumAPIClient talks to the real listing endpoint.
type albumAPIClient struct {
	client *http.Client
}

func newAlbumAPIClient(settings *Settings) *albumAPIClient {
	return &albumAPIClient{
		client: &http.Client{Timeout: time.Duration(settings.Fetch.TimeoutSeconds) * time.Second},
	}
}

func (c *albumAPIClient) FetchListing(biz, albumID, beginMsgID string) (*ListingPage, error) {
	params := url.Values{}
	params.Set("action", "getalbum")
	params.Set("__biz", biz)
	params.Set("album_id", albumID)
	params.Set("count", strconv.Itoa(albumPageSize))
	// is_reverse=1 asks for oldest-first ordering.
	params.Set("is_reverse", "1")
	params.Set("f", "json")
	if beginMsgID != "" {
		params.Set("begin_msgid", beginMsgID)
	}

	req, err := http.NewRequest(http.MethodGet, albumAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating listing request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Referer", fmt.Sprintf("%s?__biz=%s&album_id=%s", albumAPIBase, biz, albumID))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: albumAPIBase}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading listing response: %w", err)
	}

	var parsed albumAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding listing response: %w", err)
	}
	if msg := parsed.BaseResp.ErrMsg; isThrottleMessage(msg) || isThrottleMessage(string(body)) {
		return nil, &ThrottleError{Detail: msg}
	}
	if parsed.BaseResp.Ret != 0 {
		return nil, fmt.Errorf("listing API error %d: %s", parsed.BaseResp.Ret, parsed.BaseResp.ErrMsg)
	}

	page := &ListingPage{
		AlbumName:    parsed.GetalbumResp.AlbumInfo.AlbumName,
		ArticleCount: int(parsed.GetalbumResp.AlbumInfo.ArticleCount),
		ContinueFlag: parsed.GetalbumResp.ContinueFlag != 0,
	}
	for _, item := range parsed.GetalbumResp.ArticleList {
		page.Items = append(page.Items, ArticleInfo{
			Title:      item.Title,
			URL:        item.URL,
			MsgID:      strconv.FormatInt(int64(item.MsgID), 10),
			CreateTime: int64(item.CreateTime),
		})
	}
	return page, nil
}

func isThrottleMessage(s string) bool {
	return strings.Contains(strings.ToLower(s), "freq control") || strings.Contains(s, "频繁")
}

var (
	albumNameRe  = regexp.MustCompile(`class="album__author-name"[^>]*>([^<]+)<`)
	albumTitleRe = regexp.MustCompile(`<title>([^<]+)</title>`)
)

// fetchAlbumNameFromPage recovers the album name from the listing page
// HTML. The API omits the name often enough that this fallback matters.
func fetchAlbumNameFromPage(fetcher *ContentFetcher, biz, albumID string) string {
	pageURL := fmt.Sprintf("%s?__biz=%s&album_id=%s", albumAPIBase, biz, albumID)
	html, err := fetcher.FetchPage(pageURL)
	if err != nil {
		return ""
	}
	if m := albumNameRe.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := albumTitleRe.FindStringSubmatch(html); m != nil {
		title := strings.TrimSpace(m[1])
		for _, suffix := range []string{" - 微信公众号", " - 合集"} {
			title = strings.TrimSuffix(title, suffix)
		}
		return title
	}
	return ""
}

// CheckpointEntry records the outcome of one album item so an
// interrupted run can resume past it.
type CheckpointEntry struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	OutputDir string `json:"output_dir"`
}

// Checkpoint maps normalized article URLs to completion records. It is
// flushed to disk after every item so at most one item of work is lost
// on interruption.
type Checkpoint map[string]CheckpointEntry

func loadCheckpoint(path string) Checkpoint {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		log.Printf("Warning: corrupt checkpoint at %s, starting fresh: %v", path, err)
		return Checkpoint{}
	}
	return cp
}

func (cp Checkpoint) save(path string) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// AlbumDownloader orchestrates a full album run: paginate the listing,
// archive each article through the single-article pipeline, checkpoint
// after every item and write the index document.
type AlbumDownloader struct {
	processor *ArticleProcessor
	fetcher   *ContentFetcher
	listing   ListingFetcher
	settings  *Settings
}

func NewAlbumDownloader(settings *Settings) *AlbumDownloader {
	return &AlbumDownloader{
		processor: NewArticleProcessor(settings),
		fetcher:   NewContentFetcher(settings),
		listing:   newAlbumAPIClient(settings),
		settings:  settings,
	}
}

// fetchAlbumArticles walks the paginated listing until the endpoint
// reports no continuation or the configured cap is reached. A throttling
// response waits out the cooldown and retries the same page. Articles
// are returned in ascending publication order.
func (d *AlbumDownloader) fetchAlbumArticles(album *AlbumInfo) ([]ArticleInfo, error) {
	var articles []ArticleInfo
	beginMsgID := ""
	firstPage := true
	maxArticles := d.settings.Album.MaxArticles
	delay := time.Duration(d.settings.Album.DelaySeconds * float64(time.Second))

	for {
		page, err := d.listing.FetchListing(album.Biz, album.AlbumID, beginMsgID)
		if err != nil {
			if IsThrottled(err) {
				log.Printf("Rate limited, waiting %s...", throttleCooldown)
				time.Sleep(throttleCooldown)
				continue
			}
			return nil, fmt.Errorf("fetching album listing: %w", err)
		}

		if firstPage {
			firstPage = false
			album.Name = page.AlbumName
			album.ArticleCount = page.ArticleCount
			if strings.TrimSpace(album.Name) == "" {
				album.Name = fetchAlbumNameFromPage(d.fetcher, album.Biz, album.AlbumID)
			}
		}

		debugLog("  listing page: %d items, continue=%v", len(page.Items), page.ContinueFlag)
		if len(page.Items) == 0 {
			break
		}
		for _, item := range page.Items {
			articles = append(articles, item)
			if maxArticles > 0 && len(articles) >= maxArticles {
				sortByCreateTime(articles)
				return articles, nil
			}
		}
		if !page.ContinueFlag {
			break
		}
		beginMsgID = articles[len(articles)-1].MsgID
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	sortByCreateTime(articles)
	return articles, nil
}

func sortByCreateTime(articles []ArticleInfo) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreateTime < articles[j].CreateTime
	})
}

// Download archives every article in the album. Item failures are
// recorded and never abort the run; only a listing-fetch failure is
// fatal.
func (d *AlbumDownloader) Download(albumURL string, opts ProcessOptions) (*AlbumResult, error) {
	album, err := ParseAlbumURL(albumURL)
	if err != nil {
		return nil, err
	}

	log.Printf("Fetching album info...")
	articles, err := d.fetchAlbumArticles(album)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("no articles found in album")
	}
	log.Printf("Album: %s", album.Name)
	log.Printf("Found %d articles", len(articles))

	albumName := strings.TrimSpace(album.Name)
	if albumName == "" {
		albumName = "album-" + truncate(album.AlbumID, 8)
	}
	outputDir := filepath.Join(
		d.settings.OutputSettings.BaseDir,
		d.settings.folder(opts.FolderOverride),
		SanitizeTitle(albumName, 60),
	)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating album directory: %w", err)
	}

	checkpointPath := filepath.Join(outputDir, checkpointFile)
	checkpoint := loadCheckpoint(checkpointPath)
	delay := time.Duration(d.settings.Album.DelaySeconds * float64(time.Second))

	result := &AlbumResult{Album: *album, OutputDir: outputDir}
	for i, article := range articles {
		dirname := fmt.Sprintf("%03d-%s", i+1, SanitizeTitle(article.Title, 60))
		articleDir := filepath.Join(outputDir, dirname)
		key := CheckpointKey(article.URL)

		if entry, ok := checkpoint[key]; ok && entry.Status == string(StatusSuccess) && !opts.Force {
			log.Printf("[%d/%d] Skipping (already downloaded): %s", i+1, len(articles), article.Title)
			result.Results = append(result.Results, DownloadResult{
				Article: article, Success: true, OutputDir: entry.OutputDir,
			})
			result.Succeeded++
			continue
		}

		log.Printf("[%d/%d] Downloading: %s", i+1, len(articles), article.Title)
		itemOpts := opts
		itemOpts.OutputDir = articleDir
		processed := d.processor.Process(article.URL, itemOpts)

		dr := DownloadResult{Article: article, OutputDir: articleDir}
		switch processed.Status {
		case StatusSuccess, StatusSkipped:
			dr.Success = true
			result.Succeeded++
		default:
			dr.Err = processed.Error.Error()
			result.Failed++
			log.Printf("  ✗ %s", dr.Err)
		}
		result.Results = append(result.Results, dr)

		checkpoint[key] = CheckpointEntry{
			Status:    checkpointStatus(dr.Success),
			Timestamp: nowISO(),
			OutputDir: articleDir,
		}
		if err := checkpoint.save(checkpointPath); err != nil {
			log.Printf("Warning: %v", err)
		}

		if i < len(articles)-1 && delay > 0 {
			time.Sleep(delay)
		}
	}

	if d.settings.Album.GenerateIndex {
		indexPath, err := d.generateIndexFile(album, albumURL, result.Results, outputDir)
		if err != nil {
			log.Printf("Warning: %v", err)
		} else {
			result.IndexFile = indexPath
		}
	}

	log.Printf("Album download complete: %d/%d succeeded", result.Succeeded, len(result.Results))
	return result, nil
}

func checkpointStatus(success bool) string {
	if success {
		return string(StatusSuccess)
	}
	return string(StatusError)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// generateIndexFile writes the album index (_index.md): frontmatter, a
// numbered list of successful articles and a checklist of failures.
func (d *AlbumDownloader) generateIndexFile(album *AlbumInfo, albumURL string, results []DownloadResult, outputDir string) (string, error) {
	indexPath := filepath.Join(outputDir, d.settings.Album.IndexFilename)

	albumTitle := strings.TrimSpace(album.Name)
	if albumTitle == "" {
		albumTitle = filepath.Base(outputDir)
	}

	var lines []string
	lines = append(lines,
		"---",
		"title: "+albumTitle,
		"created: "+time.Now().Format("2006-01-02"),
		"type: album",
		fmt.Sprintf("article_count: %d", len(results)),
		fmt.Sprintf("source: %q", albumURL),
		"tags: [微信文章, 合集]",
		"---",
		"",
		"# "+albumTitle,
		"",
		fmt.Sprintf("共 %d 篇文章", len(results)),
		"",
	)

	var successLines, failedLines []string
	for i, r := range results {
		if r.Success {
			dirname := fmt.Sprintf("%03d-%s", i+1, SanitizeTitle(r.Article.Title, 60))
			successLines = append(successLines,
				fmt.Sprintf("%d. [%s](./%s/article.md)", len(successLines)+1, r.Article.Title, dirname))
			continue
		}
		errMsg := r.Err
		if errMsg == "" {
			errMsg = "未知错误"
		}
		failedLines = append(failedLines, fmt.Sprintf("- [ ] %s - %s", r.Article.Title, errMsg))
	}
	if len(successLines) > 0 {
		lines = append(lines, "## 文章列表", "")
		lines = append(lines, successLines...)
		lines = append(lines, "")
	}
	if len(failedLines) > 0 {
		lines = append(lines, "## 下载失败", "")
		lines = append(lines, failedLines...)
		lines = append(lines, "")
	}

	if err := os.WriteFile(indexPath, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", fmt.Errorf("writing index file: %w", err)
	}
	return indexPath, nil
}
