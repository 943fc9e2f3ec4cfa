// fetcher.go
package main

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/123.0.0.0 Safari/537.36"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// ContentFetcher handles fetching raw page HTML and image binaries. WeChat
// serves different markup to unknown clients, so every request carries a
// desktop browser User-Agent and Chinese Accept-Language.
type ContentFetcher struct {
	client  *http.Client
	retries int
}

// NewContentFetcher creates a fetcher bounded by the configured timeout and
// retry count.
func NewContentFetcher(settings *Settings) *ContentFetcher {
	return &ContentFetcher{
		client: &http.Client{
			Timeout: time.Duration(settings.Fetch.TimeoutSeconds) * time.Second,
		},
		retries: settings.Fetch.Retries,
	}
}

// FetchPage fetches the article page HTML.
func (f *ContentFetcher) FetchPage(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty HTML fetched from %s", url)
	}

	return string(body), nil
}

// FetchImage downloads an image binary, retrying with linear backoff.
// The article URL is sent as Referer; WeChat's CDN rejects bare requests.
// Returns the bytes and the response Content-Type.
func (f *ContentFetcher) FetchImage(url, referer string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 600 * time.Millisecond)
		}

		data, contentType, err := f.fetchImageOnce(url, referer)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}

func (f *ContentFetcher) fetchImageOnce(url, referer string) ([]byte, string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading image body: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
