// types.go
package main

import "time"

// ImageAsset records the download outcome of one embedded image.
// Indices are 1-based and follow DOM encounter order.
type ImageAsset struct {
	Index       int
	OriginalURL string
	Filename    string
	RelPath     string
	OK          bool
	Err         string
}

// RenderedDocument is the final product of a single-article pipeline run.
type RenderedDocument struct {
	Title    string
	Body     string
	Manifest []ImageAsset
}

// ProcessingStatus represents the outcome status of processing an article
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusSkipped ProcessingStatus = "skipped"
	StatusError   ProcessingStatus = "error"
)

// ProcessingResult tracks the outcome of processing each URL
type ProcessingResult struct {
	URL      string
	Status   ProcessingStatus
	Title    string
	AssetDir string
	Error    error
}

// ArticleInfo describes one article in an album listing.
type ArticleInfo struct {
	Title      string
	URL        string
	MsgID      string
	CreateTime int64
}

// DownloadResult is the per-item outcome of an album run.
type DownloadResult struct {
	Article   ArticleInfo
	Success   bool
	OutputDir string
	Err       string
}

// AlbumInfo identifies a WeChat album and its reported size.
type AlbumInfo struct {
	Biz          string
	AlbumID      string
	Name         string
	ArticleCount int
}

// AlbumResult summarizes an album run. Partial success is a normal
// terminal state, not an error.
type AlbumResult struct {
	Album     AlbumInfo
	OutputDir string
	IndexFile string
	Results   []DownloadResult
	Succeeded int
	Failed    int
}

// RunLogEntry is one line of the append-only run.jsonl audit log.
type RunLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	AssetID    string    `json:"asset_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	Hash       string    `json:"hash_content"`
	DurationMS int64     `json:"duration_ms"`
}
