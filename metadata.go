// metadata.go
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const metaVersion = "1.0"

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// ContentMetadata is the persisted per-article record (meta.json). The
// content hash is the sole idempotency key; category, tags and properties
// are user-owned and survive regeneration.
type ContentMetadata struct {
	AssetID       string            `json:"asset_id"`
	URL           string            `json:"url"`
	Title         string            `json:"title"`
	Slug          string            `json:"slug"`
	Author        string            `json:"author,omitempty"`
	Hash          string            `json:"hash_content"`
	HashAlgorithm string            `json:"hash_algorithm"`
	IngestedAt    string            `json:"ingested_at"`
	PublishedAt   string            `json:"published_at,omitempty"`
	LastRunAt     string            `json:"last_run_at"`
	LastRunStatus string            `json:"last_run_status"`
	LastRunReason string            `json:"last_run_reason"`
	RunCount      int               `json:"run_count"`
	Category      string            `json:"category"`
	Tags          []string          `json:"tags"`
	Properties    map[string]string `json:"properties"`
	MetaVersion   string            `json:"meta_version"`
}

// CalculateContentHash computes the idempotency hash: SHA-256 over
// whitespace-normalized body text. Insignificant whitespace differences
// between fetches must not look like content changes.
func CalculateContentHash(body string) string {
	normalized := strings.TrimSpace(whitespaceRunRe.ReplaceAllString(body, " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// IdempotencyDecision records whether downstream generation should run and
// why.
type IdempotencyDecision struct {
	ShouldGenerate bool
	Reason         string
	OldHash        string
	NewHash        string
}

// LoadMetadata reads the persisted record. A missing or corrupt file is
// treated as absent (first-run semantics); corruption is never fatal.
func LoadMetadata(metaPath string) *ContentMetadata {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil
	}
	var meta ContentMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Printf("Warning: corrupt metadata at %s, treating as first run: %v", metaPath, err)
		return nil
	}
	return &meta
}

// CheckIdempotency decides whether regeneration is needed for the new
// content hash, given the previously persisted record.
func CheckIdempotency(existing *ContentMetadata, newHash string, force bool) IdempotencyDecision {
	if existing == nil {
		return IdempotencyDecision{ShouldGenerate: true, Reason: "first_run", NewHash: newHash}
	}
	if force {
		return IdempotencyDecision{ShouldGenerate: true, Reason: "forced", OldHash: existing.Hash, NewHash: newHash}
	}
	if existing.Hash == newHash {
		return IdempotencyDecision{ShouldGenerate: false, Reason: "content_unchanged", OldHash: existing.Hash, NewHash: newHash}
	}
	return IdempotencyDecision{ShouldGenerate: true, Reason: "content_changed", OldHash: existing.Hash, NewHash: newHash}
}

// MergeMetadata merges a fresh run's fields into the existing record,
// preserving fields this pipeline stage does not own. Operates on plain
// records and returns a new one; neither input is mutated.
func MergeMetadata(existing, fresh *ContentMetadata) *ContentMetadata {
	merged := *fresh
	merged.MetaVersion = metaVersion

	if existing == nil {
		merged.RunCount = 1
		if merged.Category == "" {
			merged.Category = "article"
		}
		return &merged
	}

	merged.RunCount = existing.RunCount + 1
	merged.IngestedAt = existing.IngestedAt
	if existing.PublishedAt != "" {
		merged.PublishedAt = existing.PublishedAt
	}
	// User-owned fields: never overwritten once set.
	if existing.Category != "" {
		merged.Category = existing.Category
	} else if merged.Category == "" {
		merged.Category = "article"
	}
	if len(existing.Tags) > 0 {
		merged.Tags = existing.Tags
	}
	if len(existing.Properties) > 0 {
		merged.Properties = existing.Properties
	}
	return &merged
}

// SaveMetadata writes the record as indented JSON.
func SaveMetadata(metaPath string, meta *ContentMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(metaPath, append(data, '\n'), 0644)
}

// AppendRunLog appends one entry to the per-article run.jsonl audit log.
// The log is append-only; it is never rewritten.
func AppendRunLog(assetDir string, entry RunLogEntry) error {
	logPath := filepath.Join(assetDir, "run.jsonl")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling run log entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing run log entry: %w", err)
	}
	return nil
}

// nowISO is the timestamp format used across metadata and the run log.
func nowISO() string {
	return time.Now().Format(time.RFC3339)
}
