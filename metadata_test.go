package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCalculateContentHashNormalizesWhitespace(t *testing.T) {
	a := CalculateContentHash("hello   world\n\nfoo")
	b := CalculateContentHash("  hello world foo  ")
	if a != b {
		t.Errorf("hashes differ across whitespace variants: %s vs %s", a, b)
	}

	c := CalculateContentHash("hello world bar")
	if a == c {
		t.Error("different content produced the same hash")
	}

	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestCheckIdempotency(t *testing.T) {
	existing := &ContentMetadata{Hash: "aaa"}

	tests := []struct {
		name         string
		existing     *ContentMetadata
		newHash      string
		force        bool
		wantGenerate bool
		wantReason   string
	}{
		{"first run", nil, "aaa", false, true, "first_run"},
		{"unchanged", existing, "aaa", false, false, "content_unchanged"},
		{"changed", existing, "bbb", false, true, "content_changed"},
		{"forced unchanged", existing, "aaa", true, true, "forced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CheckIdempotency(tt.existing, tt.newHash, tt.force)
			if d.ShouldGenerate != tt.wantGenerate {
				t.Errorf("ShouldGenerate = %v, want %v", d.ShouldGenerate, tt.wantGenerate)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestLoadMetadataMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	if meta := LoadMetadata(filepath.Join(dir, "nope.json")); meta != nil {
		t.Error("LoadMetadata() on missing file should return nil")
	}

	corrupt := filepath.Join(dir, "meta.json")
	os.WriteFile(corrupt, []byte("{not json"), 0644)
	if meta := LoadMetadata(corrupt); meta != nil {
		t.Error("LoadMetadata() on corrupt file should return nil")
	}
}

func TestSaveAndLoadMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	meta := &ContentMetadata{
		AssetID:       "abc",
		URL:           "https://x.com/s/1",
		Title:         "T",
		Hash:          "h1",
		HashAlgorithm: "sha256",
		RunCount:      2,
		Category:      "article",
		Tags:          []string{"wechat"},
		MetaVersion:   "1.0",
	}

	if err := SaveMetadata(path, meta); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}
	loaded := LoadMetadata(path)
	if loaded == nil {
		t.Fatal("LoadMetadata() returned nil")
	}
	if loaded.AssetID != "abc" || loaded.Hash != "h1" || loaded.RunCount != 2 {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestMergeMetadataFirstRun(t *testing.T) {
	fresh := &ContentMetadata{AssetID: "a", Hash: "h"}
	merged := MergeMetadata(nil, fresh)

	if merged.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", merged.RunCount)
	}
	if merged.Category != "article" {
		t.Errorf("Category = %q, want article default", merged.Category)
	}
	if merged.MetaVersion != "1.0" {
		t.Errorf("MetaVersion = %q, want 1.0", merged.MetaVersion)
	}
}

func TestMergeMetadataPreservesUserFields(t *testing.T) {
	existing := &ContentMetadata{
		Hash:        "old",
		IngestedAt:  "2024-01-01T00:00:00Z",
		PublishedAt: "2023-12-01T00:00:00Z",
		RunCount:    3,
		Category:    "tutorial",
		Tags:        []string{"custom", "tags"},
		Properties:  map[string]string{"note": "mine"},
	}
	fresh := &ContentMetadata{
		Hash:       "new",
		IngestedAt: "2024-06-01T00:00:00Z",
		Category:   "article",
		Tags:       []string{"wechat"},
	}

	merged := MergeMetadata(existing, fresh)

	if merged.RunCount != 4 {
		t.Errorf("RunCount = %d, want 4", merged.RunCount)
	}
	if merged.Hash != "new" {
		t.Errorf("Hash = %q, want new", merged.Hash)
	}
	if merged.IngestedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("IngestedAt = %q, want original preserved", merged.IngestedAt)
	}
	if merged.PublishedAt != "2023-12-01T00:00:00Z" {
		t.Errorf("PublishedAt = %q, want original preserved", merged.PublishedAt)
	}
	if merged.Category != "tutorial" {
		t.Errorf("Category = %q, want user value preserved", merged.Category)
	}
	if len(merged.Tags) != 2 || merged.Tags[0] != "custom" {
		t.Errorf("Tags = %v, want user tags preserved", merged.Tags)
	}
	if merged.Properties["note"] != "mine" {
		t.Errorf("Properties = %v, want user properties preserved", merged.Properties)
	}
}

func TestAppendRunLogAppends(t *testing.T) {
	dir := t.TempDir()

	for i, status := range []string{"success", "skipped"} {
		entry := RunLogEntry{
			Timestamp:  time.Now(),
			Action:     "archive",
			AssetID:    "abc",
			Status:     status,
			Reason:     "first_run",
			Hash:       "h",
			DurationMS: int64(i * 100),
		}
		if err := AppendRunLog(dir, entry); err != nil {
			t.Fatalf("AppendRunLog() error = %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "run.jsonl"))
	if err != nil {
		t.Fatalf("opening run log: %v", err)
	}
	defer f.Close()

	var entries []RunLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e RunLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("run log has %d entries, want 2", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "skipped" {
		t.Errorf("entries out of order: %+v", entries)
	}
}
