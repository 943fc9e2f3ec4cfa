// Archive maintenance for wxmd output trees: backfill content hashes into
// metadata records that predate hashing, and interactively remove
// duplicate archives of the same source article.
package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <backfill-hashes|remove-duplicates> <archive-directory>")
	}

	command := os.Args[1]
	archiveDir := os.Args[2]

	switch command {
	case "backfill-hashes":
		if err := backfillHashes(archiveDir); err != nil {
			log.Fatal(err)
		}
	case "remove-duplicates":
		if err := removeDuplicates(archiveDir); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// articleMeta is the subset of meta.json this tool reads and rewrites.
// Unknown fields are preserved via the raw map.
type articleMeta map[string]any

func backfillHashes(archiveDir string) error {
	return filepath.WalkDir(archiveDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && filepath.Base(path) == "meta.json" {
			if err := processMeta(path); err != nil {
				log.Printf("Error processing %s: %v", path, err)
			}
		}

		return nil
	})
}

func processMeta(metaPath string) error {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", metaPath, err)
	}

	var meta articleMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("parsing %s: %w", metaPath, err)
	}

	if hash, ok := meta["hash_content"].(string); ok && hash != "" {
		return nil
	}

	articlePath := filepath.Join(filepath.Dir(metaPath), "article.md")
	body, err := os.ReadFile(articlePath)
	if err != nil {
		log.Printf("No article.md next to %s, skipping", metaPath)
		return nil
	}

	meta["hash_content"] = contentHash(string(body))
	meta["hash_algorithm"] = "sha256"

	updated, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", metaPath, err)
	}

	log.Printf("Backfilled hash for %s", filepath.Dir(metaPath))
	return os.WriteFile(metaPath, append(updated, '\n'), 0644)
}

var (
	frontmatterRe   = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

const failureSectionHeading = "## 图片下载失败列表"

// contentHash mirrors the archiver's idempotency hash: SHA-256 over the
// whitespace-normalized document body. Frontmatter, the title heading
// and the image-failure section are assembled after hashing, so they
// are stripped here. Plain-text URLs the assembler linkified cannot be
// reverted, so articles containing them still backfill a hash the next
// run will see as changed.
func contentHash(document string) string {
	body := frontmatterRe.ReplaceAllString(document, "")
	if strings.HasPrefix(body, "# ") {
		if idx := strings.Index(body, "\n"); idx >= 0 {
			body = body[idx+1:]
		}
	}
	if idx := strings.Index(body, failureSectionHeading); idx >= 0 {
		body = body[:idx]
	}
	normalized := strings.TrimSpace(whitespaceRunRe.ReplaceAllString(body, " "))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}

func removeDuplicates(archiveDir string) error {
	assetToDirs := make(map[string][]string)
	reader := bufio.NewReader(os.Stdin)

	if err := filepath.WalkDir(archiveDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && filepath.Base(path) == "meta.json" {
			if id := assetIDFrom(path); id != "" {
				assetToDirs[id] = append(assetToDirs[id], filepath.Dir(path))
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}

	totalRemoved := 0
	for id, dirs := range assetToDirs {
		if len(dirs) <= 1 {
			continue
		}

		fmt.Printf("\nFound %d archives of asset %s:\n", len(dirs), id)
		for i, dir := range dirs {
			name := filepath.Base(dir)
			if i == 0 {
				fmt.Printf("  KEEP: %s\n", name)
				continue
			}

			if confirmDelete(reader, dir) {
				if err := os.RemoveAll(dir); err != nil {
					log.Printf("Error removing %s: %v", dir, err)
				} else {
					totalRemoved++
					fmt.Printf("  REMOVED: %s\n", name)
				}
			} else {
				fmt.Printf("  SKIP: %s\n", name)
			}
		}
	}

	fmt.Printf("\nRemoved %d duplicate archives\n", totalRemoved)
	return nil
}

func assetIDFrom(metaPath string) string {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return ""
	}
	var meta struct {
		AssetID string `json:"asset_id"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.AssetID
}

func confirmDelete(reader *bufio.Reader, dir string) bool {
	for {
		fmt.Printf("  DELETE %s? [y/N]: ", filepath.Base(dir))
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("Error reading input: %v", err)
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Println("  Please enter y or n.")
		}
	}
}
