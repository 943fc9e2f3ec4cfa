// images.go
package main

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// imageExtAllowList maps acceptable URL extensions to their normalized
// form.
var imageExtAllowList = map[string]string{
	"jpg": "jpg", "jpeg": "jpg", "png": "png",
	"gif": "gif", "webp": "webp", "bmp": "bmp",
}

var contentTypeExt = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// ImagePipeline downloads embedded images and rewrites the content tree in
// place, replacing Image nodes with Placeholder nodes. No download failure
// is fatal: a failed asset keeps its remote URL so the rendered document
// stays viewable.
type ImagePipeline struct {
	fetcher *ContentFetcher
}

// NewImagePipeline creates an image pipeline using the given fetcher.
func NewImagePipeline(fetcher *ContentFetcher) *ImagePipeline {
	return &ImagePipeline{fetcher: fetcher}
}

// Process downloads every image referenced in the tree, writing binaries to
// imagesDir as zero-padded sequence-numbered files, and returns the asset
// manifest in DOM encounter order. mdPrefix is the relative path prefix
// used in rendered Markdown links (e.g. "./images/").
func (p *ImagePipeline) Process(tree *ContentNode, articleURL, imagesDir, mdPrefix string) []ImageAsset {
	var manifest []ImageAsset

	tree.walkImages(func(img *ContentNode) {
		idx := len(manifest) + 1
		idxStr := fmt.Sprintf("%03d", idx)

		// WeChat defers real images behind data-src; prefer lazy-load
		// attributes over src.
		originalURL := strings.TrimSpace(img.Attr("data-src"))
		if originalURL == "" {
			originalURL = strings.TrimSpace(img.Attr("data-original"))
		}
		if originalURL == "" {
			originalURL = strings.TrimSpace(img.Attr("src"))
		}

		if originalURL == "" || strings.HasPrefix(originalURL, "data:") {
			// Nothing fetchable. Drop the node and record the failure.
			img.Kind = KindText
			img.Text = ""
			img.Attrs = nil
			img.Children = nil
			manifest = append(manifest, ImageAsset{
				Index:       idx,
				OriginalURL: "",
				Filename:    idxStr + ".bin",
				RelPath:     mdPrefix + idxStr + ".bin",
				OK:          false,
				Err:         "missing image url",
			})
			return
		}

		if strings.HasPrefix(originalURL, "//") {
			originalURL = "https:" + originalURL
		}

		ext := guessExtFromURL(originalURL)
		filename := idxStr + "." + orDefault(ext, "jpg")

		asset := ImageAsset{Index: idx, OriginalURL: originalURL, OK: true}

		data, contentType, err := p.fetcher.FetchImage(originalURL, articleURL)
		if err == nil {
			if ext == "" {
				if inferred := extFromContentType(contentType); inferred != "" {
					filename = idxStr + "." + inferred
				}
			}
			if werr := writeImage(imagesDir, filename, data); werr != nil {
				err = werr
			}
		}
		if err != nil {
			asset.OK = false
			asset.Err = err.Error()
		}

		asset.Filename = filename
		if asset.OK {
			asset.RelPath = mdPrefix + filename
		} else {
			asset.RelPath = originalURL
		}
		manifest = append(manifest, asset)

		alt := strings.TrimSpace(img.Attr("alt"))
		img.Kind = KindPlaceholder
		img.Attrs = nil
		img.Children = nil
		img.SetAttr("src", asset.RelPath)
		if alt != "" {
			img.SetAttr("alt", alt)
		}
	})

	return manifest
}

func writeImage(imagesDir, filename string, data []byte) error {
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return fmt.Errorf("creating images directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(imagesDir, filename), data, 0644); err != nil {
		return fmt.Errorf("writing image file: %w", err)
	}
	return nil
}

// guessExtFromURL infers the file extension from the URL's trailing path
// segment; only allow-listed image extensions count.
func guessExtFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		return ""
	}
	return imageExtAllowList[strings.ToLower(base[dot+1:])]
}

func extFromContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return contentTypeExt[ct]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
