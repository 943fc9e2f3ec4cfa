package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testFetcher() *ContentFetcher {
	return NewContentFetcher(defaultSettings())
}

func imageTree(srcs ...map[string]string) *ContentNode {
	root := &ContentNode{Kind: KindContainer}
	for _, attrs := range srcs {
		img := &ContentNode{Kind: KindImage}
		for k, v := range attrs {
			img.SetAttr(k, v)
		}
		root.Children = append(root.Children, &ContentNode{
			Kind:     KindParagraph,
			Children: []*ContentNode{img},
		})
	}
	return root
}

func TestImagePipelineDownloadsAndRewrites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	tree := imageTree(map[string]string{"src": server.URL + "/pic.png", "alt": "diagram"})
	imagesDir := filepath.Join(t.TempDir(), "images")

	pipeline := NewImagePipeline(testFetcher())
	manifest := pipeline.Process(tree, "https://example.com/article", imagesDir, "images/")

	if len(manifest) != 1 {
		t.Fatalf("manifest length = %d, want 1", len(manifest))
	}
	asset := manifest[0]
	if !asset.OK {
		t.Fatalf("asset failed: %s", asset.Err)
	}
	if asset.Filename != "001.png" {
		t.Errorf("Filename = %q, want 001.png", asset.Filename)
	}
	if asset.RelPath != "images/001.png" {
		t.Errorf("RelPath = %q, want images/001.png", asset.RelPath)
	}

	data, err := os.ReadFile(filepath.Join(imagesDir, "001.png"))
	if err != nil {
		t.Fatalf("reading downloaded image: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("image content = %q, want png-bytes", data)
	}

	var placeholder *ContentNode
	tree.walkImages(func(n *ContentNode) { t.Error("Image node survived rewrite") })
	for _, p := range tree.Children {
		for _, c := range p.Children {
			if c.Kind == KindPlaceholder {
				placeholder = c
			}
		}
	}
	if placeholder == nil {
		t.Fatal("no Placeholder node after Process()")
	}
	if placeholder.Attr("src") != "images/001.png" {
		t.Errorf("placeholder src = %q, want images/001.png", placeholder.Attr("src"))
	}
	if placeholder.Attr("alt") != "diagram" {
		t.Errorf("placeholder alt = %q, want diagram", placeholder.Attr("alt"))
	}
}

func TestImagePipelinePrefersDataSrc(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write([]byte("x"))
	}))
	defer server.Close()

	tree := imageTree(map[string]string{
		"data-src": server.URL + "/real.jpg",
		"src":      server.URL + "/placeholder.gif",
	})

	pipeline := NewImagePipeline(testFetcher())
	pipeline.Process(tree, "https://example.com/a", filepath.Join(t.TempDir(), "images"), "images/")

	if requestedPath != "/real.jpg" {
		t.Errorf("fetched %q, want /real.jpg (data-src preferred over src)", requestedPath)
	}
}

func TestImagePipelineFailureFallsBackToRemoteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	imgURL := server.URL + "/gone.jpg"
	tree := imageTree(map[string]string{"src": imgURL})

	pipeline := NewImagePipeline(testFetcher())
	manifest := pipeline.Process(tree, "https://example.com/a", filepath.Join(t.TempDir(), "images"), "images/")

	if len(manifest) != 1 {
		t.Fatalf("manifest length = %d, want 1", len(manifest))
	}
	asset := manifest[0]
	if asset.OK {
		t.Fatal("asset should have failed")
	}
	if asset.RelPath != imgURL {
		t.Errorf("failed asset RelPath = %q, want remote URL %q", asset.RelPath, imgURL)
	}
	if asset.Err == "" {
		t.Error("failed asset has no error detail")
	}

	// The document must still render with the remote reference.
	var placeholder *ContentNode
	for _, p := range tree.Children {
		for _, c := range p.Children {
			if c.Kind == KindPlaceholder {
				placeholder = c
			}
		}
	}
	if placeholder == nil {
		t.Fatal("no Placeholder node for failed image")
	}
	if placeholder.Attr("src") != imgURL {
		t.Errorf("placeholder src = %q, want remote URL", placeholder.Attr("src"))
	}
}

func TestImagePipelineManifestOrderAndIndices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	tree := imageTree(
		map[string]string{"src": server.URL + "/a.png"},
		map[string]string{"src": server.URL + "/b.jpg"},
		map[string]string{"src": server.URL + "/c.gif"},
	)

	pipeline := NewImagePipeline(testFetcher())
	manifest := pipeline.Process(tree, "https://example.com/a", filepath.Join(t.TempDir(), "images"), "images/")

	if len(manifest) != 3 {
		t.Fatalf("manifest length = %d, want 3", len(manifest))
	}
	wantNames := []string{"001.png", "002.jpg", "003.gif"}
	for i, asset := range manifest {
		if asset.Index != i+1 {
			t.Errorf("asset %d Index = %d, want %d", i, asset.Index, i+1)
		}
		if asset.Filename != wantNames[i] {
			t.Errorf("asset %d Filename = %q, want %q", i, asset.Filename, wantNames[i])
		}
	}
}

func TestImagePipelineDataURIAndEmptySrc(t *testing.T) {
	tree := imageTree(
		map[string]string{"src": "data:image/png;base64,AAAA"},
		map[string]string{},
	)

	pipeline := NewImagePipeline(testFetcher())
	manifest := pipeline.Process(tree, "https://example.com/a", filepath.Join(t.TempDir(), "images"), "images/")

	if len(manifest) != 2 {
		t.Fatalf("manifest length = %d, want 2", len(manifest))
	}
	for i, asset := range manifest {
		if asset.OK {
			t.Errorf("asset %d should have failed", i)
		}
		if asset.Err != "missing image url" {
			t.Errorf("asset %d Err = %q, want %q", i, asset.Err, "missing image url")
		}
	}

	// Unfetchable images are dropped from the tree entirely.
	for _, p := range tree.Children {
		for _, c := range p.Children {
			if c.Kind == KindPlaceholder || c.Kind == KindImage {
				t.Errorf("unfetchable image left node kind %v in tree", c.Kind)
			}
		}
	}
}

func TestImagePipelineProtocolRelativeURL(t *testing.T) {
	tree := imageTree(map[string]string{"src": "//cdn.example.invalid/x.png"})

	pipeline := NewImagePipeline(testFetcher())
	manifest := pipeline.Process(tree, "https://example.com/a", filepath.Join(t.TempDir(), "images"), "images/")

	if len(manifest) != 1 {
		t.Fatalf("manifest length = %d, want 1", len(manifest))
	}
	if !strings.HasPrefix(manifest[0].OriginalURL, "https://") {
		t.Errorf("OriginalURL = %q, want https:// scheme prepended", manifest[0].OriginalURL)
	}
}

func TestImagePipelineExtFromContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("x"))
	}))
	defer server.Close()

	// URL has no usable extension; Content-Type decides.
	tree := imageTree(map[string]string{"src": server.URL + "/image"})

	pipeline := NewImagePipeline(testFetcher())
	manifest := pipeline.Process(tree, "https://example.com/a", filepath.Join(t.TempDir(), "images"), "images/")

	if manifest[0].Filename != "001.webp" {
		t.Errorf("Filename = %q, want 001.webp", manifest[0].Filename)
	}
}

func TestGuessExtFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn/x.jpeg", "jpg"},
		{"https://cdn/x.PNG", "png"},
		{"https://cdn/x.svg", ""},
		{"https://cdn/noext", ""},
		{"https://cdn/x.webp?wx_fmt=webp", "webp"},
	}

	for _, tt := range tests {
		if got := guessExtFromURL(tt.url); got != tt.want {
			t.Errorf("guessExtFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
