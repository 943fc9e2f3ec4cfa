// config.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".wxmd"

// OutputSettings controls the archive directory layout.
type OutputSettings struct {
	BaseDir         string `yaml:"base_dir"`
	ImagesDirname   string `yaml:"images_dirname"`
	ArticleFilename string `yaml:"article_filename"`
}

// SlugSettings controls how asset directory names are derived.
type SlugSettings struct {
	Format    string `yaml:"format"` // title | date-title | date-title-hash
	MaxLength int    `yaml:"max_length"`
}

// FrontmatterSettings controls the optional YAML header on article.md.
type FrontmatterSettings struct {
	Enabled       bool     `yaml:"enabled"`
	IncludeFields []string `yaml:"include_fields"`
}

// FolderSettings controls the vault folder the archive lands in.
type FolderSettings struct {
	Default          string   `yaml:"default"`
	Whitelist        []string `yaml:"whitelist"`
	EnforceWhitelist bool     `yaml:"enforce_whitelist"`
}

// TagsSettings controls frontmatter tags.
type TagsSettings struct {
	DefaultTags []string `yaml:"default_tags"`
	MaxCount    int      `yaml:"max_count"`
}

// AlbumSettings controls collection downloads.
type AlbumSettings struct {
	DelaySeconds  float64 `yaml:"delay_seconds"`
	MaxArticles   int     `yaml:"max_articles"`
	GenerateIndex bool    `yaml:"generate_index"`
	IndexFilename string  `yaml:"index_filename"`
}

// FetchSettings bounds network operations.
type FetchSettings struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	Retries        int `yaml:"retries"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	OutputSettings OutputSettings      `yaml:"output"`
	Slug           SlugSettings        `yaml:"slug"`
	Frontmatter    FrontmatterSettings `yaml:"frontmatter"`
	Folder         FolderSettings      `yaml:"folder"`
	Tags           TagsSettings        `yaml:"tags"`
	Album          AlbumSettings       `yaml:"album"`
	Fetch          FetchSettings       `yaml:"fetch"`
}

func defaultSettings() *Settings {
	return &Settings{
		OutputSettings: OutputSettings{
			BaseDir:         "outputs",
			ImagesDirname:   "images",
			ArticleFilename: "article.md",
		},
		Slug: SlugSettings{Format: "date-title-hash", MaxLength: 80},
		Frontmatter: FrontmatterSettings{
			Enabled:       false,
			IncludeFields: []string{"title", "author", "created", "source", "tags"},
		},
		Folder: FolderSettings{
			Default: "20-阅读笔记",
			Whitelist: []string{
				"00-Inbox", "10-项目", "20-阅读笔记", "30-方法论",
				"40-工具脚本", "50-运维排障", "60-数据与表", "90-归档",
			},
		},
		Tags:  TagsSettings{DefaultTags: []string{"wechat", "reading"}, MaxCount: 8},
		Album: AlbumSettings{DelaySeconds: 1.0, GenerateIndex: true, IndexFilename: "_index.md"},
		Fetch: FetchSettings{TimeoutSeconds: 30, Retries: 2},
	}
}

// loadSettings loads settings from the config directory, falling back to
// defaults when no file exists. A present-but-malformed file is a fatal
// configuration error: processing must not start with half-read settings.
func loadSettings() (*Settings, error) {
	settingsPath := getConfigPath("settings.yaml")

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
	}

	settings := defaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", settingsPath, err)
	}

	return settings, nil
}

func (s *Settings) validate() error {
	switch s.Slug.Format {
	case "title", "date-title", "date-title-hash":
	default:
		return fmt.Errorf("slug.format must be title, date-title or date-title-hash, got %q", s.Slug.Format)
	}
	if s.Slug.MaxLength < 10 {
		return fmt.Errorf("slug.max_length must be at least 10, got %d", s.Slug.MaxLength)
	}
	if s.Album.DelaySeconds < 0 {
		return fmt.Errorf("album.delay_seconds must not be negative, got %g", s.Album.DelaySeconds)
	}
	if s.Album.MaxArticles < 0 {
		return fmt.Errorf("album.max_articles must not be negative, got %d", s.Album.MaxArticles)
	}
	if s.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive, got %d", s.Fetch.TimeoutSeconds)
	}
	if s.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must not be negative, got %d", s.Fetch.Retries)
	}
	if s.OutputSettings.BaseDir == "" {
		return fmt.Errorf("output.base_dir must not be empty")
	}
	if s.OutputSettings.ImagesDirname == "" {
		return fmt.Errorf("output.images_dirname must not be empty")
	}
	return nil
}

// folder returns the target vault folder, applying the whitelist when
// enforcement is on. A non-empty override takes precedence over the
// configured default but is still subject to the whitelist.
func (s *Settings) folder(override string) string {
	folder := s.Folder.Default
	if override != "" {
		folder = override
	}
	if folder == "" {
		return ""
	}
	if s.Folder.EnforceWhitelist {
		for _, w := range s.Folder.Whitelist {
			if folder == w {
				return folder
			}
		}
		log.Printf("WARNING: folder %q not in whitelist, using first whitelist item", folder)
		if len(s.Folder.Whitelist) > 0 {
			return s.Folder.Whitelist[0]
		}
		return ""
	}
	return folder
}

// getConfigPath returns the path to a config file in .wxmd directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and default settings file
// if they don't exist.
func ensureConfigExists() error {
	if _, err := os.Stat(defaultConfigDir); os.IsNotExist(err) {
		if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		defaults := `output:
  base_dir: outputs
  images_dirname: images
  article_filename: article.md
slug:
  format: date-title-hash
  max_length: 80
frontmatter:
  enabled: false
  include_fields: [title, author, created, source, tags]
folder:
  default: 20-阅读笔记
  enforce_whitelist: false
tags:
  default_tags: [wechat, reading]
  max_count: 8
album:
  delay_seconds: 1.0
  max_articles: 0
  generate_index: true
  index_filename: _index.md
fetch:
  timeout_seconds: 30
  retries: 2
`
		if err := os.WriteFile(settingsPath, []byte(defaults), 0644); err != nil {
			return fmt.Errorf("writing default settings: %w", err)
		}
	}

	return nil
}
