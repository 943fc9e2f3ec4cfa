package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	forceRegenerate bool
	folderOverride  string
	slugOverride    string
	withFrontmatter bool
	maxArticles     int
	outputDirFlag   string
	debugMode       bool
)

var rootCmd = &cobra.Command{
	Use:   "wxmd <url>",
	Short: "Archive WeChat articles as Markdown",
	Long: `Converts a WeChat article (or a whole album) into a self-contained
Markdown document with locally downloaded images and a metadata record.
Repeated runs against unchanged content are skipped.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := args[0]

		if err := ensureConfigExists(); err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
		settings, err := loadSettings()
		if err != nil {
			log.Fatalf("Invalid settings: %v", err)
		}
		applyFlagOverrides(settings)

		opts := ProcessOptions{
			Force:          forceRegenerate,
			FolderOverride: folderOverride,
			SlugOverride:   slugOverride,
		}

		if IsAlbumURL(url) {
			downloader := NewAlbumDownloader(settings)
			result, err := downloader.Download(url, opts)
			if err != nil {
				log.Fatalf("Album download failed: %v", err)
			}
			if result.IndexFile != "" {
				fmt.Println(result.IndexFile)
			}
			fmt.Println(result.OutputDir)
			return
		}

		processor := NewArticleProcessor(settings)
		result := processor.Process(url, opts)
		if result.Status == StatusError {
			log.Fatalf("Processing failed: %v", result.Error)
		}
		fmt.Println(result.AssetDir)
	},
}

func applyFlagOverrides(settings *Settings) {
	if withFrontmatter {
		settings.Frontmatter.Enabled = true
	}
	if maxArticles > 0 {
		settings.Album.MaxArticles = maxArticles
	}
	if outputDirFlag != "" {
		settings.OutputSettings.BaseDir = outputDirFlag
	}
}

func init() {
	rootCmd.Flags().BoolVar(&forceRegenerate, "force", false, "Regenerate even if content is unchanged")
	rootCmd.Flags().StringVar(&folderOverride, "folder", "", "Target vault folder (overrides config default)")
	rootCmd.Flags().StringVar(&slugOverride, "slug", "", "Custom slug (default: auto from title)")
	rootCmd.Flags().BoolVar(&withFrontmatter, "frontmatter", false, "Prepend YAML frontmatter to the document")
	rootCmd.Flags().IntVar(&maxArticles, "max-articles", 0, "Limit album downloads to N articles (0 = no limit)")
	rootCmd.Flags().StringVar(&outputDirFlag, "output-dir", "", "Base output directory (overrides config)")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func debugLog(format string, v ...any) {
	if debugMode {
		log.Printf(format, v...)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
