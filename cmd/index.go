package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Cooksey99/nucleus/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Index a directory into the vector store",
	Long: `Walks a directory, chunks and embeds every file that passes the
configured extension/exclude filters, and persists the resulting
documents to the vector store. Re-running over an unchanged directory
replaces rather than duplicates each file's prior chunks.

Example:
  nucleus index ./docs
  nucleus index . --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().Bool("watch", false, "keep running, incrementally re-indexing on file changes")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	watch, _ := cmd.Flags().GetBool("watch")

	cfg, err := loadConfigForCommand()
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := slog.Default()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ix := indexer.New(indexer.Config{
		Extensions:      cfg.RAG.Indexer.Extensions,
		ExcludePatterns: cfg.RAG.Indexer.ExcludePatterns,
		ChunkSize:       cfg.RAG.Indexer.ChunkSize,
		ChunkOverlap:    cfg.RAG.Indexer.ChunkOverlap,
	}, embedder, store, logger)

	bar := progressbar.Default(-1, fmt.Sprintf("indexing %s", root))
	stats, err := ix.IndexDirectory(ctx, root, bar)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %s: %d files scanned, %d files indexed, %d chunks added (%s)\n",
		root, stats.FilesScanned, stats.FilesIndexed, stats.ChunksAdded, stats.Duration)

	if watch {
		fmt.Println("Watching for changes, press Ctrl+C to stop...")
		return ix.Watch(ctx, root, 0)
	}
	return nil
}
