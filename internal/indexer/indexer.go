// Package indexer walks a source directory, chunks each file's text, embeds
// each chunk, and persists the resulting documents to a vector store,
// keeping re-indexing idempotent and optionally watching for incremental
// changes.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"github.com/schollz/progressbar/v3"

	"github.com/Cooksey99/nucleus/internal/embedclient"
	"github.com/Cooksey99/nucleus/internal/vectorstore"
)

// Config mirrors spec.md's IndexerConfig: extensions (empty = all readable
// text files), exclude_patterns, chunk_size, chunk_overlap.
type Config struct {
	Extensions      []string
	ExcludePatterns []string
	ChunkSize       int
	ChunkOverlap    int
}

// DefaultConfig returns the indexer defaults (chunk_size 512, chunk_overlap
// 50, default exclude patterns), matching the original's IndexerConfig
// default.
func DefaultConfig() Config {
	return Config{
		Extensions:      nil,
		ExcludePatterns: DefaultExcludePatterns(),
		ChunkSize:       512,
		ChunkOverlap:    50,
	}
}

// Validate rejects chunk_overlap >= chunk_size as a configuration error,
// per spec.md's boundary-case requirement.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("indexer: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("indexer: chunk_overlap (%d) must be less than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Indexer walks directories, chunks and embeds their files, and persists
// the resulting documents.
type Indexer struct {
	cfg      Config
	embedder embedclient.Provider
	store    vectorstore.Store
	logger   *slog.Logger
}

// New constructs an Indexer. logger may be nil, in which case slog.Default
// is used.
func New(cfg Config, embedder embedclient.Provider, store vectorstore.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{cfg: cfg, embedder: embedder, store: store, logger: logger}
}

// Stats summarizes one indexing run.
type Stats struct {
	FilesScanned int
	FilesIndexed int
	ChunksAdded  int
	Duration     time.Duration
}

// IndexDirectory walks root, chunking and embedding every file that passes
// the extension/exclude filters, and persists the resulting documents.
// Before (re-)indexing a source already present in the store, it removes
// the prior documents for that source first, keeping repeated runs over
// unchanged content idempotent.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string, bar *progressbar.ProgressBar) (Stats, error) {
	start := time.Now()
	stats := Stats{}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return stats, fmt.Errorf("indexer: resolve root: %w", err)
	}

	already, err := ix.store.IndexedPaths(ctx)
	if err != nil {
		return stats, fmt.Errorf("indexer: list indexed paths: %w", err)
	}
	alreadySet := make(map[string]bool, len(already))
	for _, p := range already {
		alreadySet[p] = true
	}

	err = godirwalk.Walk(absRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if ix.isExcluded(path) {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() {
				return nil
			}
			stats.FilesScanned++
			if !ix.matchesExtension(path) {
				return nil
			}

			n, indexErr := ix.indexFile(ctx, path, alreadySet[path])
			if indexErr != nil {
				ix.logger.Warn("indexer: skip file", "path", path, "error", indexErr)
				return nil
			}
			if n > 0 {
				stats.FilesIndexed++
				stats.ChunksAdded += n
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		},
	})
	if err != nil {
		return stats, fmt.Errorf("indexer: walk %s: %w", absRoot, err)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (ix *Indexer) isExcluded(path string) bool {
	for _, pattern := range ix.cfg.ExcludePatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func (ix *Indexer) matchesExtension(path string) bool {
	if len(ix.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, e := range ix.cfg.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// indexFile chunks, embeds, and stores a single file, returning the number
// of chunks added. If the file is already indexed, its prior documents are
// removed first so re-indexing is idempotent.
func (ix *Indexer) indexFile(ctx context.Context, path string, wasIndexed bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	if !utf8.Valid(data) {
		return 0, fmt.Errorf("not valid UTF-8")
	}

	if wasIndexed {
		if _, err := ix.store.RemoveBySource(ctx, path); err != nil {
			return 0, fmt.Errorf("remove prior chunks: %w", err)
		}
	}

	chunks := ChunkText(string(data), ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	for i, c := range chunks {
		doc := vectorstore.Document{
			ID:      path + "#" + strconv.Itoa(c.Offset),
			Content: c.Content,
			Vector:  vectors[i],
			Metadata: map[string]string{
				"source": path,
			},
		}
		if err := ix.store.Add(ctx, doc); err != nil {
			return i, fmt.Errorf("add chunk at offset %d: %w", c.Offset, err)
		}
	}

	return len(chunks), nil
}

// Watch incrementally re-indexes files under root as fsnotify reports
// writes, debouncing bursts of events for the same file. It blocks until
// ctx is cancelled. This supplements spec.md's indexer with the
// SPEC_FULL.md incremental-reindex feature; it is not itself required by
// the core spec.
func (ix *Indexer) Watch(ctx context.Context, root string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("indexer: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch an absolute root so event paths match the absolute sources
	// IndexDirectory stored, letting indexFile remove their prior chunks.
	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("indexer: resolve root: %w", err)
	}
	if err := addRecursive(watcher, root); err != nil {
		return fmt.Errorf("indexer: watch %s: %w", root, err)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	pending := map[string]*time.Timer{}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := event.Name
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounce, func() {
				if n, err := ix.indexFile(ctx, path, true); err != nil {
					ix.logger.Warn("indexer: incremental reindex failed", "path", path, "error", err)
				} else {
					ix.logger.Debug("indexer: incremental reindex", "path", path, "chunks", n)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.logger.Warn("indexer: watcher error", "error", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
