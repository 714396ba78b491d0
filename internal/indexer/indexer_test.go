package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/Cooksey99/nucleus/internal/vectorstore"
)

// fakeEmbedder returns a fixed-dimension zero vector per text, enough to
// exercise the indexer's chunk/embed/store pipeline without a real model.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f fakeEmbedder) Dimension() int    { return f.dim }
func (f fakeEmbedder) ModelName() string { return "fake" }

// fakeStore is an in-memory vectorstore.Store sufficient for indexer tests.
type fakeStore struct {
	docs map[string]vectorstore.Document
}

func newFakeStore() *fakeStore { return &fakeStore{docs: map[string]vectorstore.Document{}} }

func (s *fakeStore) Add(ctx context.Context, doc vectorstore.Document) error {
	s.docs[doc.ID] = doc
	return nil
}
func (s *fakeStore) Search(ctx context.Context, query []float32, k int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) Count(ctx context.Context) (int, error) { return len(s.docs), nil }
func (s *fakeStore) Clear(ctx context.Context) error {
	s.docs = map[string]vectorstore.Document{}
	return nil
}
func (s *fakeStore) IndexedPaths(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var paths []string
	for _, d := range s.docs {
		src := d.Metadata["source"]
		if src != "" && !seen[src] {
			seen[src] = true
			paths = append(paths, src)
		}
	}
	return paths, nil
}
func (s *fakeStore) RemoveBySource(ctx context.Context, path string) (int, error) {
	n := 0
	for id, d := range s.docs {
		if d.Metadata["source"] == path {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}
func (s *fakeStore) Close() error { return nil }

func TestChunkTextBasic(t *testing.T) {
	chunks := ChunkText("abcdefghij", 4, 1)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].Content != "abcd" {
		t.Errorf("expected first chunk 'abcd', got %q", chunks[0].Content)
	}
}

func TestChunkTextEmptyContent(t *testing.T) {
	if chunks := ChunkText("", 100, 10); chunks != nil {
		t.Errorf("expected nil chunks for empty content, got %v", chunks)
	}
}

func TestChunkTextRespectsRuneBoundaries(t *testing.T) {
	content := "héllo wörld this is a test"
	chunks := ChunkText(content, 5, 1)
	for _, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Fatalf("chunk %q is not valid UTF-8", c.Content)
		}
	}
}

func TestConfigValidateRejectsOverlapGESize(t *testing.T) {
	cfg := Config{ChunkSize: 100, ChunkOverlap: 100}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when chunk_overlap >= chunk_size")
	}
}

func TestConfigValidateRejectsNonPositiveSize(t *testing.T) {
	cfg := Config{ChunkSize: 0, ChunkOverlap: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive chunk_size")
	}
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestIndexDirectoryPrunesExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "node_modules", "pkg", "ignored.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "keep.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newFakeStore()
	ix := New(DefaultConfig(), fakeEmbedder{dim: 4}, store, nil)

	stats, err := ix.IndexDirectory(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if stats.FilesIndexed != 1 {
		t.Fatalf("expected exactly 1 file indexed (excluded dir pruned), got %d", stats.FilesIndexed)
	}

	paths, err := store.IndexedPaths(context.Background())
	if err != nil {
		t.Fatalf("IndexedPaths: %v", err)
	}
	for _, p := range paths {
		if filepath.Base(filepath.Dir(p)) == "pkg" {
			t.Fatalf("expected node_modules contents to be excluded, found %s", p)
		}
	}
}

func TestIndexDirectoryIsIdempotent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "doc.txt"), []byte("some content to chunk and embed"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newFakeStore()
	ix := New(DefaultConfig(), fakeEmbedder{dim: 4}, store, nil)
	ctx := context.Background()

	if _, err := ix.IndexDirectory(ctx, root, nil); err != nil {
		t.Fatalf("first IndexDirectory: %v", err)
	}
	firstCount, _ := store.Count(ctx)

	if _, err := ix.IndexDirectory(ctx, root, nil); err != nil {
		t.Fatalf("second IndexDirectory: %v", err)
	}
	secondCount, _ := store.Count(ctx)

	if firstCount != secondCount {
		t.Fatalf("expected re-indexing an unchanged directory to leave document count stable, got %d then %d", firstCount, secondCount)
	}
}
