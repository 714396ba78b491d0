// Package embedded implements the zero-setup, in-process vector store
// backend: a sqlite-backed table with an id, content, serialized vector
// column, and source metadata column, scored by cosine similarity at query
// time. It is the Go analog of the original's LanceDB-backed store, chosen
// because no embedded columnar/ANN vector store exists in the reachable Go
// ecosystem; see DESIGN.md for the full rationale.
package embedded

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Cooksey99/nucleus/internal/vectorstore"
)

// Store is the embedded sqlite-backed vectorstore.Store implementation.
// Writes are serialized through writeMu; reads are not, matching the
// concurrency model's "vector store internally serializes writes; reads are
// permitted concurrently" requirement.
type Store struct {
	db        *sql.DB
	dimension int
	writeMu   sync.Mutex
}

// Config configures the embedded store.
type Config struct {
	// Path is the file path to the sqlite database. Its parent directory is
	// created if missing.
	Path string

	// Dimension is the fixed vector dimension this store accepts.
	Dimension int
}

// New opens or creates the embedded store at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("embedded store: path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("embedded store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("embedded store: open: %w", err)
	}

	s := &Store{db: db, dimension: cfg.Dimension}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			vector BLOB NOT NULL,
			source TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	`)
	if err != nil {
		return fmt.Errorf("embedded store: init schema: %w", err)
	}
	return nil
}

// Add upserts doc by ID.
func (s *Store) Add(ctx context.Context, doc vectorstore.Document) error {
	if s.dimension > 0 && len(doc.Vector) != s.dimension {
		return vectorstore.ErrDimensionMismatch(len(doc.Vector), s.dimension)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, content, vector, source) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content, vector = excluded.vector, source = excluded.source`,
		doc.ID, doc.Content, encodeVector(doc.Vector), doc.Metadata["source"],
	)
	if err != nil {
		return fmt.Errorf("embedded store: add: %w", err)
	}
	return nil
}

// Search returns up to k documents ranked by descending cosine similarity.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vectorstore.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, vector, source FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("embedded store: search: %w", err)
	}
	defer rows.Close()

	var results []vectorstore.SearchResult
	for rows.Next() {
		var id, content, source string
		var vecBlob []byte
		if err := rows.Scan(&id, &content, &vecBlob, &source); err != nil {
			return nil, fmt.Errorf("embedded store: scan: %w", err)
		}
		vec := decodeVector(vecBlob)
		score := vectorstore.ScoreCosine(query, vec)
		results = append(results, vectorstore.SearchResult{
			Document: vectorstore.Document{
				ID:      id,
				Content: content,
				Vector:  vec,
				Metadata: map[string]string{
					"source": source,
				},
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("embedded store: rows: %w", err)
	}

	return vectorstore.SortResults(results, k), nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("embedded store: count: %w", err)
	}
	return n, nil
}

// Clear removes every document.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("embedded store: clear: %w", err)
	}
	return nil
}

// IndexedPaths returns the distinct set of source paths currently stored.
func (s *Store) IndexedPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM documents WHERE source != ''`)
	if err != nil {
		return nil, fmt.Errorf("embedded store: indexed paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("embedded store: scan: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// RemoveBySource deletes every document whose source metadata equals path.
func (s *Store) RemoveBySource(ctx context.Context, path string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("embedded store: remove by source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("embedded store: rows affected: %w", err)
	}
	return int(n), nil
}

// Close releases the underlying sqlite handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
