// Package vectorstore defines the document vector store contract shared by
// the embedded (sqlite-backed) and gRPC (Qdrant) backends, and implements
// the ordering/tie-break rules and similarity convention both backends must
// honor.
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/vecmath"
)

// Document is an immutable record with a stable id, its source content, an
// embedding vector, and a metadata map carrying at least "source".
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult pairs a Document with its similarity score. Score is in
// [-1, 1] for cosine similarity, or 1-distance when the backend reports a
// distance metric.
type SearchResult struct {
	Document Document
	Score    float32
}

// Store is the vector store contract. Both backends (embedded, Qdrant)
// implement it with identical semantics.
type Store interface {
	// Add upserts doc by ID. Returns a vector_store kind error if the
	// document's vector dimension does not match the store's configured
	// dimension.
	Add(ctx context.Context, doc Document) error

	// Search returns up to k results ordered by descending score, with ties
	// broken by ascending ID for deterministic output. An empty store
	// returns an empty slice, never an error.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Clear removes every document from the store.
	Clear(ctx context.Context) error

	// IndexedPaths returns the distinct set of metadata["source"] values
	// currently stored.
	IndexedPaths(ctx context.Context) ([]string, error)

	// RemoveBySource deletes every document whose metadata["source"]
	// equals path, and returns the number removed.
	RemoveBySource(ctx context.Context, path string) (int, error)

	// Close releases backend resources (connections, file handles).
	Close() error
}

// SortResults orders results by descending score, breaking ties by
// ascending document ID, and truncates to at most k. Shared by both
// backends so the ordering contract (spec §4.A) can't drift between them.
func SortResults(results []SearchResult, k int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// ScoreCosine scores a candidate vector against a query using cosine
// similarity, the default similarity metric for both backends.
func ScoreCosine(query, candidate []float32) float32 {
	return float32(vecmath.CosineSimilarity(query, candidate))
}

// ErrDimensionMismatch builds the vector_store kind error Add returns when a
// document's vector length doesn't match the store's configured dimension.
func ErrDimensionMismatch(got, want int) error {
	return nucleuserr.New(nucleuserr.KindVectorStore,
		fmt.Sprintf("vector dimension %d does not match store dimension %d", got, want))
}
