package vectorstore

import "testing"

func TestSortResultsOrdersByDescendingScore(t *testing.T) {
	results := []SearchResult{
		{Document: Document{ID: "a"}, Score: 0.1},
		{Document: Document{ID: "b"}, Score: 0.9},
		{Document: Document{ID: "c"}, Score: 0.5},
	}
	sorted := SortResults(results, 0)
	got := []string{sorted[0].Document.ID, sorted[1].Document.ID, sorted[2].Document.ID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestSortResultsTieBreaksByAscendingID(t *testing.T) {
	results := []SearchResult{
		{Document: Document{ID: "z"}, Score: 0.5},
		{Document: Document{ID: "a"}, Score: 0.5},
		{Document: Document{ID: "m"}, Score: 0.5},
	}
	sorted := SortResults(results, 0)
	got := []string{sorted[0].Document.ID, sorted[1].Document.ID, sorted[2].Document.ID}
	want := []string{"a", "m", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected tie-break order %v, got %v", want, got)
		}
	}
}

func TestSortResultsTruncatesToK(t *testing.T) {
	results := []SearchResult{
		{Document: Document{ID: "a"}, Score: 0.9},
		{Document: Document{ID: "b"}, Score: 0.8},
		{Document: Document{ID: "c"}, Score: 0.7},
	}
	sorted := SortResults(results, 2)
	if len(sorted) != 2 {
		t.Fatalf("expected 2 results, got %d", len(sorted))
	}
	if sorted[0].Document.ID != "a" || sorted[1].Document.ID != "b" {
		t.Fatalf("unexpected truncated order: %+v", sorted)
	}
}

func TestSortResultsKZeroReturnsAll(t *testing.T) {
	results := []SearchResult{
		{Document: Document{ID: "a"}, Score: 0.9},
		{Document: Document{ID: "b"}, Score: 0.8},
	}
	sorted := SortResults(results, 0)
	if len(sorted) != 2 {
		t.Fatalf("expected k=0 to return all results, got %d", len(sorted))
	}
}

func TestSortResultsEmptyInput(t *testing.T) {
	sorted := SortResults(nil, 5)
	if len(sorted) != 0 {
		t.Fatalf("expected empty slice for empty input, got %d", len(sorted))
	}
}

func TestScoreCosineMatchesSimilarity(t *testing.T) {
	query := []float32{1, 0}
	candidate := []float32{1, 0}
	if got := ScoreCosine(query, candidate); got != 1.0 {
		t.Errorf("expected score 1.0 for identical vectors, got %v", got)
	}
}

func TestScoreCosineOrthogonalIsZero(t *testing.T) {
	query := []float32{1, 0}
	candidate := []float32{0, 1}
	if got := ScoreCosine(query, candidate); got != 0.0 {
		t.Errorf("expected score 0.0 for orthogonal vectors, got %v", got)
	}
}

func TestErrDimensionMismatchMessage(t *testing.T) {
	err := ErrDimensionMismatch(3, 768)
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	want := "vector_store: vector dimension 3 does not match store dimension 768"
	if err.Error() != want {
		t.Errorf("expected message %q, got %q", want, err.Error())
	}
}
