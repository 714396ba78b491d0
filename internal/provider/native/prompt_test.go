package native

import (
	"math"
	"strings"
	"testing"

	"github.com/Cooksey99/nucleus/internal/provider"
)

func TestAssemblePromptStructure(t *testing.T) {
	prompt := assemblePrompt([]provider.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello"},
	})

	if !strings.HasPrefix(prompt, beginOfText) {
		t.Fatal("expected prompt to start with begin-of-text marker")
	}
	if !strings.HasSuffix(prompt, assistantContinuation) {
		t.Fatal("expected prompt to end with assistant continuation marker")
	}
	if strings.Count(prompt, endOfTurn) != 2 {
		t.Fatalf("expected one end-of-turn marker per message, got %d", strings.Count(prompt, endOfTurn))
	}
	if !strings.Contains(prompt, "system") || !strings.Contains(prompt, "user") {
		t.Fatal("expected both role headers present")
	}
}

func TestBuildCausalMask(t *testing.T) {
	mask := buildCausalMask(3)
	if len(mask) != 9 {
		t.Fatalf("expected 9 entries for a 3x3 mask, got %d", len(mask))
	}
	// On and under the diagonal: 0.0.
	for _, idx := range []int{0, 3, 4, 6, 7, 8} {
		if mask[idx] != 0 {
			t.Errorf("expected mask[%d] == 0, got %v", idx, mask[idx])
		}
	}
	// Above the diagonal: -Inf.
	for _, idx := range []int{1, 2, 5} {
		if !math.IsInf(float64(mask[idx]), -1) {
			t.Errorf("expected mask[%d] == -Inf, got %v", idx, mask[idx])
		}
	}
}

func TestSampleGreedyIsDeterministic(t *testing.T) {
	logits := []float32{0.1, 0.9, 0.3, -2.0}
	if got := sample(logits, 0); got != 1 {
		t.Fatalf("expected argmax index 1, got %d", got)
	}
}

func TestCodepointTokenizerRoundTrip(t *testing.T) {
	tok := NewCodepointTokenizer()
	ids := tok.Encode("hi")
	if len(ids) != 2 {
		t.Fatalf("expected 2 code points, got %d", len(ids))
	}
	if tok.DecodeOne(ids[0]) != "h" || tok.DecodeOne(ids[1]) != "i" {
		t.Fatalf("expected round-trip decode, got %q %q", tok.DecodeOne(ids[0]), tok.DecodeOne(ids[1]))
	}
}
