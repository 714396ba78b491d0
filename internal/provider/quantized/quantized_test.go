package quantized

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Cooksey99/nucleus/internal/plugin"
)

func TestResolveModelRefLocalGGUF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ref := ResolveModelRef(path)
	if ref.Kind != "local_gguf" || ref.LocalDir != path {
		t.Fatalf("expected local_gguf ref for existing file, got %+v", ref)
	}
}

func TestResolveModelRefHFGGUF(t *testing.T) {
	ref := ResolveModelRef("Qwen/Qwen3-0.6B-Instruct-GGUF:qwen3-0_6b-instruct-q4_k_m.gguf")
	if ref.Kind != "hf_gguf" {
		t.Fatalf("expected hf_gguf, got %q", ref.Kind)
	}
	if ref.HFRepo != "Qwen/Qwen3-0.6B-Instruct-GGUF" || ref.HFFile != "qwen3-0_6b-instruct-q4_k_m.gguf" {
		t.Fatalf("unexpected split: %+v", ref)
	}
}

func TestResolveModelRefBareRepo(t *testing.T) {
	ref := ResolveModelRef("Qwen/Qwen3-0.6B-Instruct")
	if ref.Kind != "hf_repo" || ref.HFRepo != "Qwen/Qwen3-0.6B-Instruct" {
		t.Fatalf("expected hf_repo, got %+v", ref)
	}
}

func TestSpecsToTools(t *testing.T) {
	specs := []plugin.Spec{
		{Name: "read_file", Description: "reads a file", Parameters: map[string]interface{}{"type": "object"}},
	}
	tools := SpecsToTools(specs)
	if len(tools) != 1 || tools[0].Name != "read_file" {
		t.Fatalf("unexpected conversion: %+v", tools)
	}
}
