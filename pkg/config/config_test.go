package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPermissionDefault(t *testing.T) {
	perm := DefaultPermission()
	if !perm.Read || !perm.Write || !perm.Command {
		t.Errorf("expected all permissions granted by default, got %+v", perm)
	}
}

func TestVectorDBConfigDefault(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Storage.VectorDB.CollectionName != "nucleus_kb" {
		t.Errorf("expected default collection name nucleus_kb, got %s", cfg.Storage.VectorDB.CollectionName)
	}
}

func TestStorageConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Storage.ChatHistoryPath != "./data/history" {
		t.Errorf("expected chat_history_path ./data/history, got %s", cfg.Storage.ChatHistoryPath)
	}
	if cfg.Storage.ToolStatePath != "./data/tool_state" {
		t.Errorf("expected tool_state_path ./data/tool_state, got %s", cfg.Storage.ToolStatePath)
	}
	if cfg.Storage.VectorDB.CollectionName != "nucleus_kb" {
		t.Errorf("expected vector_db.collection_name nucleus_kb, got %s", cfg.Storage.VectorDB.CollectionName)
	}
	if cfg.Storage.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Storage.TopK)
	}
}

func TestRAGConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RAG.EmbeddingModel.Name == "" {
		t.Error("expected a default embedding model name")
	}
	if cfg.RAG.Indexer.ChunkSize != 512 {
		t.Errorf("expected default chunk_size 512, got %d", cfg.RAG.Indexer.ChunkSize)
	}
	if cfg.RAG.Indexer.ChunkOverlap != 50 {
		t.Errorf("expected default chunk_overlap 50, got %d", cfg.RAG.Indexer.ChunkOverlap)
	}
	if len(cfg.RAG.Indexer.ExcludePatterns) == 0 {
		t.Error("expected non-empty default exclude patterns")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "ollama"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestValidate_InvalidTemperature(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Temperature = 3.0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for temperature > 2")
	}

	cfg.LLM.Temperature = -0.1
	if err := Validate(cfg); err == nil {
		t.Error("expected error for negative temperature")
	}
}

func TestValidate_InvalidChunkOverlap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RAG.Indexer.ChunkOverlap = cfg.RAG.Indexer.ChunkSize
	if err := Validate(cfg); err == nil {
		t.Error("expected error when chunk_overlap >= chunk_size")
	}
}

func TestValidate_GrpcModeRequiresURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.StorageMode.Mode = "grpc"
	cfg.Storage.StorageMode.URL = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected error for grpc mode without url")
	}

	cfg.Storage.StorageMode.URL = "localhost:6334"
	if err := Validate(cfg); err != nil {
		t.Errorf("grpc mode with url should be valid: %v", err)
	}
}

func TestValidate_InvalidStorageMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.StorageMode.Mode = "sqlite"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported storage mode")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "bogus"
	cfg.LLM.Temperature = 9.0
	cfg.Storage.TopK = -1
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "llm.provider") || !strings.Contains(msg, "llm.temperature") || !strings.Contains(msg, "storage.top_k") {
		t.Errorf("expected all three errors to be reported, got: %s", msg)
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${NONEXISTENT_VAR:-fallback}", "fallback"},
		{"${NONEXISTENT_VAR}", "${NONEXISTENT_VAR}"},
		{"no-vars-here", "no-vars-here"},
		{"${TEST_VAR:-default}", "hello"},
	}

	for _, tt := range tests {
		result := InterpolateEnv(tt.input)
		if result != tt.expected {
			t.Errorf("InterpolateEnv(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
system_prompt: "custom prompt"
llm:
  provider: remote-api
  model: gpt-4o-mini
  base_url: https://api.example.com/v1
  temperature: 0.2
storage:
  top_k: 10
  vector_db:
    collection_name: my_kb
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "nucleus.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.SystemPrompt != "custom prompt" {
		t.Errorf("expected custom system_prompt, got %s", cfg.SystemPrompt)
	}
	if cfg.LLM.Provider != "remote-api" {
		t.Errorf("expected provider remote-api, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %f", cfg.LLM.Temperature)
	}
	if cfg.Storage.TopK != 10 {
		t.Errorf("expected top_k 10, got %d", cfg.Storage.TopK)
	}
	if cfg.Storage.VectorDB.CollectionName != "my_kb" {
		t.Errorf("expected collection_name my_kb, got %s", cfg.Storage.VectorDB.CollectionName)
	}
}

func TestLoadFromFile_PermissionAlwaysDefault(t *testing.T) {
	// Permission is never read from the file, even if present under an
	// unrecognized key — it's always reset to DefaultPermission.
	content := `
permission:
  read: false
  write: false
  command: false
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "nucleus.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if !cfg.Permission.Read || !cfg.Permission.Write || !cfg.Permission.Command {
		t.Errorf("expected permission to stay at defaults regardless of file content, got %+v", cfg.Permission)
	}
}

func TestLoadFromFile_WithEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_BASE_URL", "https://hosted.example.com/v1")

	content := `
llm:
  base_url: ${TEST_BASE_URL}
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "nucleus.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.LLM.BaseURL != "https://hosted.example.com/v1" {
		t.Errorf("expected interpolated base_url, got %s", cfg.LLM.BaseURL)
	}
}

func TestLoadFromFile_InvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/nucleus.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "nucleus.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_InvalidValues(t *testing.T) {
	content := `
llm:
  temperature: 9.0
storage:
  top_k: -1
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "nucleus.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFromFile_DefaultsPreserved(t *testing.T) {
	content := `
llm:
  temperature: 0.9
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "nucleus.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.LLM.Temperature != 0.9 {
		t.Errorf("expected temperature 0.9, got %f", cfg.LLM.Temperature)
	}
	if cfg.Storage.TopK != 5 {
		t.Errorf("expected default top_k preserved at 5, got %d", cfg.Storage.TopK)
	}
	if cfg.Storage.VectorDB.CollectionName != "nucleus_kb" {
		t.Errorf("expected default collection_name preserved, got %s", cfg.Storage.VectorDB.CollectionName)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.LLM.Provider != "quantized" {
		t.Errorf("expected default provider when file is missing, got %s", cfg.LLM.Provider)
	}
}

func TestGenerateTemplate(t *testing.T) {
	tmpl := GenerateTemplate()

	required := []string{
		"system_prompt:",
		"llm:", "provider:", "model:", "temperature:",
		"rag:", "embedding_model:", "indexer:", "chunk_size:",
		"storage:", "storage_mode:", "vector_db:", "collection_name:", "top_k:",
		"personalization:", "learn_from_interactions:",
	}

	for _, s := range required {
		if !strings.Contains(tmpl, s) {
			t.Errorf("template missing %q", s)
		}
	}
}
