// Package config provides configuration file support for Nucleus.
// It handles loading, validation, and environment variable interpolation
// for nucleus.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the full Nucleus configuration: the LLM model itself,
// plus the features and customization around it.
type Config struct {
	SystemPrompt    string                `mapstructure:"system_prompt"`
	LLM             LLMConfig             `mapstructure:"llm"`
	RAG             RAGConfig             `mapstructure:"rag"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Personalization PersonalizationConfig `mapstructure:"personalization"`

	// Permission is never read from the config file — Load always sets it
	// to DefaultPermission and it is held in memory only, so that a config
	// file can never change what the assistant is allowed to do.
	Permission Permission `mapstructure:"-"`
}

// Permission controls which capabilities plugins are allowed to exercise.
// Granting a permission here does not mean it will automatically be used —
// but if false, the functionality does not exist to begin with.
type Permission struct {
	Read    bool `mapstructure:"read"`
	Write   bool `mapstructure:"write"`
	Command bool `mapstructure:"command"`
}

// DefaultPermission returns the Permission granted when none is supplied
// explicitly.
func DefaultPermission() Permission {
	return Permission{Read: true, Write: true, Command: true}
}

// LLMConfig configures the AI model backend.
type LLMConfig struct {
	// Provider selects the backend: "remote-api", "quantized", or "native".
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	ContextLength int   `mapstructure:"context_length"`

	// NativeInputName/NativeOutputName name the input/output tensors for
	// the native accelerator backend.
	NativeInputName  string `mapstructure:"native_input_name"`
	NativeOutputName string `mapstructure:"native_output_name"`
}

// RAGConfig configures retrieval-augmented generation: embedding settings
// and the indexer's chunking/filtering behavior.
type RAGConfig struct {
	EmbeddingModel EmbeddingModelConfig `mapstructure:"embedding_model"`
	Indexer        IndexerConfig        `mapstructure:"indexer"`
}

// EmbeddingModelConfig names and sizes the embedding model used to vectorize
// indexed content and queries.
type EmbeddingModelConfig struct {
	Name          string `mapstructure:"name"`
	EmbeddingDim  int    `mapstructure:"embedding_dim"`
}

// IndexerConfig configures file indexing behavior.
type IndexerConfig struct {
	// Extensions restricts indexing to these file extensions. Empty means
	// index every readable text file.
	Extensions []string `mapstructure:"extensions"`

	// ExcludePatterns skips any path containing one of these substrings.
	ExcludePatterns []string `mapstructure:"exclude_patterns"`

	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// StorageConfig configures all persistence: chat history, tool state, and
// the vector database.
type StorageConfig struct {
	ChatHistoryPath string          `mapstructure:"chat_history_path"`
	ToolStatePath   string          `mapstructure:"tool_state_path"`
	StorageMode     StorageMode     `mapstructure:"storage_mode"`
	VectorDB        VectorDBConfig  `mapstructure:"vector_db"`
	TopK            int             `mapstructure:"top_k"`
}

// StorageMode selects between the embedded (in-process) vector store and a
// gRPC-connected external one.
type StorageMode struct {
	Mode string `mapstructure:"mode"` // "embedded" or "grpc"
	Path string `mapstructure:"path"` // embedded mode
	URL  string `mapstructure:"url"`  // grpc mode
}

// VectorDBConfig names the collection/index holding stored vectors,
// provider-agnostic across embedded and gRPC-backed stores.
type VectorDBConfig struct {
	CollectionName string `mapstructure:"collection_name"`
}

// PersonalizationConfig configures learning from interactions and
// conversation persistence.
type PersonalizationConfig struct {
	LearnFromInteractions bool   `mapstructure:"learn_from_interactions"`
	SaveConversations     bool   `mapstructure:"save_conversations"`
	UserPreferencesPath   string `mapstructure:"user_preferences_path"`
}

// DefaultConfig returns a Config with sensible defaults, matching the
// runtime's own built-in defaults so that an absent config file still
// produces a fully usable assistant.
func DefaultConfig() *Config {
	return &Config{
		SystemPrompt: "You are a helpful AI assistant specializing in programming and development tasks.",
		LLM: LLMConfig{
			Provider:         "quantized",
			Model:            "MaziyarPanahi/Qwen3-0.6B-GGUF:Qwen3-0.6B.Q4_K_M.gguf",
			BaseURL:          "http://localhost:11434",
			Temperature:      0.6,
			ContextLength:    32768,
			NativeInputName:  "input",
			NativeOutputName: "output",
		},
		RAG: RAGConfig{
			EmbeddingModel: EmbeddingModelConfig{
				Name:         "nomic-embed-text-v1.5",
				EmbeddingDim: 768,
			},
			Indexer: IndexerConfig{
				Extensions:      nil,
				ExcludePatterns: defaultExcludePatterns(),
				ChunkSize:       512,
				ChunkOverlap:    50,
			},
		},
		Storage: StorageConfig{
			ChatHistoryPath: "./data/history",
			ToolStatePath:   "./data/tool_state",
			StorageMode: StorageMode{
				Mode: "embedded",
				Path: "./data/nucleus_vectordb",
			},
			VectorDB: VectorDBConfig{
				CollectionName: "nucleus_kb",
			},
			TopK: 5,
		},
		Personalization: PersonalizationConfig{
			LearnFromInteractions: true,
			SaveConversations:     true,
			UserPreferencesPath:   "./data/preferences.json",
		},
		Permission: DefaultPermission(),
	}
}

// defaultExcludePatterns lists the substrings skipped by default when
// walking a directory to index: build artifacts, version control,
// package managers, and temp files.
func defaultExcludePatterns() []string {
	return []string{
		".git", "node_modules", "target", "dist", "build",
		".cache", "vendor", "__pycache__", ".venv", ".DS_Store",
	}
}

// Load reads configuration from the given viper instance and returns a
// validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax. Permission is always reset to
// DefaultPermission after unmarshalling — a config file can never grant
// itself permissions.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	interpolateConfig(cfg)
	cfg.Permission = DefaultPermission()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// LoadOrDefault loads the config file at path, returning DefaultConfig
// unmodified if the file is missing or fails to load or validate.
func LoadOrDefault(path string) *Config {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// Validate checks the configuration for errors and returns a descriptive
// error if any field is invalid.
func Validate(cfg *Config) error {
	var errs []string

	validProviders := map[string]bool{"remote-api": true, "quantized": true, "native": true}
	if !validProviders[cfg.LLM.Provider] {
		errs = append(errs, fmt.Sprintf("llm.provider: unsupported provider %q (supported: remote-api, quantized, native)", cfg.LLM.Provider))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("llm.temperature: must be between 0 and 2, got %f", cfg.LLM.Temperature))
	}
	if cfg.LLM.ContextLength < 0 {
		errs = append(errs, "llm.context_length: must be non-negative")
	}

	if cfg.RAG.EmbeddingModel.EmbeddingDim < 0 {
		errs = append(errs, "rag.embedding_model.embedding_dim: must be non-negative")
	}
	if cfg.RAG.Indexer.ChunkSize <= 0 {
		errs = append(errs, "rag.indexer.chunk_size: must be positive")
	}
	if cfg.RAG.Indexer.ChunkOverlap < 0 || cfg.RAG.Indexer.ChunkOverlap >= cfg.RAG.Indexer.ChunkSize {
		errs = append(errs, "rag.indexer.chunk_overlap: must be non-negative and smaller than chunk_size")
	}

	validModes := map[string]bool{"embedded": true, "grpc": true}
	if !validModes[cfg.Storage.StorageMode.Mode] {
		errs = append(errs, fmt.Sprintf("storage.storage_mode.mode: unsupported mode %q (supported: embedded, grpc)", cfg.Storage.StorageMode.Mode))
	}
	if cfg.Storage.StorageMode.Mode == "grpc" && cfg.Storage.StorageMode.URL == "" {
		errs = append(errs, "storage.storage_mode.url: required when mode is grpc")
	}
	if cfg.Storage.TopK <= 0 {
		errs = append(errs, "storage.top_k: must be positive")
	}
	if cfg.Storage.VectorDB.CollectionName == "" {
		errs = append(errs, "storage.vector_db.collection_name: must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to every
// string field that plausibly carries a secret or environment-specific
// value (API endpoints, paths, the model reference).
func interpolateConfig(cfg *Config) {
	cfg.SystemPrompt = InterpolateEnv(cfg.SystemPrompt)
	cfg.LLM.Provider = InterpolateEnv(cfg.LLM.Provider)
	cfg.LLM.Model = InterpolateEnv(cfg.LLM.Model)
	cfg.LLM.BaseURL = InterpolateEnv(cfg.LLM.BaseURL)
	cfg.Storage.ChatHistoryPath = InterpolateEnv(cfg.Storage.ChatHistoryPath)
	cfg.Storage.ToolStatePath = InterpolateEnv(cfg.Storage.ToolStatePath)
	cfg.Storage.StorageMode.Path = InterpolateEnv(cfg.Storage.StorageMode.Path)
	cfg.Storage.StorageMode.URL = InterpolateEnv(cfg.Storage.StorageMode.URL)
	cfg.Storage.VectorDB.CollectionName = InterpolateEnv(cfg.Storage.VectorDB.CollectionName)
	cfg.Personalization.UserPreferencesPath = InterpolateEnv(cfg.Personalization.UserPreferencesPath)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to a
// nucleus.yaml file.
func GenerateTemplate() string {
	return `# Nucleus Configuration

system_prompt: "You are a helpful AI assistant specializing in programming and development tasks."

llm:
  provider: quantized    # remote-api, quantized, or native
  model: "MaziyarPanahi/Qwen3-0.6B-GGUF:Qwen3-0.6B.Q4_K_M.gguf"
  base_url: "http://localhost:11434"
  temperature: 0.6
  context_length: 32768
  native_input_name: input
  native_output_name: output

rag:
  embedding_model:
    name: nomic-embed-text-v1.5
    embedding_dim: 768
  indexer:
    extensions: []        # empty means index all readable text files
    exclude_patterns:
      - .git
      - node_modules
      - target
      - dist
      - build
      - .cache
      - vendor
      - __pycache__
      - .venv
      - .DS_Store
    chunk_size: 512
    chunk_overlap: 50

storage:
  chat_history_path: ./data/history
  tool_state_path: ./data/tool_state
  storage_mode:
    mode: embedded       # embedded or grpc
    path: ./data/nucleus_vectordb
    url: ""              # required when mode is grpc
  vector_db:
    collection_name: nucleus_kb
  top_k: 5

personalization:
  learn_from_interactions: true
  save_conversations: true
  user_preferences_path: ./data/preferences.json
`
}
