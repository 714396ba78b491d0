package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Cooksey99/nucleus/internal/chatmanager"
	"github.com/Cooksey99/nucleus/internal/embedclient"
	embedopenai "github.com/Cooksey99/nucleus/internal/embedclient/openai"
	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/permission"
	"github.com/Cooksey99/nucleus/internal/plugin"
	"github.com/Cooksey99/nucleus/internal/provider"
	"github.com/Cooksey99/nucleus/internal/vectorstore"
	"github.com/Cooksey99/nucleus/internal/vectorstore/embedded"
	"github.com/Cooksey99/nucleus/internal/vectorstore/qdrant"
	"github.com/Cooksey99/nucleus/pkg/config"

	// Each backend package registers itself with provider.Factory in its
	// own init(); blank-imported here so every subcommand that builds a
	// Provider sees the full set regardless of which one cfg.LLM.Provider
	// names.
	_ "github.com/Cooksey99/nucleus/internal/provider/native"
	_ "github.com/Cooksey99/nucleus/internal/provider/quantized"
	_ "github.com/Cooksey99/nucleus/internal/provider/remoteapi"
)

// buildPluginRegistry collapses cfg.Permission's three legacy flags onto the
// permission lattice and returns an empty Registry granted that permission.
// No builtin plugins are registered here: the concrete tool implementations
// (file read/write, shell exec) are left to whatever deployment wires them
// in, since only the Plugin interface they satisfy is normative.
func buildPluginRegistry(cfg *config.Config) *plugin.Registry {
	granted := permission.FromFlags(cfg.Permission.Read, cfg.Permission.Write, cfg.Permission.Command)
	return plugin.NewRegistry(granted)
}

// buildProvider resolves cfg.LLM into a concrete provider.Provider through
// the backend registry.
func buildProvider(ctx context.Context, cfg *config.Config, registry *plugin.Registry) (provider.Provider, error) {
	pcfg := provider.Config{
		Provider:         cfg.LLM.Provider,
		Model:            cfg.LLM.Model,
		BaseURL:          cfg.LLM.BaseURL,
		Temperature:      cfg.LLM.Temperature,
		ContextLength:    cfg.LLM.ContextLength,
		NativeInputName:  cfg.LLM.NativeInputName,
		NativeOutputName: cfg.LLM.NativeOutputName,
	}
	prov, err := provider.Factory(ctx, pcfg, registry)
	if err != nil {
		if _, ok := nucleuserr.KindOf(err); ok {
			return nil, err
		}
		return nil, nucleuserr.Wrap(nucleuserr.KindProviderInit, fmt.Sprintf("construct %s provider", cfg.LLM.Provider), err)
	}
	return prov, nil
}

// buildEmbedder constructs the OpenAI-backed embedding client wrapped in an
// in-memory cache, reading the API key from OPENAI_API_KEY.
func buildEmbedder(cfg *config.Config) (embedclient.Provider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, nucleuserr.New(nucleuserr.KindConfig, "OPENAI_API_KEY is required for the embedding client")
	}
	client, err := embedopenai.NewClient(embedopenai.Config{
		APIKey:    apiKey,
		Model:     cfg.RAG.EmbeddingModel.Name,
		Dimension: cfg.RAG.EmbeddingModel.EmbeddingDim,
	})
	if err != nil {
		return nil, nucleuserr.Wrap(nucleuserr.KindEmbedding, "construct embedding client", err)
	}
	return embedclient.NewCached(client, 0), nil
}

// buildStore constructs the configured vector store backend: the embedded
// sqlite store, or a gRPC connection to an external Qdrant server.
func buildStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	dim := cfg.RAG.EmbeddingModel.EmbeddingDim

	switch cfg.Storage.StorageMode.Mode {
	case "embedded":
		store, err := embedded.New(embedded.Config{
			Path:      cfg.Storage.StorageMode.Path,
			Dimension: dim,
		})
		if err != nil {
			return nil, nucleuserr.Wrap(nucleuserr.KindVectorStore, "open embedded vector store", err)
		}
		return store, nil
	case "grpc":
		host, useTLS, port := parseQdrantURL(cfg.Storage.StorageMode.URL)
		store, err := qdrant.New(ctx, qdrant.Config{
			Host:       host,
			Collection: cfg.Storage.VectorDB.CollectionName,
			APIKey:     os.Getenv("NUCLEUS_QDRANT_API_KEY"),
			UseTLS:     useTLS,
			GRPCPort:   port,
			Dimension:  dim,
		})
		if err != nil {
			return nil, nucleuserr.Wrap(nucleuserr.KindVectorStore, "dial qdrant", err)
		}
		return store, nil
	default:
		return nil, nucleuserr.New(nucleuserr.KindConfig, fmt.Sprintf("unsupported storage mode %q", cfg.Storage.StorageMode.Mode))
	}
}

// detectOllama reproduces the original server's fail-fast Ollama check: when
// llm.base_url names a local Ollama server (port 11434, Ollama's default),
// probe its native /api/tags endpoint before constructing the provider, so a
// down Ollama daemon surfaces as a config error at startup instead of on the
// first chat request. Nucleus routes Ollama traffic through the remote-api
// backend's OpenAI-compatible client, so this only applies to that backend.
func detectOllama(cfg *config.Config) error {
	if cfg.LLM.Provider != "remote-api" || cfg.LLM.BaseURL == "" {
		return nil
	}
	if !looksLikeOllama(cfg.LLM.BaseURL) {
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(strings.TrimRight(cfg.LLM.BaseURL, "/") + "/api/tags")
	if err != nil {
		return nucleuserr.Wrap(nucleuserr.KindConfig, fmt.Sprintf("ollama endpoint %s is unreachable", cfg.LLM.BaseURL), err)
	}
	defer resp.Body.Close()
	return nil
}

// looksLikeOllama reports whether baseURL's port is Ollama's default.
func looksLikeOllama(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return u.Port() == "11434"
}

// parseQdrantURL splits storage.storage_mode.url ("grpc://host:port",
// "grpcs://host:port", or a bare "host:port") into the host, TLS flag, and
// port New's Config expects. A bare host with no port leaves port at 0 so
// qdrant.New applies its own default.
func parseQdrantURL(raw string) (host string, useTLS bool, port int) {
	if !strings.Contains(raw, "://") {
		raw = "grpc://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw, false, 0
	}
	useTLS = u.Scheme == "grpcs" || u.Scheme == "https"
	host = u.Hostname()
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	}
	return host, useTLS, port
}

// newChatManagerFactory returns a closure building a fresh ChatManager
// sharing registry/embedder/store, the value an ipc.RequestHandler hands to
// its conversation registry's GetOrCreate — one call per new conversation.
//
// The native backend holds per-conversation token state on the Provider
// instance itself (see provider/native's doc comment), so §5's one-
// provider-per-active-conversation rule is violated if every conversation
// shares prov: two conversations would accumulate into the same state
// buffer. For that backend each call constructs its own Provider instead of
// reusing prov; every other backend is stateless across conversations and
// keeps sharing the single instance built once at startup.
func newChatManagerFactory(ctx context.Context, cfg *config.Config, prov provider.Provider, registry *plugin.Registry, embedder embedclient.Provider, store vectorstore.Store, logger *slog.Logger) func() *chatmanager.ChatManager {
	cmCfg := chatmanager.Config{
		SystemPrompt:      cfg.SystemPrompt,
		Temperature:       cfg.LLM.Temperature,
		TopK:              cfg.Storage.TopK,
		RAGEnabled:        true,
		SaveConversations: cfg.Personalization.SaveConversations,
		ChatHistoryPath:   cfg.Storage.ChatHistoryPath,
	}
	stateful := cfg.LLM.Provider == "native"
	return func() *chatmanager.ChatManager {
		conversationProv := prov
		if stateful {
			fresh, err := buildProvider(ctx, cfg, registry)
			if err != nil {
				logger.Error("chatmanager: construct per-conversation native provider failed, reusing shared instance", "error", err)
			} else {
				conversationProv = fresh
			}
		}
		return chatmanager.New(cmCfg, conversationProv, registry, embedder, store, logger)
	}
}
