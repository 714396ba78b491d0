// Package chatmanager orchestrates a single logical chat query: assembling
// the message list, optionally injecting retrieved context, invoking the
// provider, and running the bounded tool-call loop until the model
// produces a turn with no further tool calls.
package chatmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Cooksey99/nucleus/internal/embedclient"
	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/plugin"
	"github.com/Cooksey99/nucleus/internal/provider"
	"github.com/Cooksey99/nucleus/internal/vectorstore"
)

// State names the chat manager's position within a turn, matching the
// runtime's Generating -> ToolPending -> ToolExecuting -> Generating ->
// ... -> Done state machine.
type State string

const (
	StateGenerating     State = "generating"
	StateToolPending     State = "tool_pending"
	StateToolExecuting  State = "tool_executing"
	StateDone           State = "done"
)

const defaultMaxToolRounds = 5

// Config configures a ChatManager.
type Config struct {
	SystemPrompt  string
	Temperature   float32
	MaxTokens     int
	TopK          int
	MaxToolRounds int
	RAGEnabled    bool

	// SaveConversations and ChatHistoryPath mirror
	// PersonalizationConfig.SaveConversations and
	// StorageConfig.ChatHistoryPath: when both are set, each completed turn
	// is appended to ChatHistoryPath as one line of NDJSON.
	SaveConversations bool
	ChatHistoryPath   string
}

// DefaultConfig returns sensible defaults (matching the runtime's own
// default top_k of 5).
func DefaultConfig() Config {
	return Config{
		TopK:          5,
		MaxToolRounds: defaultMaxToolRounds,
		Temperature:   0.6,
	}
}

// ChatManager orchestrates turns for a single conversation against one
// provider instance. Per the concurrency model, a ChatManager must not be
// shared across concurrently executing turns for the same provider
// instance — use Registry to keep one ChatManager per conversation.
type ChatManager struct {
	cfg      Config
	prov     provider.Provider
	registry *plugin.Registry
	embedder embedclient.Provider
	store    vectorstore.Store
	logger   *slog.Logger

	mu      sync.Mutex
	history []provider.Message
	state   State
}

// New constructs a ChatManager. embedder and store may be nil, which
// disables RAG context injection regardless of cfg.RAGEnabled.
func New(cfg Config, prov provider.Provider, registry *plugin.Registry, embedder embedclient.Provider, store vectorstore.Store, logger *slog.Logger) *ChatManager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	return &ChatManager{
		cfg:      cfg,
		prov:     prov,
		registry: registry,
		embedder: embedder,
		store:    store,
		logger:   logger,
		state:    StateDone,
	}
}

// SeedHistory replaces the manager's in-memory history with msgs, used
// when a client reconnects and replays prior turns instead of relying on
// the manager's own retained state.
func (cm *ChatManager) SeedHistory(msgs []provider.Message) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.history = append([]provider.Message(nil), msgs...)
}

// Query runs one logical chat turn for userMsg, forwarding streamed deltas
// to onDelta as they arrive, and returns the final concatenated assistant
// text.
func (cm *ChatManager) Query(ctx context.Context, userMsg string, onDelta func(string)) (string, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.state = StateGenerating

	messages, err := cm.buildMessages(ctx, userMsg)
	if err != nil {
		return "", err
	}

	var tools []provider.Tool
	if cm.registry != nil && cm.registry.Count() > 0 {
		for _, s := range cm.registry.Specs() {
			tools = append(tools, provider.Tool{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
		}
	}

	var final strings.Builder
	for round := 0; ; round++ {
		if round > cm.cfg.MaxToolRounds {
			cm.state = StateDone
			return "", nucleuserr.New(nucleuserr.KindProviderRuntime, fmt.Sprintf("exceeded max tool rounds (%d)", cm.cfg.MaxToolRounds))
		}

		req := provider.ChatRequest{
			Messages:    messages,
			Temperature: cm.cfg.Temperature,
			MaxTokens:   cm.cfg.MaxTokens,
			Tools:       tools,
		}

		var turnContent strings.Builder
		var toolCalls []provider.ToolCall
		err := cm.prov.Chat(ctx, req, func(chunk provider.ChatResponseChunk) {
			if chunk.Content != "" {
				turnContent.WriteString(chunk.Content)
				if onDelta != nil {
					onDelta(chunk.Content)
				}
			}
			if chunk.Done {
				toolCalls = chunk.ToolCalls
			}
		})
		if err != nil {
			cm.state = StateDone
			return "", err
		}

		final.WriteString(turnContent.String())
		messages = append(messages, provider.Message{Role: "assistant", Content: turnContent.String(), ToolCalls: toolCalls})

		if len(toolCalls) == 0 {
			cm.state = StateDone
			cm.history = append(cm.history, provider.Message{Role: "user", Content: userMsg}, provider.Message{Role: "assistant", Content: final.String()})
			if cm.cfg.SaveConversations && cm.cfg.ChatHistoryPath != "" {
				rec := historyRecord{Timestamp: time.Now(), User: userMsg, Assistant: final.String()}
				if err := appendHistory(cm.cfg.ChatHistoryPath, rec); err != nil {
					cm.logger.Warn("chatmanager: persist conversation failed", "path", cm.cfg.ChatHistoryPath, "error", err)
				}
			}
			return final.String(), nil
		}

		cm.state = StateToolPending
		cm.state = StateToolExecuting
		for _, tc := range toolCalls {
			out, execErr := cm.registry.Execute(ctx, tc.Name, json.RawMessage(tc.Arguments))
			if execErr != nil {
				out = fmt.Sprintf("error: %v", execErr)
			}
			messages = append(messages, provider.Message{Role: "tool", Content: out, ToolCallID: tc.ID})
		}
		cm.state = StateGenerating
	}
}

// Close releases the manager's provider instance. Callers that construct a
// fresh provider per conversation (the stateful native backend) should call
// this when a conversation is removed from its Registry.
func (cm *ChatManager) Close() error {
	return cm.prov.Close()
}

// State reports the manager's current position in the turn state machine.
func (cm *ChatManager) State() State {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// buildMessages assembles [system_prompt] + history + [user_msg], injecting
// retrieved RAG context into the system message when enabled.
func (cm *ChatManager) buildMessages(ctx context.Context, userMsg string) ([]provider.Message, error) {
	systemPrompt := cm.cfg.SystemPrompt

	if cm.cfg.RAGEnabled && cm.embedder != nil && cm.store != nil && !isCommand(userMsg) {
		queryVec, err := cm.embedder.Embed(ctx, userMsg)
		if err != nil {
			cm.logger.Warn("chatmanager: embed query failed, proceeding without RAG context", "error", err)
		} else {
			topK := cm.cfg.TopK
			if topK <= 0 {
				topK = 5
			}
			results, err := cm.store.Search(ctx, queryVec, topK)
			if err != nil {
				cm.logger.Warn("chatmanager: vector search failed, proceeding without RAG context", "error", err)
			} else if len(results) > 0 {
				var ctxBuilder strings.Builder
				for _, r := range results {
					ctxBuilder.WriteString(r.Document.Content)
					ctxBuilder.WriteString("\n\n")
				}
				systemPrompt = systemPrompt + "\n\nRelevant context:\n" + ctxBuilder.String()
			}
		}
	}

	messages := make([]provider.Message, 0, len(cm.history)+2)
	if systemPrompt != "" {
		messages = append(messages, provider.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, cm.history...)
	messages = append(messages, provider.Message{Role: "user", Content: userMsg})
	return messages, nil
}

// isCommand reports whether msg is an administrative command rather than a
// natural-language query, in which case RAG retrieval is skipped.
func isCommand(msg string) bool {
	return strings.HasPrefix(strings.TrimSpace(msg), "/")
}
