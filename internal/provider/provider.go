// Package provider defines the uniform streaming chat contract every local
// inference backend implements, and a Factory that resolves a configured
// backend name to a concrete Provider.
package provider

import (
	"context"
	"fmt"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/plugin"
)

// Message is one turn in a chat history. Role is "system", "user",
// "assistant", or "tool".
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Tool is the provider-facing view of a registered plugin: name,
// description, and its JSON Schema parameters.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is a model-emitted request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments []byte
}

// ChatRequest is the uniform request shape across backends.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	StopStrings []string
	Tools       []Tool
}

// ChatResponseChunk is one streamed unit of a chat turn. Non-terminal
// chunks (Done == false) carry a content delta; the terminal chunk
// (Done == true) may carry ToolCalls instead of (or alongside) a final
// content delta.
type ChatResponseChunk struct {
	Content   string
	Done      bool
	ToolCalls []ToolCall
}

// StreamCallback receives each chunk of a chat turn in order.
type StreamCallback func(ChatResponseChunk)

// Provider is the uniform contract every inference backend implements.
type Provider interface {
	// Chat emits zero or more non-terminal chunks followed by exactly one
	// terminal chunk through callback, then returns. A returned error means
	// the turn produced no usable terminal chunk.
	Chat(ctx context.Context, request ChatRequest, callback StreamCallback) error

	// Embed returns a vector embedding for text, or ErrUnsupported (a
	// nucleuserr.KindEmbedding error) when the backend has no embedding model.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ResetState begins a fresh conversation for backends that hold
	// per-conversation state (the native backend); a no-op for stateless
	// backends.
	ResetState(ctx context.Context) error

	// Close releases any resources (native model handle, HTTP clients).
	Close() error
}

// ErrUnsupported is returned by Embed on backends with no embedding model.
var ErrUnsupported = nucleuserr.New(nucleuserr.KindEmbedding, "operation not supported by this provider backend")

// Config is the backend-agnostic subset of configuration the factory needs;
// each backend package defines its own richer Config consumed after
// construction-time dispatch.
type Config struct {
	Provider string // "native", "quantized", or "remote-api"
	Model    string
	BaseURL  string

	Temperature   float32
	ContextLength int

	// NativeInputName / NativeOutputName name the native backend's tensor
	// I/O bindings; unused by other backends.
	NativeInputName  string
	NativeOutputName string
}

// Constructor builds a Provider from Config and a plugin registry (used by
// backends that support tool-calling). Backend packages register their
// constructor via RegisterBackend in an init func to avoid a dependency
// cycle between provider and its native/quantized subpackages.
type Constructor func(ctx context.Context, cfg Config, registry *plugin.Registry) (Provider, error)

var backends = map[string]Constructor{}

// RegisterBackend makes a backend constructor available to Factory under
// name. Called from each backend subpackage's init().
func RegisterBackend(name string, ctor Constructor) {
	backends[name] = ctor
}

// Factory returns the Provider instance for the configured backend name.
// An unknown name is a configuration error, per the spec's provider
// factory contract.
func Factory(ctx context.Context, cfg Config, registry *plugin.Registry) (Provider, error) {
	ctor, ok := backends[cfg.Provider]
	if !ok {
		return nil, nucleuserr.New(nucleuserr.KindConfig, fmt.Sprintf("unknown provider backend %q (want native, quantized, or remote-api)", cfg.Provider))
	}
	return ctor(ctx, cfg, registry)
}
