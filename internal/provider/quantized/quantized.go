// Package quantized implements the in-process quantized-model backend: it
// resolves a model reference (local file, HuggingFace GGUF, or bare repo
// id), talks to the local inference server hosting that model over its
// OpenAI-compatible chat completions endpoint, and bounds every turn with
// a timeout distinct from ordinary runtime errors.
package quantized

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/plugin"
	"github.com/Cooksey99/nucleus/internal/provider"
)

func init() {
	provider.RegisterBackend("quantized", New)
}

const (
	defaultBaseURL  = "http://127.0.0.1:8080/v1"
	defaultTimeout  = 60 * time.Second
	defaultMaxToken = 512
)

// ModelRef describes how a configured model string resolves, mirroring
// the three forms the reference implementation recognizes.
type ModelRef struct {
	// Kind is one of "local_gguf", "hf_gguf", or "hf_repo".
	Kind     string
	LocalDir string // for local_gguf
	HFRepo   string // for hf_gguf and hf_repo
	HFFile   string // for hf_gguf only
}

// ResolveModelRef classifies a configured model string:
//   - a path ending in .gguf that exists on disk: a local quantized file
//   - "repo/name:file.gguf": a pre-quantized file on a HuggingFace repo
//   - anything else: a bare repo id that triggers on-load quantization
func ResolveModelRef(model string) ModelRef {
	if strings.HasSuffix(model, ".gguf") {
		if _, err := os.Stat(model); err == nil {
			return ModelRef{Kind: "local_gguf", LocalDir: model}
		}
	}
	if strings.Contains(model, ":") && strings.HasSuffix(model, ".gguf") {
		parts := strings.SplitN(model, ":", 2)
		return ModelRef{Kind: "hf_gguf", HFRepo: parts[0], HFFile: parts[1]}
	}
	return ModelRef{Kind: "hf_repo", HFRepo: model}
}

// Provider talks to a locally hosted quantized model over its
// OpenAI-compatible endpoint.
type Provider struct {
	client    openai.Client
	model     string
	ref       ModelRef
	registry  *plugin.Registry
	temperature float32
}

// New resolves cfg.Model and returns a Provider pointed at the configured
// local endpoint (cfg.BaseURL, default http://127.0.0.1:8080/v1). It
// matches provider.Constructor for registration with the shared factory.
func New(ctx context.Context, cfg provider.Config, registry *plugin.Registry) (provider.Provider, error) {
	ref := ResolveModelRef(cfg.Model)
	switch ref.Kind {
	case "local_gguf":
		slog.Info("quantized provider: resolved local GGUF file", "path", ref.LocalDir)
	case "hf_gguf":
		slog.Info("quantized provider: resolved pre-quantized HuggingFace GGUF", "repo", ref.HFRepo, "file", ref.HFFile)
	case "hf_repo":
		slog.Warn("quantized provider: bare repo id will trigger on-load quantization, this may be slow", "repo", ref.HFRepo)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("not-needed"),
	)

	return &Provider{
		client:      client,
		model:       cfg.Model,
		ref:         ref,
		registry:    registry,
		temperature: cfg.Temperature,
	}, nil
}

// ResetState is a no-op: the quantized backend is stateless between turns
// at the Go layer — the local server holds no cross-turn state Nucleus
// needs to reset.
func (p *Provider) ResetState(ctx context.Context) error { return nil }

// Close releases no resources; the OpenAI client owns no persistent
// connections beyond its HTTP transport.
func (p *Provider) Close() error { return nil }

// Embed is unsupported: chat-tuned quantized models served over the chat
// completions endpoint expose no embeddings endpoint in this setup.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, provider.ErrUnsupported
}

// Chat sends request to the local server, converting any registered
// plugins to tool definitions with an "auto" tool-choice policy, and
// streams the response through callback. The whole turn is bounded by a
// 60-second timeout, surfaced as a KindProviderTimeout error distinct from
// ordinary runtime failures. Tool calls in the terminal chunk are
// returned to the caller (the chat manager) for dispatch and a follow-up
// turn — the local server's streaming protocol offers no mid-generation
// synchronous callback the way an in-process runtime would.
func (p *Provider) Chat(ctx context.Context, request provider.ChatRequest, callback provider.StreamCallback) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toOpenAIMessages(request.Messages),
	}
	if request.Temperature > 0 {
		params.Temperature = openai.Float(float64(request.Temperature))
	}
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxToken
	}
	params.MaxTokens = openai.Int(int64(maxTokens))

	if len(request.Tools) > 0 {
		params.Tools = toOpenAITools(request.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				callback(provider.ChatResponseChunk{Content: delta, Done: false})
			}
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nucleuserr.Wrap(nucleuserr.KindProviderTimeout, fmt.Sprintf("chat turn timed out after %s", defaultTimeout), err)
		}
		return nucleuserr.Wrap(nucleuserr.KindProviderRuntime, "quantized backend streaming failed", err)
	}

	var toolCalls []provider.ToolCall
	if len(acc.Choices) > 0 {
		for _, tc := range acc.Choices[0].Message.ToolCalls {
			toolCalls = append(toolCalls, provider.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}

	callback(provider.ChatResponseChunk{Done: true, ToolCalls: toolCalls})
	return nil
}

func toOpenAIMessages(messages []provider.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toOpenAITools(tools []provider.Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params := shared.FunctionParameters{}
		if raw, err := json.Marshal(t.Parameters); err == nil {
			_ = json.Unmarshal(raw, &params)
		}
		out = append(out, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  params,
		}))
	}
	return out
}

// SpecsToTools converts a plugin registry's tool specs into the
// provider-neutral Tool shape request.Tools expects.
func SpecsToTools(specs []plugin.Spec) []provider.Tool {
	out := make([]provider.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, provider.Tool{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return out
}
