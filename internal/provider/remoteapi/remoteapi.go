// Package remoteapi implements the "remote-api" provider backend: a
// thin client over a remote OpenAI-compatible chat completions endpoint,
// for deployments that prefer a hosted model over a local accelerator or
// quantized file. It shares the OpenAI-compatible wire protocol with the
// quantized backend but requires an API key and has no local model
// resolution step.
package remoteapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/plugin"
	"github.com/Cooksey99/nucleus/internal/provider"
)

func init() {
	provider.RegisterBackend("remote-api", New)
}

const defaultTimeout = 60 * time.Second

// Provider calls a remote OpenAI-compatible chat completions endpoint.
type Provider struct {
	client    openai.Client
	model     string
	timeout   time.Duration
	temperature float32
}

// New builds a Provider from cfg. The API key is read from the
// NUCLEUS_REMOTE_API_KEY environment variable; cfg carries no secret
// material so it can be logged safely.
func New(ctx context.Context, cfg provider.Config, registry *plugin.Registry) (provider.Provider, error) {
	if cfg.BaseURL == "" {
		return nil, nucleuserr.New(nucleuserr.KindConfig, "remote-api provider requires llm.base_url")
	}
	apiKey := os.Getenv("NUCLEUS_REMOTE_API_KEY")
	if apiKey == "" {
		return nil, nucleuserr.New(nucleuserr.KindConfig, "remote-api provider requires NUCLEUS_REMOTE_API_KEY to be set")
	}

	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(apiKey),
	)

	return &Provider{
		client:      client,
		model:       cfg.Model,
		timeout:     defaultTimeout,
		temperature: cfg.Temperature,
	}, nil
}

func (p *Provider) ResetState(ctx context.Context) error { return nil }
func (p *Provider) Close() error                         { return nil }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, provider.ErrUnsupported
}

// Chat mirrors the quantized backend's streaming protocol against a
// remote endpoint instead of a local one, under the same per-turn
// timeout convention.
func (p *Provider) Chat(ctx context.Context, request provider.ChatRequest, callback provider.StreamCallback) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toMessages(request.Messages),
	}
	if request.Temperature > 0 {
		params.Temperature = openai.Float(float64(request.Temperature))
	}
	if len(request.Tools) > 0 {
		params.Tools = toTools(request.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			callback(provider.ChatResponseChunk{Content: chunk.Choices[0].Delta.Content, Done: false})
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nucleuserr.Wrap(nucleuserr.KindProviderTimeout, fmt.Sprintf("remote chat turn timed out after %s", p.timeout), err)
		}
		return nucleuserr.Wrap(nucleuserr.KindProviderRuntime, "remote-api backend streaming failed", err)
	}

	var toolCalls []provider.ToolCall
	if len(acc.Choices) > 0 {
		for _, tc := range acc.Choices[0].Message.ToolCalls {
			toolCalls = append(toolCalls, provider.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: []byte(tc.Function.Arguments)})
		}
	}
	callback(provider.ChatResponseChunk{Done: true, ToolCalls: toolCalls})
	return nil
}

func toMessages(messages []provider.Message) []openai.ChatCompletionMessageParamUnion {
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

func toTools(tools []provider.Tool) []openai.ChatCompletionToolUnionParam {
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
