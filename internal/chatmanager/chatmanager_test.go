package chatmanager

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cooksey99/nucleus/internal/permission"
	"github.com/Cooksey99/nucleus/internal/plugin"
	"github.com/Cooksey99/nucleus/internal/provider"
)

type scriptedProvider struct {
	turns []provider.ChatResponseChunk
	calls int
}

func (p *scriptedProvider) Chat(ctx context.Context, req provider.ChatRequest, cb provider.StreamCallback) error {
	chunk := p.turns[p.calls]
	p.calls++
	cb(chunk)
	return nil
}
func (p *scriptedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, provider.ErrUnsupported
}
func (p *scriptedProvider) ResetState(ctx context.Context) error { return nil }
func (p *scriptedProvider) Close() error                        { return nil }

type echoPlugin struct{}

func (echoPlugin) Name() string        { return "echo" }
func (echoPlugin) Description() string { return "echoes input" }
func (echoPlugin) ParameterSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (echoPlugin) RequiredPermission() permission.Permission { return permission.None }
func (echoPlugin) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return "echoed", nil
}

func TestQueryNoToolCalls(t *testing.T) {
	prov := &scriptedProvider{turns: []provider.ChatResponseChunk{
		{Content: "hello", Done: false},
	}}
	cm := New(DefaultConfig(), prov, plugin.NewRegistry(permission.None), nil, nil, nil)

	out, err := cm.Query(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected output: %q", out)
	}
	if cm.State() != StateDone {
		t.Fatalf("expected Done state, got %v", cm.State())
	}
}

func TestQueryToolCallRoundTrip(t *testing.T) {
	prov := &scriptedProvider{turns: []provider.ChatResponseChunk{
		{Done: true, ToolCalls: []provider.ToolCall{{ID: "1", Name: "echo", Arguments: []byte(`{}`)}}},
		{Content: "done after tool", Done: false},
	}}
	registry := plugin.NewRegistry(permission.All)
	registry.Register(echoPlugin{})

	cm := New(DefaultConfig(), prov, registry, nil, nil, nil)
	out, err := cm.Query(context.Background(), "use the tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done after tool" {
		t.Fatalf("unexpected output: %q", out)
	}
	if prov.calls != 2 {
		t.Fatalf("expected 2 provider turns, got %d", prov.calls)
	}
}

type alwaysToolProvider struct{}

func (alwaysToolProvider) Chat(ctx context.Context, req provider.ChatRequest, cb provider.StreamCallback) error {
	cb(provider.ChatResponseChunk{Done: true, ToolCalls: []provider.ToolCall{{ID: "1", Name: "echo", Arguments: []byte(`{}`)}}})
	return nil
}
func (alwaysToolProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, provider.ErrUnsupported
}
func (alwaysToolProvider) ResetState(ctx context.Context) error { return nil }
func (alwaysToolProvider) Close() error                        { return nil }

func TestQueryExceedsMaxToolRounds(t *testing.T) {
	registry := plugin.NewRegistry(permission.All)
	registry.Register(echoPlugin{})

	cfg := DefaultConfig()
	cfg.MaxToolRounds = 2
	cm := New(cfg, alwaysToolProvider{}, registry, nil, nil, nil)

	_, err := cm.Query(context.Background(), "loop forever", nil)
	if err == nil {
		t.Fatal("expected error for exceeding max tool rounds")
	}
}

func TestQueryPersistsConversationWhenEnabled(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "nested", "history.ndjson")

	prov := &scriptedProvider{turns: []provider.ChatResponseChunk{
		{Content: "hi there", Done: false},
	}}
	cfg := DefaultConfig()
	cfg.SaveConversations = true
	cfg.ChatHistoryPath = historyPath

	cm := New(cfg, prov, plugin.NewRegistry(permission.None), nil, nil, nil)
	if _, err := cm.Query(context.Background(), "hello", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(historyPath)
	if err != nil {
		t.Fatalf("expected history file to exist: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one history line")
	}
	var rec historyRecord
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal history record: %v", err)
	}
	if rec.User != "hello" || rec.Assistant != "hi there" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if scanner.Scan() {
		t.Fatal("expected exactly one history line")
	}
}

func TestQueryDoesNotPersistWhenDisabled(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "history.ndjson")

	prov := &scriptedProvider{turns: []provider.ChatResponseChunk{
		{Content: "hi there", Done: false},
	}}
	cfg := DefaultConfig()
	cfg.ChatHistoryPath = historyPath

	cm := New(cfg, prov, plugin.NewRegistry(permission.None), nil, nil, nil)
	if _, err := cm.Query(context.Background(), "hello", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(historyPath); !os.IsNotExist(err) {
		t.Fatalf("expected no history file, stat err: %v", err)
	}
}
