package provider

import (
	"context"
	"testing"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/permission"
	"github.com/Cooksey99/nucleus/internal/plugin"
)

type stubProvider struct{}

func (stubProvider) Chat(ctx context.Context, request ChatRequest, callback StreamCallback) error {
	callback(ChatResponseChunk{Content: "ok", Done: true})
	return nil
}
func (stubProvider) Embed(ctx context.Context, text string) ([]float32, error) { return nil, ErrUnsupported }
func (stubProvider) ResetState(ctx context.Context) error                     { return nil }
func (stubProvider) Close() error                                             { return nil }

func TestFactoryUnknownBackend(t *testing.T) {
	_, err := Factory(context.Background(), Config{Provider: "nonexistent"}, plugin.NewRegistry(permission.All))
	if err == nil {
		t.Fatal("expected error for unknown provider backend")
	}
	kind, ok := nucleuserr.KindOf(err)
	if !ok || kind != nucleuserr.KindConfig {
		t.Fatalf("expected KindConfig, got %v (ok=%v)", kind, ok)
	}
}

func TestFactoryDispatchesRegisteredBackend(t *testing.T) {
	RegisterBackend("stub-test", func(ctx context.Context, cfg Config, registry *plugin.Registry) (Provider, error) {
		return stubProvider{}, nil
	})

	prov, err := Factory(context.Background(), Config{Provider: "stub-test"}, plugin.NewRegistry(permission.All))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov == nil {
		t.Fatal("expected non-nil provider")
	}
}
