package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cooksey99/nucleus/internal/provider"
)

func TestRequestJSONRoundTrip(t *testing.T) {
	req := Request{
		Type:    RequestChat,
		Content: "hello",
		PWD:     "/tmp/project",
		History: []provider.Message{{Role: "user", Content: "prior"}},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Request
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != req.Type || got.Content != req.Content || got.PWD != req.PWD {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Content != "prior" {
		t.Fatalf("history not preserved: %+v", got.History)
	}
}

func TestStreamChunkOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(StreamChunk{Type: ChunkDone})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["content"]; ok {
		t.Errorf("expected content to be omitted, got %v", raw)
	}
	if _, ok := raw["error"]; ok {
		t.Errorf("expected error to be omitted, got %v", raw)
	}
}

func TestServeHandlesOneConnection(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "test.sock")

	handler := func(ctx context.Context, req Request, send func(StreamChunk)) {
		send(StreamChunk{Type: ChunkChunk, Content: "echo: " + req.Content})
		send(StreamChunk{Type: ChunkDone})
	}

	srv := New(endpoint, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(ctx) }()

	conn := dialWithRetry(t, endpoint)
	defer conn.Close()

	reqBytes, err := json.Marshal(Request{Type: RequestChat, Content: "hi"})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	reqBytes = append(reqBytes, '\n')
	if _, err := conn.Write(reqBytes); err != nil {
		t.Fatalf("write request: %v", err)
	}

	reader := bufio.NewReader(conn)

	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	var chunk StreamChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		t.Fatalf("unmarshal chunk: %v", err)
	}
	if chunk.Type != ChunkChunk || chunk.Content != "echo: hi" {
		t.Fatalf("unexpected first chunk: %+v", chunk)
	}

	line, err = reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read done: %v", err)
	}
	if err := json.Unmarshal(line, &chunk); err != nil {
		t.Fatalf("unmarshal done chunk: %v", err)
	}
	if chunk.Type != ChunkDone {
		t.Fatalf("expected done chunk, got %+v", chunk)
	}

	cancel()
	select {
	case err := <-serveErrCh:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not shut down after context cancellation")
	}
}

func TestServeRejectsMalformedRequest(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "malformed.sock")
	srv := New(endpoint, func(ctx context.Context, req Request, send func(StreamChunk)) {
		t.Fatal("handler should not run for malformed input")
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn := dialWithRetry(t, endpoint)
	defer conn.Close()

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var chunk StreamChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if chunk.Type != ChunkError {
		t.Fatalf("expected error chunk, got %+v", chunk)
	}
}
