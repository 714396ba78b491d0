package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Cooksey99/nucleus/internal/chatmanager"
	"github.com/Cooksey99/nucleus/internal/indexer"
	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/vectorstore"
	"github.com/google/uuid"
)

// RequestHandler dispatches incoming requests by type to the chat
// manager or one of the administrative operations, matching
// server/mod.rs's RequestHandler responsibilities.
type RequestHandler struct {
	conversations *chatmanager.Registry
	newManager    func() *chatmanager.ChatManager
	ix            *indexer.Indexer
	store         vectorstore.Store
	logger        *slog.Logger
}

// NewRequestHandler builds a RequestHandler. newManager constructs a
// fresh ChatManager for a conversation the registry hasn't seen yet — the
// caller closes over the provider, registry, embedder, and store.
func NewRequestHandler(conversations *chatmanager.Registry, newManager func() *chatmanager.ChatManager, ix *indexer.Indexer, store vectorstore.Store, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandler{conversations: conversations, newManager: newManager, ix: ix, store: store, logger: logger}
}

// Handle implements Handler.
func (h *RequestHandler) Handle(ctx context.Context, req Request, send func(StreamChunk)) {
	switch req.Type {
	case RequestChat, RequestEdit:
		h.handleChat(ctx, req, send)
	case RequestAdd:
		h.handleAdd(ctx, req, send)
	case RequestIndex:
		h.handleIndex(ctx, req, send)
	case RequestStats:
		h.handleStats(ctx, req, send)
	default:
		err := nucleuserr.New(nucleuserr.KindUnknownRequestType, fmt.Sprintf("Unknown request type: %s", req.Type))
		send(StreamChunk{Type: ChunkError, Error: err.Error()})
	}
}

func (h *RequestHandler) handleChat(ctx context.Context, req Request, send func(StreamChunk)) {
	// A connection carries one request and its response; the conversation
	// it belongs to is keyed by a fresh ID per connection unless PWD is
	// reused as a stable key by the caller, matching the one-provider-per-
	// active-conversation rule without requiring the client to manage IDs.
	convID := req.PWD
	if convID == "" {
		convID = uuid.NewString()
	}

	cm := h.conversations.GetOrCreate(convID, h.newManager)

	if len(req.History) > 0 {
		cm.SeedHistory(req.History)
	}

	_, err := cm.Query(ctx, req.Content, func(delta string) {
		send(StreamChunk{Type: ChunkChunk, Content: delta})
	})
	if err != nil {
		send(StreamChunk{Type: ChunkError, Error: err.Error()})
		return
	}
	send(StreamChunk{Type: ChunkDone})
}

func (h *RequestHandler) handleAdd(ctx context.Context, req Request, send func(StreamChunk)) {
	if h.ix == nil {
		send(StreamChunk{Type: ChunkError, Error: "indexer not configured"})
		return
	}
	stats, err := h.ix.IndexDirectory(ctx, req.Content, nil)
	if err != nil {
		send(StreamChunk{Type: ChunkError, Error: err.Error()})
		return
	}
	send(StreamChunk{Type: ChunkChunk, Content: formatIndexStats(stats)})
	send(StreamChunk{Type: ChunkDone})
}

func (h *RequestHandler) handleIndex(ctx context.Context, req Request, send func(StreamChunk)) {
	h.handleAdd(ctx, req, send)
}

func (h *RequestHandler) handleStats(ctx context.Context, req Request, send func(StreamChunk)) {
	if h.store == nil {
		send(StreamChunk{Type: ChunkError, Error: "vector store not configured"})
		return
	}
	count, err := h.store.Count(ctx)
	if err != nil {
		send(StreamChunk{Type: ChunkError, Error: err.Error()})
		return
	}
	paths, err := h.store.IndexedPaths(ctx)
	if err != nil {
		send(StreamChunk{Type: ChunkError, Error: err.Error()})
		return
	}
	send(StreamChunk{Type: ChunkChunk, Content: formatStoreStats(count, len(paths))})
	send(StreamChunk{Type: ChunkDone})
}

func formatIndexStats(stats indexer.Stats) string {
	return "files_scanned=" + strconv.Itoa(stats.FilesScanned) +
		" files_indexed=" + strconv.Itoa(stats.FilesIndexed) +
		" chunks_added=" + strconv.Itoa(stats.ChunksAdded)
}

func formatStoreStats(documentCount, indexedSourceCount int) string {
	return "documents=" + strconv.Itoa(documentCount) + " sources=" + strconv.Itoa(indexedSourceCount)
}
