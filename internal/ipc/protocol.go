// Package ipc implements the local IPC server: a Unix domain socket (or
// Windows named pipe) speaking newline-delimited JSON, one request per
// connection, streamed response lines terminated by a done or error line.
package ipc

import "github.com/Cooksey99/nucleus/internal/provider"

// RequestType names the administrative or chat operation a Request asks
// for.
type RequestType string

const (
	RequestChat  RequestType = "chat"
	RequestEdit  RequestType = "edit"
	RequestAdd   RequestType = "add"
	RequestIndex RequestType = "index"
	RequestStats RequestType = "stats"
)

// Request is the single newline-terminated JSON object a client sends
// immediately after connecting.
type Request struct {
	Type    RequestType       `json:"type"`
	Content string            `json:"content"`
	PWD     string            `json:"pwd,omitempty"`
	History []provider.Message `json:"history,omitempty"`
}

// ChunkType names the kind of a streamed response line.
type ChunkType string

const (
	ChunkChunk ChunkType = "chunk"
	ChunkDone  ChunkType = "done"
	ChunkError ChunkType = "error"
)

// StreamChunk is one newline-terminated JSON response line. A connection
// emits zero or more ChunkChunk lines followed by exactly one ChunkDone
// or ChunkError line.
type StreamChunk struct {
	Type    ChunkType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}
