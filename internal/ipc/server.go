package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
)

// chunkBufferSize bounds the per-connection channel linking the handler
// (producer) to the writer (consumer), per the runtime's backpressure
// guidance.
const chunkBufferSize = 1024

// Handler processes one Request and emits StreamChunks through send until
// it has emitted exactly one terminal chunk (Done or Error), then returns.
// Handler implementations must respect ctx cancellation (dropped client
// connection or server shutdown) by aborting generation best-effort.
type Handler func(ctx context.Context, req Request, send func(StreamChunk))

// Server listens on the local IPC endpoint and dispatches each connection
// to Handler.
type Server struct {
	endpoint string
	handler  Handler
	logger   *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// New constructs a Server bound to endpoint (empty string selects the
// platform default: the Unix socket path or Windows pipe name).
func New(endpoint string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{endpoint: endpoint, handler: handler, logger: logger}
}

// Serve binds the endpoint and accepts connections until ctx is
// cancelled, at which point it stops accepting new connections, waits for
// in-flight handlers to drain, and removes the endpoint artifact.
func (s *Server) Serve(ctx context.Context) error {
	l, err := listen(s.endpoint)
	if err != nil {
		return nucleuserr.Wrap(nucleuserr.KindIO, "bind ipc endpoint", err)
	}
	s.listener = l
	defer cleanup(s.endpoint)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	s.logger.Info("ipc: listening", "endpoint", s.endpoint)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("ipc: accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.logger.Info("ipc: draining in-flight connections")
	s.wg.Wait()
	return nil
}

// handleConnection reads one request, then splits request handling and
// chunk writing into cooperating goroutines linked by a channel bounded
// at chunkBufferSize, the handler producing and the writer consuming.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		s.logger.Warn("ipc: read request failed", "error", err)
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeChunk(conn, StreamChunk{Type: ChunkError, Error: "malformed request: " + err.Error()})
		return
	}

	chunks := make(chan StreamChunk, chunkBufferSize)
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		for chunk := range chunks {
			if err := s.writeChunk(conn, chunk); err != nil {
				s.logger.Debug("ipc: write failed, client likely disconnected", "error", err)
				cancel()
				return
			}
		}
	}()

	s.handler(connCtx, req, func(c StreamChunk) {
		select {
		case chunks <- c:
		case <-connCtx.Done():
		}
	})
	close(chunks)
	writerWG.Wait()
}

func (s *Server) writeChunk(conn net.Conn, chunk StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}
