//go:build windows

package ipc

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

const defaultEndpoint = `\\.\pipe\llm-workspace`

// listen opens a Windows named pipe at endpoint. Named pipes have no
// on-disk artifact to clean up on shutdown, unlike a Unix socket file.
func listen(endpoint string) (net.Listener, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	l, err := winio.ListenPipe(endpoint, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)", // owner-only access
	})
	if err != nil {
		return nil, fmt.Errorf("ipc: listen on pipe %s: %w", endpoint, err)
	}
	return l, nil
}

// cleanup is a no-op on Windows: the named pipe is released when the
// listener closes.
func cleanup(endpoint string) {}
