//go:build windows

package ipc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Microsoft/go-winio"
)

func dialWithRetry(t *testing.T, endpoint string) net.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := winio.DialPipeContext(ctx, endpoint)
	if err != nil {
		t.Fatalf("dial %s: %v", endpoint, err)
	}
	return conn
}
