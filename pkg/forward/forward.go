// Package forward implements the byte-pump stage of a proxied session
// (spec.md §4.K): once both sides have finished protocol negotiation
// and flipped to raw mode, bytes are pumped bidirectionally with as
// few copies as the platform allows.
package forward

import (
	"io"
	"net"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// bufferSize is the userspace fallback copy buffer (spec.md §4.K: "an
// 8KiB buffered-copy fallback for platforms without splice").
const bufferSize = 8 * 1024

// Stats tracks bytes moved in each direction; Pump returns it once both
// directions have finished.
type Stats struct {
	ClientToServer atomic.Int64
	ServerToClient atomic.Int64
}

// Pump bidirectionally copies bytes between client and server and
// returns once both directions have ended. The first direction to end
// sets closed and half-closes its destination when that conn has a
// CloseWrite method. Pump closes neither conn, and setting closed does
// not interrupt a copy already in progress; it is read only after a
// copy has ended.
func Pump(client, server net.Conn, closed *atomic.Bool) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		n := copyDirection(server, client, closed)
		stats.ClientToServer.Store(n)
	}()
	go func() {
		defer wg.Done()
		n := copyDirection(client, server, closed)
		stats.ServerToClient.Store(n)
	}()

	wg.Wait()
	return stats
}

// copyDirection copies from src to dst until EOF/error, preferring
// splice on platforms that support it (see forward_linux.go); other
// platforms use copyDirectionFallback via the same symbol, resolved
// per build tag.
func copyDirection(dst io.Writer, src io.Reader, closed *atomic.Bool) int64 {
	n, err := copyWithSplice(dst, src)
	if closed.Load() {
		return n
	}
	if err != nil && err != io.EOF {
		zap.L().Debug("forward: copy ended", zap.Error(err))
	}
	closed.Store(true)
	if tc, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	}
	return n
}

func copyDirectionFallback(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, bufferSize)
	return io.CopyBuffer(dst, src, buf)
}
