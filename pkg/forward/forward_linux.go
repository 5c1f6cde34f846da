//go:build linux

package forward

import (
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// splicePipeCapacity matches the kernel's default pipe buffer size.
const splicePipeCapacity = 64 * 1024

// copyWithSplice moves bytes from src to dst using splice(2) through
// an intermediate pipe when both ends are raw TCP sockets, avoiding
// the userspace copy a plain io.Copy would incur (spec.md §4.K). It
// falls back to the buffered copy for any other Reader/Writer pair.
func copyWithSplice(dst io.Writer, src io.Reader) (int64, error) {
	srcConn, srcOK := src.(*net.TCPConn)
	dstConn, dstOK := dst.(*net.TCPConn)
	if !srcOK || !dstOK {
		return copyDirectionFallback(dst, src)
	}

	srcFile, err := srcConn.File()
	if err != nil {
		return copyDirectionFallback(dst, src)
	}
	defer srcFile.Close()
	dstFile, err := dstConn.File()
	if err != nil {
		return copyDirectionFallback(dst, src)
	}
	defer dstFile.Close()

	rPipe, wPipe, err := os.Pipe()
	if err != nil {
		return copyDirectionFallback(dst, src)
	}
	defer rPipe.Close()
	defer wPipe.Close()

	srcFD := int(srcFile.Fd())
	dstFD := int(dstFile.Fd())
	rFD := int(rPipe.Fd())
	wFD := int(wPipe.Fd())

	// File() hands back a duplicate descriptor in blocking mode, so a
	// splice without SPLICE_F_NONBLOCK parks in the kernel waiting for
	// data/space instead of busy-spinning userspace on EAGAIN — the
	// socket is almost always idle between Minecraft packets.
	var total int64
	for {
		n, err := unix.Splice(srcFD, nil, wFD, nil, splicePipeCapacity, unix.SPLICE_F_MOVE)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}

		var written int64
		for written < n {
			m, err := unix.Splice(rFD, nil, dstFD, nil, int(n-written), unix.SPLICE_F_MOVE)
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				return total, err
			}
			written += m
		}
		total += n
	}
}
