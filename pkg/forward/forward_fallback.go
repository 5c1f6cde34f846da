//go:build !linux

package forward

import "io"

// copyWithSplice is the non-Linux fallback: a plain buffered copy,
// since splice(2) has no portable equivalent (spec.md §4.K).
func copyWithSplice(dst io.Writer, src io.Reader) (int64, error) {
	return copyDirectionFallback(dst, src)
}
