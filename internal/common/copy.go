package common

import (
	"context"
	"io"
)

// CopyWithContext copies data from src to dst with context cancellation support.
// onChunk, when non-nil, is called with the running total after every write.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, onChunk func(written int64)) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		// Check for cancellation before each read
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
				if onChunk != nil {
					onChunk(written)
				}
			}
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
