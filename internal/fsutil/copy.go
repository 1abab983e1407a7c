package fsutil

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// copyBufferSize bounds how much data moves through the intermediate pipe
// (or read buffer) per splice/Read call.
const copyBufferSize = 256 * 1024

// CopyFdToStream copies all remaining bytes of fdIn into w, without blocking
// the caller's goroutine scheduling beyond normal Go runtime netpoller
// semantics. On Linux it copies via splice(2) through an intermediate pipe
// when w is backed by a file descriptor (os.File), avoiding a userspace
// round-trip; otherwise it falls back to a buffered io.Copy.
//
// Neither fdIn nor w is closed by CopyFdToStream.
func CopyFdToStream(fdIn int, w io.Writer) (int64, error) {
	src := os.NewFile(uintptr(fdIn), "copy-src")
	if src == nil {
		return 0, fmt.Errorf("copy fd: invalid source descriptor")
	}

	// os.NewFile installs a finalizer that closes the fd on GC. We don't own
	// this fd - the caller does - so detach the finalizer immediately.
	runtime.SetFinalizer(src, nil)

	if dst, ok := w.(*os.File); ok {
		n, err := spliceCopy(src, dst)
		if err == nil {
			return n, nil
		}
		// Fall through to the generic path on any splice failure (e.g. the
		// destination is a pipe-incompatible special file); splice never
		// partially corrupts dst since it only moves bytes forward.
	}

	return io.CopyBuffer(w, src, make([]byte, copyBufferSize))
}

// spliceCopy moves bytes from src to dst entirely inside the kernel via an
// intermediate pipe, never reading the data into this process's memory.
func spliceCopy(src, dst *os.File) (int64, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("splice: create pipe: %w", err)
	}

	defer func() { _ = pr.Close() }()
	defer func() { _ = pw.Close() }()

	var total int64

	srcFd := int(src.Fd())
	pwFd := int(pw.Fd())
	prFd := int(pr.Fd())
	dstFd := int(dst.Fd())

	for {
		n, spliceErr := unix.Splice(srcFd, nil, pwFd, nil, copyBufferSize, unix.SPLICE_F_MOVE)
		if spliceErr != nil {
			if spliceErr == unix.EINTR { //nolint:errorlint // unix errno comparison
				continue
			}

			return total, fmt.Errorf("splice: read from source: %w", spliceErr)
		}

		if n == 0 {
			return total, nil
		}

		remaining := n
		for remaining > 0 {
			m, werr := unix.Splice(prFd, nil, dstFd, nil, int(remaining), unix.SPLICE_F_MOVE)
			if werr != nil {
				if werr == unix.EINTR { //nolint:errorlint // unix errno comparison
					continue
				}

				return total, fmt.Errorf("splice: write to destination: %w", werr)
			}

			remaining -= m
			total += m
		}
	}
}
