// Package fsutil validates and streams caller-supplied file descriptors.
//
// These are the only two places this service touches raw fds handed to it
// over the bus: ValidateLocalFd turns an opaque fd into a host path the rest
// of the service can reason about, and CopyFdToStream streams bytes out of
// one without blocking the event loop. See spec.md §4.B.
package fsutil

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Kind is the filesystem object type ValidateLocalFd requires.
type Kind int

const (
	// KindRegular requires the fd to refer to a regular file.
	KindRegular Kind = iota
	// KindDirectory requires the fd to refer to a directory.
	KindDirectory
)

// ErrInvalidFd is returned for any fd validation failure. Per spec.md §4.B,
// the error is intentionally generic - it never leaks which specific check
// failed, to avoid giving a sandboxed caller information about the host
// filesystem layout.
var ErrInvalidFd = errors.New("invalid fd")

// ValidateLocalFd checks that fd refers to a file of the requested kind,
// opened with (at least) the requested access, and resolves it to an
// absolute host path.
//
// The fd remains owned by the caller; ValidateLocalFd never closes it.
func ValidateLocalFd(fd int, wantKind Kind, wantReadable bool) (string, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return "", ErrInvalidFd
	}

	if !kindMatches(st.Mode, wantKind) {
		return "", ErrInvalidFd
	}

	if wantReadable {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if err != nil {
			return "", ErrInvalidFd
		}

		if flags&unix.O_ACCMODE == unix.O_WRONLY {
			return "", ErrInvalidFd
		}
	}

	path, err := resolveFdPath(fd)
	if err != nil {
		return "", ErrInvalidFd
	}

	var lst unix.Stat_t
	if err := unix.Lstat(path, &lst); err != nil {
		return "", ErrInvalidFd
	}

	if lst.Dev != st.Dev || lst.Ino != st.Ino {
		return "", ErrInvalidFd
	}

	return path, nil
}

// IsWritable reports whether fd was opened with write access (O_WRONLY or
// O_RDWR), used by internal/portal to decide whether AddLocal/NewLocal's
// implicit grant includes the write bit.
func IsWritable(fd int) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return false, fmt.Errorf("fcntl F_GETFL: %w", err)
	}

	mode := flags & unix.O_ACCMODE

	return mode == unix.O_WRONLY || mode == unix.O_RDWR, nil
}

func kindMatches(mode uint32, want Kind) bool {
	switch want {
	case KindRegular:
		return mode&unix.S_IFMT == unix.S_IFREG
	case KindDirectory:
		return mode&unix.S_IFMT == unix.S_IFDIR
	default:
		return false
	}
}

func resolveFdPath(fd int) (string, error) {
	link := fmt.Sprintf("/proc/self/fd/%d", fd)

	path, err := os.Readlink(link)
	if err != nil {
		return "", err
	}

	return path, nil
}
