//go:build linux || darwin

package stream

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxSelectFD is FD_SETSIZE: descriptors at or above it do not fit an FdSet.
var maxSelectFD = int(unsafe.Sizeof(unix.FdSet{})) * 8

// fdPoller waits for readability with select(2).
type fdPoller struct {
	fd int
}

// NewFDPoller returns a Poller for the file descriptor fd.
func NewFDPoller(fd int) Poller {
	return &fdPoller{fd: fd}
}

func (p *fdPoller) Ready(timeout time.Duration) (bool, error) {
	if p.fd < 0 || p.fd >= maxSelectFD {
		return false, fmt.Errorf("fd %d out of range for select (limit %d)", p.fd, maxSelectFD)
	}

	var fds unix.FdSet
	fds.Zero()
	fds.Set(p.fd)

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(p.fd+1, &fds, nil, nil, &tv)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, err
	}
	return n > 0 && fds.IsSet(p.fd), nil
}
