package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"ledcat/internal/common"
	"ledcat/internal/util"
)

// StdoutPath selects standard output as the sink.
const StdoutPath = "-"

// File writes raw frames to a file, FIFO, device node or standard output.
// Frames are written back to back with no framing.
type File struct {
	path string
	w    io.Writer
	f    *os.File // nil for stdout
	lock *flock.Flock
}

// OpenFile opens path for writing. While open, an exclusive lock in lockDir
// keeps a second ledcat from writing to the same destination.
func OpenFile(path, lockDir string) (*File, error) {
	if path == "" || path == StdoutPath {
		return &File{path: StdoutPath, w: os.Stdout}, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sink path: %w", err)
	}

	var lock *flock.Flock
	if lockDir != "" {
		if err := os.MkdirAll(lockDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
		lock = flock.New(LockPath(lockDir, abs))
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire sink lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("%s: %w", abs, common.ErrSinkBusy)
		}
	}

	// O_TRUNC would reset device nodes; only truncate regular files.
	flags := os.O_WRONLY | os.O_CREATE
	if info, err := os.Stat(abs); err != nil || info.Mode().IsRegular() {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(abs, flags, 0644)
	if err != nil {
		if lock != nil {
			lock.Unlock()
		}
		return nil, fmt.Errorf("failed to open sink: %w", err)
	}

	log.Debugf("[Sink] writing frames to %s", abs)
	return &File{path: abs, w: f, f: f, lock: lock}, nil
}

// LockPath returns the lock file used for the sink at abs.
func LockPath(lockDir, abs string) string {
	name := strings.ReplaceAll(strings.Trim(abs, string(filepath.Separator)), string(filepath.Separator), "_")
	return filepath.Join(lockDir, "sink_"+name+".lock")
}

// Path returns the destination path, or "-" for stdout.
func (s *File) Path() string { return s.path }

// Send writes frame, retrying transient failures without repeating bytes already written.
func (s *File) Send(ctx context.Context, frame []byte) error {
	written := 0
	err := util.Retry(ctx, func() error {
		for written < len(frame) {
			n, err := s.w.Write(frame[written:])
			written += n
			if err != nil {
				return err
			}
			if n == 0 {
				return io.ErrShortWrite
			}
		}
		return nil
	}, util.WriteRetryOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("send frame to %s: %w", s.path, err)
	}
	return nil
}

// Show is a no-op: bytes written are already visible to the reader.
func (s *File) Show() error { return nil }

// Close closes the destination and releases the lock.
func (s *File) Close() error {
	var err error
	if s.f != nil {
		err = s.f.Close()
		s.f = nil
	}
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
	return err
}
