// Package stream reads fixed-size raw frames from files, pipes and standard input.
//
// A read accumulates partial deliveries until the frame is full, the stream
// ends, or the context is cancelled. Interactive streams (standard input) are
// polled for readiness with a short timeout so cancellation is observed even
// while no data arrives.
package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"ledcat/internal/common"
)

// StdinMarker is the source identifier that selects standard input.
const StdinMarker = "-"

// DefaultPollTimeout bounds how long a single readiness poll waits.
const DefaultPollTimeout = 500 * time.Microsecond

// maxEmptyReads is how many consecutive (0, nil) reads are tolerated.
const maxEmptyReads = 100

// IsStdin reports whether sourceID names standard input.
func IsStdin(sourceID string) bool {
	return sourceID == StdinMarker
}

// Status tells how a ReadFrame call ended.
type Status int

const (
	// StatusComplete means the buffer was filled.
	StatusComplete Status = iota
	// StatusEndOfStream means the source ended; Result.N bytes were read.
	StatusEndOfStream
	// StatusCancelled means the context was cancelled; Result.N bytes were read.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusEndOfStream:
		return "end-of-stream"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a frame read.
type Result struct {
	N      int
	Status Status
}

// Complete reports whether a full frame was read.
func (r Result) Complete() bool {
	return r.Status == StatusComplete
}

// Poller waits for a descriptor to become readable.
type Poller interface {
	// Ready waits up to timeout and reports whether a read would not block.
	Ready(timeout time.Duration) (bool, error)
}

// Reader reads whole frames from an underlying io.Reader.
type Reader struct {
	r           io.Reader
	poller      Poller
	pollTimeout time.Duration
}

// Option configures a Reader.
type Option func(*Reader)

// WithPoller makes the reader wait for readiness before every read.
func WithPoller(p Poller) Option {
	return func(r *Reader) {
		r.poller = p
	}
}

// WithPollTimeout sets the timeout of a single readiness poll.
func WithPollTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.pollTimeout = d
		}
	}
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	rd := &Reader{
		r:           r,
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// NewStdinReader creates a Reader for an interactive stream such as os.Stdin,
// polling the descriptor for readiness before each read.
func NewStdinReader(f *os.File, opts ...Option) *Reader {
	opts = append([]Option{WithPoller(NewFDPoller(int(f.Fd())))}, opts...)
	return NewReader(f, opts...)
}

// ReadFrame reads exactly len(buf) bytes into buf.
//
// Returns:
//   - StatusComplete with N == len(buf) when the frame is full
//   - StatusEndOfStream with the bytes read so far when the source ends
//   - StatusCancelled with the bytes read so far when ctx is cancelled
//   - an error wrapping common.ErrIO when the underlying read fails;
//     partial progress is discarded
func (r *Reader) ReadFrame(ctx context.Context, buf []byte) (Result, error) {
	total := 0
	empty := 0

	for total < len(buf) {
		if r.poller != nil {
			ready, err := r.waitReady(ctx)
			if err != nil {
				return Result{}, err
			}
			if !ready {
				return Result{N: total, Status: StatusCancelled}, nil
			}
		}

		if ctx.Err() != nil {
			return Result{N: total, Status: StatusCancelled}, nil
		}

		n, err := r.r.Read(buf[total:])
		total += n

		if err == io.EOF {
			if total == len(buf) {
				break
			}
			log.Debugf("[StreamReader] end of stream after %d of %d bytes", total, len(buf))
			return Result{N: total, Status: StatusEndOfStream}, nil
		}
		if err != nil {
			log.Debugf("[StreamReader] read failed after %d bytes: %v", total, err)
			return Result{}, fmt.Errorf("read: %w: %w", common.ErrIO, err)
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return Result{}, fmt.Errorf("read: %w: %w", common.ErrIO, io.ErrNoProgress)
			}
			continue
		}
		empty = 0
	}

	return Result{N: total, Status: StatusComplete}, nil
}

// waitReady spins on the poller until data is available.
// Returns false when ctx is cancelled first.
func (r *Reader) waitReady(ctx context.Context) (bool, error) {
	for {
		if ctx.Err() != nil {
			return false, nil
		}
		ready, err := r.poller.Ready(r.pollTimeout)
		if err != nil {
			return false, fmt.Errorf("poll: %w: %w", common.ErrIO, err)
		}
		if ready {
			return true, nil
		}
	}
}
