// Package sink delivers frames to their destination.
//
// A sink receives each frame with Send and latches it with Show, mirroring
// LED hardware that buffers a frame before displaying it.
package sink

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Sink receives frames from playback.
type Sink interface {
	// Send transfers one frame to the sink.
	Send(ctx context.Context, frame []byte) error
	// Show displays the last frame sent.
	Show() error
	// Close releases the sink.
	Close() error
}

// Kind selects a sink implementation.
type Kind string

const (
	KindFile Kind = "file"
	KindNull Kind = "null"
)

// Open creates a sink of the given kind.
// path and lockDir are only used by file sinks.
func Open(kind Kind, path, lockDir string) (Sink, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindFile, "":
		return OpenFile(path, lockDir)
	case KindNull:
		return &Null{}, nil
	default:
		return nil, fmt.Errorf("unknown sink type %q (use file or null)", kind)
	}
}

// Null discards every frame.
type Null struct {
	sent  atomic.Uint64
	shown atomic.Uint64
}

func (n *Null) Send(_ context.Context, _ []byte) error {
	n.sent.Add(1)
	return nil
}

func (n *Null) Show() error {
	n.shown.Add(1)
	return nil
}

func (n *Null) Close() error { return nil }

// Sent returns the number of frames received.
func (n *Null) Sent() uint64 { return n.sent.Load() }

// Shown returns the number of frames latched.
func (n *Null) Shown() uint64 { return n.shown.Load() }
