package playback

import (
	"context"
	"time"
)

// Pacer spaces frames to a target frame rate and measures the achieved rate.
type Pacer struct {
	fps      int
	interval time.Duration
	last     time.Time
	window   []time.Time
	frames   uint64
	now      func() time.Time
}

// NewPacer creates a pacer for fps frames per second.
// fps <= 0 disables the delay; FPS is still measured.
func NewPacer(fps int) *Pacer {
	p := &Pacer{fps: fps, now: time.Now}
	if fps > 0 {
		p.interval = time.Second / time.Duration(fps)
	}
	return p
}

// Target returns the configured frame rate.
func (p *Pacer) Target() int {
	return p.fps
}

// Delay sleeps until the next frame slot after the last Sample.
// Returns ctx.Err() if ctx is cancelled while waiting.
func (p *Pacer) Delay(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.interval <= 0 || p.last.IsZero() {
		return nil
	}

	wait := p.last.Add(p.interval).Sub(p.now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sample records that a frame was displayed now.
func (p *Pacer) Sample() {
	t := p.now()
	p.last = t
	p.frames++
	p.window = append(p.window, t)
	p.trim(t)
}

// FPS returns the number of frames displayed during the last second.
func (p *Pacer) FPS() int {
	p.trim(p.now())
	return len(p.window)
}

// Frames returns the number of frames displayed since creation.
func (p *Pacer) Frames() uint64 {
	return p.frames
}

func (p *Pacer) trim(t time.Time) {
	cutoff := t.Add(-time.Second)
	i := 0
	for i < len(p.window) && !p.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		p.window = append(p.window[:0], p.window[i:]...)
	}
}
