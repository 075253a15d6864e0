// Package playback plays an ordered list of sources to a sink.
//
// For every source the coordinator first asks the frame cache. A hit is a
// still frame: it is shown once and the source is done. On a miss the source
// is opened and read frame by frame, either as raw frames or through the
// image decoder, and every frame is cached and shown. With looping enabled the
// list starts over until the context is cancelled.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ledcat/internal/cache"
	"ledcat/internal/common"
	"ledcat/internal/decode"
	"ledcat/internal/sink"
	"ledcat/internal/stream"
)

// Opener opens file sources.
type Opener interface {
	Open(sourceID string) (io.ReadCloser, error)
}

// Config is fixed for a whole run.
type Config struct {
	Sources        []string
	Loop           bool
	Caching        bool
	FrameSize      int
	Raw            bool
	ReportInterval time.Duration
}

// Deps are the collaborators of a run. Decoder is only needed when Raw is
// false. Pacer defaults to an unpaced one and Stdin to os.Stdin.
type Deps struct {
	Cache   *cache.FrameCache
	Opener  Opener
	Decoder *decode.Decoder
	Sink    sink.Sink
	Pacer   *Pacer
	Stdin   *os.File
}

// Summary counts what a run did.
type Summary struct {
	Passes        int
	Frames        uint64
	CacheHits     uint64
	CacheMisses   uint64
	FailedSources int
	Cancelled     bool
}

// idleBackoff is the pause before looping again after a pass that showed
// no frame, when no frame rate is set.
const idleBackoff = time.Second

// Coordinator drives playback.
type Coordinator struct {
	cfg        Config
	deps       Deps
	log        *log.Entry
	summary    Summary
	lastReport time.Time
	backoff    time.Duration
}

// New creates a coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	if deps.Pacer == nil {
		deps.Pacer = NewPacer(0)
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	backoff := idleBackoff
	if deps.Pacer.interval > 0 {
		backoff = deps.Pacer.interval
	}
	return &Coordinator{
		cfg:     cfg,
		deps:    deps,
		log:     log.WithField("run", uuid.NewString()),
		backoff: backoff,
	}
}

func (c *Coordinator) validate() error {
	if len(c.cfg.Sources) == 0 {
		return common.ErrNoSources
	}
	if c.cfg.FrameSize <= 0 {
		return fmt.Errorf("frame size %d: %w", c.cfg.FrameSize, common.ErrInvalidDimensions)
	}
	if c.deps.Sink == nil {
		return errors.New("no sink")
	}
	if c.deps.Opener == nil {
		return errors.New("no source opener")
	}
	if !c.cfg.Raw {
		if c.deps.Decoder == nil {
			return errors.New("no decoder")
		}
		if c.deps.Decoder.FrameSize() != c.cfg.FrameSize {
			return fmt.Errorf("decoder frame size %d, want %d: %w",
				c.deps.Decoder.FrameSize(), c.cfg.FrameSize, common.ErrInvalidDimensions)
		}
	}
	return nil
}

func (c *Coordinator) caching() bool {
	return c.cfg.Caching && c.deps.Cache != nil
}

// Run plays every source in order, starting over after the last one when
// looping. Per-source failures are logged and skipped. Cancellation of ctx
// ends the run without an error.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	if err := c.validate(); err != nil {
		return c.summary, err
	}

	buf := make([]byte, c.cfg.FrameSize)
	c.lastReport = time.Now()

	c.log.Debugf("[Playback] starting with %d sources (loop=%v, caching=%v, raw=%v)",
		len(c.cfg.Sources), c.cfg.Loop, c.caching(), c.cfg.Raw)

	idle := false
	for {
		c.summary.Passes++
		before := c.summary.Frames

		for _, id := range c.cfg.Sources {
			if ctx.Err() != nil {
				break
			}
			c.play(ctx, id, buf)
		}

		if ctx.Err() != nil {
			c.summary.Cancelled = true
			c.log.Debug("[Playback] cancelled")
			break
		}
		if !c.cfg.Loop {
			break
		}
		if c.summary.Frames > before {
			idle = false
			continue
		}

		// Sources may appear later (a FIFO, a device node); wait instead of spinning.
		if !idle {
			c.log.Warnf("no source produced a frame, retrying every %s", c.backoff)
			idle = true
		}
		if !c.wait(ctx, c.backoff) {
			c.summary.Cancelled = true
			c.log.Debug("[Playback] cancelled")
			break
		}
	}

	c.log.Debugf("[Playback] done: %+v", c.summary)
	return c.summary, nil
}

// play shows one source.
func (c *Coordinator) play(ctx context.Context, id string, buf []byte) {
	logger := c.log.WithField("source", id)
	logger.Debug("[Playback] getting pixels")

	if c.caching() {
		f, ok := c.deps.Cache.Lookup(id)
		switch {
		case !ok:
			c.summary.CacheMisses++
		case len(f.Payload) == len(buf):
			c.summary.CacheHits++
			copy(buf, f.Payload)
			// A cached frame is a still image, never a stream.
			if err := c.dispatch(ctx, buf); err != nil {
				c.fail(logger, err, "failed to show cached frame")
			}
			return
		default:
			// Counted as a hit to agree with the cache's own stats.
			c.summary.CacheHits++
			logger.Warnf("cached frame is %d bytes, want %d; reading source", len(f.Payload), len(buf))
		}
	}

	next, closeSource, err := c.open(id)
	if err != nil {
		c.fail(logger, err, "failed to open source")
		return
	}
	defer closeSource()

	for ctx.Err() == nil {
		res, err := next(ctx, buf)
		if err != nil {
			c.fail(logger, err, "failed to read frame")
			return
		}
		switch res.Status {
		case stream.StatusCancelled:
			return
		case stream.StatusEndOfStream:
			if res.N > 0 {
				logger.Warnf("discarding incomplete frame (%d of %d bytes)", res.N, len(buf))
			}
			return
		}

		var storeErr error
		if c.caching() {
			storeErr = c.deps.Cache.Insert(id, buf)
			if storeErr != nil {
				logger.WithError(storeErr).Error("failed to cache frame")
			}
		}

		if err := c.dispatch(ctx, buf); err != nil {
			c.fail(logger, err, "failed to show frame")
			return
		}
		if storeErr != nil {
			c.summary.FailedSources++
			return
		}
	}
}

type nextFunc func(ctx context.Context, buf []byte) (stream.Result, error)

// open prepares frame acquisition for id.
func (c *Coordinator) open(id string) (nextFunc, func(), error) {
	var (
		r         io.Reader
		closeFunc = func() {}
	)

	if stream.IsStdin(id) {
		if c.cfg.Raw {
			return stream.NewStdinReader(c.deps.Stdin).ReadFrame, closeFunc, nil
		}
		r = c.deps.Stdin
	} else {
		rc, err := c.deps.Opener.Open(id)
		if err != nil {
			return nil, nil, err
		}
		r = rc
		closeFunc = func() {
			if err := rc.Close(); err != nil {
				c.log.WithField("source", id).Debugf("[Playback] close: %v", err)
			}
		}
	}

	if c.cfg.Raw {
		return stream.NewReader(r).ReadFrame, closeFunc, nil
	}
	return c.deps.Decoder.Open(r).Next, closeFunc, nil
}

// dispatch sends buf to the sink, waits for the frame slot and shows it.
func (c *Coordinator) dispatch(ctx context.Context, buf []byte) error {
	c.log.Trace("[Playback] sending frame")
	if err := c.deps.Sink.Send(ctx, buf); err != nil {
		return err
	}
	if err := c.deps.Pacer.Delay(ctx); err != nil {
		return err
	}
	c.log.Trace("[Playback] showing frame")
	if err := c.deps.Sink.Show(); err != nil {
		return err
	}
	c.deps.Pacer.Sample()
	c.summary.Frames++
	c.report()
	return nil
}

// wait sleeps for d. Returns false if ctx is cancelled first.
func (c *Coordinator) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) fail(logger *log.Entry, err error, msg string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	c.summary.FailedSources++
	logger.WithError(err).Error(msg)
}

func (c *Coordinator) report() {
	if c.cfg.ReportInterval <= 0 {
		return
	}
	now := time.Now()
	if now.Sub(c.lastReport) < c.cfg.ReportInterval {
		return
	}
	c.lastReport = now
	c.log.Infof("%d fps (target %d)", c.deps.Pacer.FPS(), c.deps.Pacer.Target())
}
