package cache

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"ledcat/internal/common"
)

// MaxSourceIDLen is the number of bytes of a source identifier that the cache keeps.
const MaxSourceIDLen = 255

// DuplicatePolicy decides what Insert does with a source identifier that is already cached.
type DuplicatePolicy int

const (
	// DuplicateOverwrite replaces the cached payload, keeping the entry's position.
	DuplicateOverwrite DuplicatePolicy = iota
	// DuplicateKeepFirst ignores the new payload; the first frame stored for an id wins.
	DuplicateKeepFirst
)

// ParseDuplicatePolicy parses "overwrite" or "keep-first" (case insensitive).
// An empty string selects DuplicateOverwrite.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return DuplicateOverwrite, nil
	case "keep-first":
		return DuplicateKeepFirst, nil
	default:
		return DuplicateOverwrite, fmt.Errorf("unknown duplicate policy %q (use overwrite or keep-first)", s)
	}
}

func (p DuplicatePolicy) String() string {
	if p == DuplicateKeepFirst {
		return "keep-first"
	}
	return "overwrite"
}

// CachedFrame is one decoded frame held by a FrameCache.
// Payload is owned by the cache and must not be modified.
type CachedFrame struct {
	SourceID string
	Payload  []byte
}

// Size returns the payload length in bytes.
func (f *CachedFrame) Size() int {
	return len(f.Payload)
}

// FrameCache stores raw frame buffers keyed by source identifier, in insertion order.
//
// Thread-safe: Uses RWMutex for concurrent access.
type FrameCache struct {
	mu      sync.RWMutex
	index   map[string]int // source id -> position in order
	order   []*CachedFrame
	bytes   int
	enabled bool
	closed  bool
	policy  DuplicatePolicy
	warned  map[string]struct{} // over-long ids already reported

	hits   uint64
	misses uint64
}

// Option configures a FrameCache.
type Option func(*FrameCache)

// WithDuplicatePolicy sets how re-inserted identifiers are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(c *FrameCache) {
		c.policy = p
	}
}

// New creates an empty, enabled frame cache.
func New(opts ...Option) *FrameCache {
	log.Debug("[FrameCache] creating new frame cache")
	c := &FrameCache{
		index:   make(map[string]int, 16),
		warned:  make(map[string]struct{}),
		enabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEnabled turns caching on or off. Existing entries are kept while disabled.
func (c *FrameCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled {
		log.Debug("[FrameCache] enabling frame cache")
	} else {
		log.Debug("[FrameCache] disabling frame cache")
	}
	c.enabled = enabled
}

// Enabled reports whether inserts and lookups are active.
func (c *FrameCache) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active()
}

func (c *FrameCache) active() bool {
	return c.enabled && !Disabled
}

// Insert copies payload into a new entry for sourceID.
// sourceID is truncated to MaxSourceIDLen bytes.
// No-op returning nil while the cache is disabled.
func (c *FrameCache) Insert(sourceID string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("insert %q: %w", sourceID, common.ErrClosed)
	}
	if !c.active() {
		return nil
	}
	if len(payload) == 0 {
		return fmt.Errorf("insert %q: empty payload: %w", sourceID, common.ErrInvalidFrame)
	}

	id := truncateID(sourceID)
	if id != sourceID {
		if _, ok := c.warned[sourceID]; !ok {
			c.warned[sourceID] = struct{}{}
			log.Warnf("[FrameCache] source id %q... is longer than %d bytes, it will never be served from the cache",
				id[:32], MaxSourceIDLen)
		}
	}
	frame := &CachedFrame{
		SourceID: id,
		Payload:  append([]byte(nil), payload...),
	}

	if pos, ok := c.index[id]; ok {
		if c.policy == DuplicateKeepFirst {
			log.Debugf("[FrameCache] frame %q already cached, keeping first", id)
			return nil
		}
		c.bytes += frame.Size() - c.order[pos].Size()
		c.order[pos] = frame
		log.Debugf("[FrameCache] frame %q replaced (%d frames in cache)", id, len(c.order))
		return nil
	}

	c.index[id] = len(c.order)
	c.order = append(c.order, frame)
	c.bytes += frame.Size()

	log.Debugf("[FrameCache] frame %q cached (%d frames in cache)", id, len(c.order))
	return nil
}

// Lookup returns the cached frame for sourceID.
// Always misses while disabled or closed, and for identifiers longer than MaxSourceIDLen.
func (c *FrameCache) Lookup(sourceID string) (*CachedFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.active() {
		return nil, false
	}

	pos, ok := c.index[sourceID]
	if !ok {
		c.misses++
		log.Debugf("[FrameCache] frame %q not found in cache", sourceID)
		return nil, false
	}

	c.hits++
	log.Debugf("[FrameCache] frame %q found in cache", sourceID)
	return c.order[pos], true
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Entries returns the cached frames in insertion order.
func (c *FrameCache) Entries() []*CachedFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*CachedFrame(nil), c.order...)
}

// Close releases every entry. Calling Close more than once is a no-op.
func (c *FrameCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.index = nil
	c.order = nil
	c.warned = nil
	c.bytes = 0

	log.Debug("[FrameCache] destroying frame cache")
}

// Stats describes cache usage.
type Stats struct {
	Frames  int
	Bytes   int
	Hits    uint64
	Misses  uint64
	Enabled bool
}

// Stats returns current cache statistics.
func (c *FrameCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Frames:  len(c.order),
		Bytes:   c.bytes,
		Hits:    c.hits,
		Misses:  c.misses,
		Enabled: c.active(),
	}
}

func truncateID(id string) string {
	if len(id) > MaxSourceIDLen {
		return id[:MaxSourceIDLen]
	}
	return id
}
