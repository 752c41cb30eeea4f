// Package telemetry carries the process-wide observability primitives: a
// zap logger factory and a counter map cheap enough to update from the tick
// path.
package telemetry

import "sync"

// Counters is a named counter/gauge map. Add accumulates, Store overwrites;
// both are safe from any goroutine. Snapshot is what /diagnostics serves.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
}

// NewCounters returns an empty counter set.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

// Add increments a counter by delta.
func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()
}

// Store overwrites a gauge with the latest observation.
func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
