package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryFailureCounter is the in-process fallback for the login-failure
// window when Redis is not configured. Single-node only.
type MemoryFailureCounter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	window  time.Duration
}

func NewMemoryFailureCounter(window time.Duration) *MemoryFailureCounter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryFailureCounter{
		entries: make(map[string][]time.Time),
		window:  window,
	}
}

func (c *MemoryFailureCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		window = c.window
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	kept := prune(c.entries[key], now.Add(-window))
	kept = append(kept, now)
	c.entries[key] = kept
	return int64(len(kept)), nil
}

func (c *MemoryFailureCounter) Count(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := prune(c.entries[key], time.Now().Add(-c.window))
	if len(kept) == 0 {
		delete(c.entries, key)
	} else {
		c.entries[key] = kept
	}
	return int64(len(kept)), nil
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
