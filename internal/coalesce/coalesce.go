// Package coalesce batches a token-by-token generation stream into a bounded
// number of visible-message updates. Editing a chat message on every delta
// would trip platform rate limits and flicker; batching by a character
// threshold bounds the edit frequency while keeping perceived latency low.
package coalesce

import (
	"context"
	"strings"
)

const DefaultThreshold = 30

// Flush applies the accumulated text to the visible message.
type Flush func(ctx context.Context, text string) error

// Collector accumulates stream fragments and invokes the flush side effect
// whenever the buffered tail exceeds the threshold. The trimmed visible
// content advances monotonically; a flush whose trimmed candidate matches the
// previously flushed text is skipped.
type Collector struct {
	threshold int
	flush     Flush

	committed string
	pending   string
	visible   string
}

func NewCollector(threshold int, flush Flush) *Collector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Collector{threshold: threshold, flush: flush}
}

// Add appends a fragment to the pending buffer and flushes once the buffer
// exceeds the threshold.
func (c *Collector) Add(ctx context.Context, fragment string) error {
	c.pending += fragment
	if len(c.pending) > c.threshold {
		return c.maybeFlush(ctx)
	}
	return nil
}

// Finish performs the final flush regardless of the threshold and returns the
// full trimmed reply text.
func (c *Collector) Finish(ctx context.Context) (string, error) {
	if err := c.maybeFlush(ctx); err != nil {
		return "", err
	}
	return strings.TrimSpace(c.committed), nil
}

func (c *Collector) maybeFlush(ctx context.Context) error {
	candidate := strings.TrimSpace(c.committed + c.pending)
	c.committed += c.pending
	c.pending = ""
	if candidate == "" || candidate == c.visible {
		return nil
	}
	if err := c.flush(ctx, candidate); err != nil {
		return err
	}
	c.visible = candidate
	return nil
}
