// Package rtcpengine implements the RTCP termination and feedback engine:
// the feedback cache (C6), remote-clock estimator (C7), termination
// strategy (C8), and reporter timer (C9) that together consume inbound
// compound RTCP and synthesize the bridge's own outbound reports.
package rtcpengine

import (
	"sync"

	"github.com/jitsi/libjitsi-sub007/pkg/rtcp"
)

// FeedbackCacheEntry is the latest feedback harvested for one SSRC: its
// most recent reception-report blocks, its most recent REMB, and when it
// was last touched.
type FeedbackCacheEntry struct {
	Reports      []rtcp.ReceptionReport
	REMB         *rtcp.ReceiverEstimatedMaxBitrate
	LastUpdateMs int64
}

// FeedbackCache maps SSRC-of-sender-of-feedback to its latest entry
// (C6); concurrent-read/write safe, one writer at a time per key in
// practice since update is invoked from the single inbound gateway.
type FeedbackCache struct {
	mu      sync.RWMutex
	entries map[uint32]*FeedbackCacheEntry
}

// NewFeedbackCache creates an empty cache.
func NewFeedbackCache() *FeedbackCache {
	return &FeedbackCache{entries: make(map[uint32]*FeedbackCacheEntry)}
}

// Update applies spec §4.6's merge rule: a no-op unless ssrc is non-zero
// and at least one of reports/remb is present. When only one side is
// given, the other is inherited from the existing entry.
func (c *FeedbackCache) Update(ssrc uint32, reports []rtcp.ReceptionReport, remb *rtcp.ReceiverEstimatedMaxBitrate, nowMs int64) {
	if ssrc == 0 || (len(reports) == 0 && remb == nil) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.entries[ssrc]
	entry := &FeedbackCacheEntry{LastUpdateMs: nowMs}
	switch {
	case len(reports) > 0:
		entry.Reports = reports
	case existing != nil:
		entry.Reports = existing.Reports
	}
	switch {
	case remb != nil:
		entry.REMB = remb
	case existing != nil:
		entry.REMB = existing.REMB
	}
	c.entries[ssrc] = entry
}

// Get returns a copy of the cached entry for ssrc, if any.
func (c *FeedbackCache) Get(ssrc uint32) (FeedbackCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[ssrc]
	if !ok {
		return FeedbackCacheEntry{}, false
	}
	return *e, true
}

// Snapshot returns every cached SSRC's entry, for callers (like the
// HighestQuality strategy) that aggregate across all of them.
func (c *FeedbackCache) Snapshot() map[uint32]FeedbackCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[uint32]FeedbackCacheEntry, len(c.entries))
	for ssrc, e := range c.entries {
		out[ssrc] = *e
	}
	return out
}

// Expire drops entries whose LastUpdateMs predates nowMs-expireMs.
// expireMs == 0 keeps only entries updated at exactly the current tick,
// the default "latest only" freshness window spec §3 describes.
func (c *FeedbackCache) Expire(nowMs, expireMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ssrc, e := range c.entries {
		if e.LastUpdateMs < nowMs-expireMs {
			delete(c.entries, ssrc)
		}
	}
}

// Len reports the number of distinct SSRCs currently cached.
func (c *FeedbackCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
