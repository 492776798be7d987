// Package metrics implements the MetricsSink collaborator (spec §6) with
// plain atomic counters. No metrics library appears anywhere in the
// retrieved example pack's go.mod files, so this stays stdlib-only rather
// than reaching for an unretrieved dependency (see DESIGN.md).
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counters is a process-wide MetricsSink: total packets and messages sent,
// broken out per MQTT packet type.
type Counters struct {
	sent     uint64
	sentMsgs uint64
	byType   sync.Map
}

// New returns a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// NotifySent implements engine.MetricsSink.
func (c *Counters) NotifySent(_ []byte, packetType string, isMessage bool) {
	atomic.AddUint64(&c.sent, 1)
	if isMessage {
		atomic.AddUint64(&c.sentMsgs, 1)
	}
	v, _ := c.byType.LoadOrStore(packetType, new(uint64))
	atomic.AddUint64(v.(*uint64), 1)
}

// Sent returns the running totals (packets, messages).
func (c *Counters) Sent() (pkt, msg uint64) {
	return atomic.LoadUint64(&c.sent), atomic.LoadUint64(&c.sentMsgs)
}

// SentByType returns the running total for one packet type name (e.g.
// "PUBLISH").
func (c *Counters) SentByType(packetType string) uint64 {
	v, ok := c.byType.Load(packetType)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(v.(*uint64))
}
