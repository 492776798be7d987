// Package capability implements the zone-keyed CapabilityPolicy collaborator
// (spec §6): the per-zone ceiling on publish QoS/retain and the per-filter
// caps annotation check_sub_caps runs ahead of ACL (spec §4.E).
package capability

import (
	"sync"

	"github.com/beaconmq/beacon/config"
	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/engine"
	"github.com/beaconmq/beacon/internal/packet"
)

// Policy is the in-memory zone table. Zones are seeded once at startup from
// config.Config and never mutated afterward; reads still take mu's read
// lock.
type Policy struct {
	mu    sync.RWMutex
	zones map[string]config.Zone
}

// New builds a Policy from the configured zones, falling back to
// config.DefaultZone() for any zone name an engine.Conn references that
// wasn't declared.
func New(zones map[string]config.Zone) *Policy {
	p := &Policy{zones: map[string]config.Zone{}}
	for name, z := range zones {
		p.zones[name] = z
	}
	return p
}

func (p *Policy) zone(name string) config.Zone {
	p.mu.RLock()
	z, ok := p.zones[name]
	p.mu.RUnlock()
	if !ok {
		return config.DefaultZone()
	}
	return z
}

// CheckPub implements engine.CapabilityPolicy.
func (p *Policy) CheckPub(zone string, pub engine.PubCaps) (code.Code, bool) {
	z := p.zone(zone)
	if pub.QoS > z.MaxQoS {
		return code.QoSNotSupported, false
	}
	if pub.Retain && !z.AllowRetain {
		return code.RetainNotSupported, false
	}
	return code.Success, true
}

// CheckSub implements engine.CapabilityPolicy: every filter is annotated,
// none dropped, preserving the order Subscribe's filter list arrived in
// (spec §9's Open Question resolution).
func (p *Policy) CheckSub(zone string, filters []packet.SubFilter) []engine.AnnotatedFilter {
	z := p.zone(zone)
	out := make([]engine.AnnotatedFilter, len(filters))
	for i, f := range filters {
		reason := code.Success
		if f.Options.QoS > z.MaxQoS {
			reason = code.QoSNotSupported
		}
		out[i] = engine.AnnotatedFilter{Filter: f, Reason: reason}
	}
	return out
}

// GetCaps implements engine.CapabilityPolicy.
func (p *Policy) GetCaps(zone string) engine.Caps {
	z := p.zone(zone)
	return engine.Caps{
		MaxQoS:         z.MaxQoS,
		RetainAllowed:  z.AllowRetain,
		MaxClientIDLen: z.MaxClientIDLen,
	}
}
