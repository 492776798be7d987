package engine

import (
	"context"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/packet"
)

// handleSubscribe drives the inbound SUBSCRIBE pipeline (spec §4.E).
func handleSubscribe(ctx context.Context, c *Conn, p *packet.Subscribe) error {
	annotated := checkSubChain(ctx, c, p.Filters)

	reasons := make([]code.Code, len(annotated))
	var allowed []packet.SubFilter
	for i, a := range annotated {
		reasons[i] = a.Reason
		if a.Reason == code.Success {
			allowed = append(allowed, mountSubFilter(c, a.Filter))
		}
	}

	if len(allowed) > 0 && c.Session != nil {
		if err := c.Session.Subscribe(ctx, c.SessionHandle, p.PacketID, p.Properties, allowed); err != nil {
			for i := range reasons {
				if reasons[i] == code.Success {
					reasons[i] = code.UnspecifiedError
				}
			}
		}
	}

	if c.Hooks != nil {
		if res := c.Hooks.Run(hook.ClientSubscribe, annotated); res.Stop {
			for i := range reasons {
				reasons[i] = code.ImplementationSpecificError
			}
		}
	}

	return sendPacket(c, &packet.Suback{Version: c.ProtoVersion, PacketID: p.PacketID, Reasons: reasons})
}

// handleUnsubscribe drives the inbound UNSUBSCRIBE pipeline (spec §4.E).
func handleUnsubscribe(ctx context.Context, c *Conn, p *packet.Unsubscribe) error {
	reasons := make([]code.Code, len(p.Filters))
	mounted := make([][]byte, len(p.Filters))
	for i, f := range p.Filters {
		mounted[i] = applyMountpoint(c.Mountpoint, f)
		reasons[i] = code.Success
	}

	if c.Session != nil {
		if err := c.Session.Unsubscribe(ctx, c.SessionHandle, p.PacketID, mounted); err != nil {
			for i := range reasons {
				reasons[i] = code.UnspecifiedError
			}
		}
	}

	if c.Hooks != nil {
		if res := c.Hooks.Run(hook.ClientUnsubscribe, p.Filters); res.Stop {
			for i := range reasons {
				reasons[i] = code.ImplementationSpecificError
			}
		}
	}

	return sendPacket(c, &packet.Unsuback{Version: c.ProtoVersion, PacketID: p.PacketID, Reasons: reasons})
}

// checkSubChain runs check_sub_caps then check_sub_acl over each filter,
// preserving the original filter order and annotating (not dropping) denied
// entries (spec §9's Open Question resolution). ACL is skipped the same way
// checkPubACL skips it: is_super or ACL disabled for this connection.
func checkSubChain(ctx context.Context, c *Conn, filters []packet.SubFilter) []AnnotatedFilter {
	var annotated []AnnotatedFilter
	if c.Caps != nil {
		annotated = c.Caps.CheckSub(c.Zone, filters)
	} else {
		annotated = make([]AnnotatedFilter, len(filters))
		for i, f := range filters {
			annotated[i] = AnnotatedFilter{Filter: f, Reason: code.Success}
		}
	}

	if c.IsSuper || !c.EnableACL || c.ACL == nil {
		return annotated
	}
	for i, a := range annotated {
		if a.Reason != code.Success {
			continue
		}
		if !c.ACL.CheckACL(ctx, c.Credentials(), ActionSubscribe, a.Filter.Filter) {
			annotated[i].Reason = code.NotAuthorized
		}
	}
	return annotated
}

// mountSubFilter prepends the connection's mountpoint to a filter destined
// for Session.Subscribe. A $share/<group>/ prefix is not treated specially:
// the mountpoint goes in front of the whole filter, as handleUnsubscribe
// does for the filters it removes.
func mountSubFilter(c *Conn, f packet.SubFilter) packet.SubFilter {
	f.Filter = applyMountpoint(c.Mountpoint, f.Filter)
	return f
}
