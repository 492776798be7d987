package engine

import (
	"context"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/xerror"
)

// handlePublish drives the inbound PUBLISH pipeline (spec §4.D).
func handlePublish(ctx context.Context, c *Conn, p *packet.Publish) error {
	reason := resolveTopicAlias(c, p)
	if reason == code.Success {
		reason = checkPubCaps(c, p)
	}
	if reason == code.Success {
		reason = checkPubACL(ctx, c, p)
	}

	if reason != code.Success {
		return ackPublishFailure(c, p, reason)
	}

	msg := Message{
		Topic:      applyMountpoint(c.Mountpoint, p.Topic),
		Payload:    p.Payload,
		QoS:        p.QoS,
		Retain:     p.Retain,
		Publisher:  c.ClientID,
		Properties: p.Properties,
	}
	if c.Session != nil {
		if err := c.Session.Publish(ctx, c.SessionHandle, p.PacketID, msg); err != nil {
			return ackPublishFailure(c, p, code.UnspecifiedError)
		}
	}
	return ackPublishSuccess(c, p)
}

// resolveTopicAlias enforces the negotiated Topic Alias Maximum and, for an
// alias reuse (empty topic, alias set), rewrites p.Topic in place from the
// connection's inbound alias table (SPEC_FULL §12). A first use (non-empty
// topic, alias set) records the mapping for later reuse. Grounded on the
// assign-then-reuse alias bookkeeping in gonzalop-mq/topic_alias.go, mirrored
// for the server's inbound direction.
func resolveTopicAlias(c *Conn, p *packet.Publish) code.Code {
	v, ok := p.Properties.Get(packet.PropTopicAlias)
	if !ok {
		return code.Success
	}
	alias, _ := v.(uint16)
	if alias == 0 || alias > c.ServerTopicAliasMax {
		return code.TopicAliasInvalid
	}

	if len(p.Topic) == 0 {
		topic, known := c.inboundAliases[alias]
		if !known {
			return code.TopicAliasInvalid
		}
		p.Topic = topic
		return code.Success
	}

	if c.inboundAliases == nil {
		c.inboundAliases = make(map[uint16][]byte)
	}
	c.inboundAliases[alias] = append([]byte(nil), p.Topic...)
	return code.Success
}

// checkPubCaps is the zone-policy half of the check chain spec §4.D step 1
// names: QoS must be within the zone's ceiling, retain must be allowed, and
// $-prefixed topics (SPEC_FULL §12) are never publishable by ordinary
// clients.
func checkPubCaps(c *Conn, p *packet.Publish) code.Code {
	if isSystemTopic(p.Topic) {
		return code.NotAuthorized
	}
	if c.Caps == nil {
		return code.Success
	}
	reason, _ := c.Caps.CheckPub(c.Zone, PubCaps{QoS: p.QoS, Retain: p.Retain})
	return reason
}

// checkPubACL is the ACL half of the check chain; skipped when is_super or
// ACL is disabled for this connection (spec §4.D step 1).
func checkPubACL(ctx context.Context, c *Conn, p *packet.Publish) code.Code {
	if c.IsSuper || !c.EnableACL || c.ACL == nil {
		return code.Success
	}
	if c.ACL.CheckACL(ctx, c.Credentials(), ActionPublish, p.Topic) {
		return code.Success
	}
	return code.NotAuthorized
}

func ackPublishFailure(c *Conn, p *packet.Publish, reason code.Code) error {
	switch p.QoS {
	case 0:
		return nil // log, swallow, return OK.
	case 1:
		return sendPacket(c, packet.NewPuback(p.PacketID, c.ProtoVersion, reason))
	case 2:
		return sendPacket(c, packet.NewPubrec(p.PacketID, c.ProtoVersion, reason))
	}
	return xerror.ErrMalformed
}

func ackPublishSuccess(c *Conn, p *packet.Publish) error {
	switch p.QoS {
	case 0:
		return nil
	case 1:
		return sendPacket(c, packet.NewPuback(p.PacketID, c.ProtoVersion, code.Success))
	case 2:
		return sendPacket(c, packet.NewPubrec(p.PacketID, c.ProtoVersion, code.Success))
	}
	return xerror.ErrMalformed
}
