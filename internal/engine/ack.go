package engine

import (
	"context"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
)

// handlePuback, handlePubrec, handlePubrel and handlePubcomp forward the QoS
// acknowledgement train to Session, which owns retransmission and in-flight
// bookkeeping; the engine itself holds no QoS>0 state (spec §4.F, §6).

func handlePuback(ctx context.Context, c *Conn, p *packet.Puback) error {
	if c.Session == nil {
		return nil
	}
	return c.Session.Puback(ctx, c.SessionHandle, p.PacketID, p.Reason)
}

func handlePubrec(ctx context.Context, c *Conn, p *packet.Pubrec) error {
	if c.Session != nil {
		if err := c.Session.Pubrec(ctx, c.SessionHandle, p.PacketID, p.Reason); err != nil {
			return err
		}
	}
	if p.Reason >= 0x80 {
		return nil // failure reason: no PUBREL follows [MQTT-4.3.3-1].
	}
	return sendPacket(c, packet.NewPubrel(p.PacketID, c.ProtoVersion, code.Success))
}

func handlePubrel(ctx context.Context, c *Conn, p *packet.Pubrel) error {
	if c.Session != nil {
		if err := c.Session.Pubrel(ctx, c.SessionHandle, p.PacketID, p.Reason); err != nil {
			return err
		}
	}
	return sendPacket(c, packet.NewPubcomp(p.PacketID, c.ProtoVersion, code.Success))
}

func handlePubcomp(ctx context.Context, c *Conn, p *packet.Pubcomp) error {
	if c.Session == nil {
		return nil
	}
	return c.Session.Pubcomp(ctx, c.SessionHandle, p.PacketID, p.Reason)
}

// handlePingreq answers a keepalive ping with PINGRESP. It does not touch
// the keepalive timer itself: Received in engine.go re-arms keepalive for
// every inbound packet, PINGREQ included, before dispatching here.
func handlePingreq(c *Conn) error {
	return sendPacket(c, packet.Pingresp{})
}
