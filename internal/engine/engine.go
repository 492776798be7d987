package engine

import (
	"context"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/xerror"
	"github.com/beaconmq/beacon/internal/xlog"
	"github.com/beaconmq/beacon/internal/xtrace"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var log = xlog.LoggerModule("engine")

// Received is the engine's primary entry point: one decoded inbound packet,
// processed to completion (the control-flow diagram spec §2 names: Framer →
// Received → validate → Process → A..F → optional Deliver/Send). It must
// never be called concurrently with Deliver or Shutdown on the same Conn
// (spec §5).
func Received(ctx context.Context, c *Conn, p packet.Packet) error {
	ctx, span := otel.Tracer(xtrace.Name).Start(ctx, "engine.Received")
	defer span.End()

	if connect, ok := p.(*packet.Connect); ok {
		log.Debug("inbound CONNECT", zap.Stringer("packet", connect))
		c.RecvStats.Pkt++
		return handleConnect(ctx, c, connect)
	}

	if !c.Connected {
		return xerror.ProtocolNotConnected
	}

	if c.Self != nil && c.Keepalive > 0 {
		c.Self.ArmKeepalive(roundKeepalive(c.Keepalive, c.KeepaliveBackoff))
	}

	if err := validate(c, p); err != nil {
		return dispatchValidationFailure(c, err)
	}

	c.RecvStats.Pkt++
	if _, ok := p.(*packet.Publish); ok {
		c.RecvStats.Msg++
	}

	switch pkt := p.(type) {
	case *packet.Publish:
		return handlePublish(ctx, c, pkt)
	case *packet.Subscribe:
		return handleSubscribe(ctx, c, pkt)
	case *packet.Unsubscribe:
		return handleUnsubscribe(ctx, c, pkt)
	case *packet.Puback:
		return handlePuback(ctx, c, pkt)
	case *packet.Pubrec:
		return handlePubrec(ctx, c, pkt)
	case *packet.Pubrel:
		return handlePubrel(ctx, c, pkt)
	case *packet.Pubcomp:
		return handlePubcomp(ctx, c, pkt)
	case packet.Pingreq:
		return handlePingreq(c)
	case *packet.Disconnect:
		c.WillMessage = nil
		return nil
	default:
		log.Debug("unhandled inbound packet kind", zap.String("client_id", string(c.ClientID)))
		return xerror.ErrMalformed
	}
}

// dispatchValidationFailure turns a validate() failure into DISCONNECT-and-
// drop: a reason-coded error emits DISCONNECT with that reason (suppressed
// pre-5 per §4.G); a bare error emits DISCONNECT(MalformedPacket). The
// error is returned to the caller either way.
func dispatchValidationFailure(c *Conn, err error) error {
	reason, ok := xerror.ReasonOf(err)
	if !ok {
		reason = code.MalformedPacket
	}
	_ = Deliver(c, Event{Kind: EventDisconnect, Reason: reason})
	return err
}
