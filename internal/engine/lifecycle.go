package engine

import (
	"context"

	"github.com/beaconmq/beacon/internal/hook"
)

// ShutdownReason names why Shutdown was called (spec §4.H).
type ShutdownReason string

const (
	ReasonNormal          ShutdownReason = "normal"
	ReasonAuthFailure     ShutdownReason = "auth_failure"
	ReasonConflict        ShutdownReason = "conflict"
	ReasonKeepaliveTimeout ShutdownReason = "keepalive_timeout"
	ReasonTransportClosed ShutdownReason = "transport_closed"
)

// Shutdown is the engine's terminal cleanup entry point (spec §4.H), called
// exactly once per connection by the owning task. It never sends a packet
// itself; any final DISCONNECT/CONNACK the caller wants on the wire must be
// sent via Deliver before calling Shutdown.
func Shutdown(ctx context.Context, c *Conn, reason ShutdownReason) {
	if len(c.ClientID) == 0 {
		return
	}

	if reason == ReasonConflict {
		unregister(c)
		return
	}

	if reason != ReasonAuthFailure && c.WillMessage != nil && c.BrokerRouting != nil {
		_ = c.BrokerRouting.PublishWill(ctx, *c.WillMessage)
	}

	if c.Hooks != nil {
		c.Hooks.Run(hook.ClientDisconnected, reason)
	}

	unregister(c)
}

func unregister(c *Conn) {
	if c.ConnMgr != nil {
		c.ConnMgr.Unregister(c.ClientID)
	}
	if c.Self != nil {
		c.Self.CancelKeepalive()
	}
}
