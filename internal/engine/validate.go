package engine

import (
	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/xerror"
)

// validate performs the version-aware structural checks spec §4.B names,
// beyond what the wire codec already enforced during Decode. On failure it
// returns an error; the caller answers every failure with DISCONNECT and
// drops the packet.
//
// A failure that carries a reason code returns xerror.ProtocolError wrapped
// with that code (xerror.WithReason); the caller emits DISCONNECT with it.
// Anything else returns the bare cause and the caller emits
// DISCONNECT(MalformedPacket).
func validate(c *Conn, p packet.Packet) error {
	switch pkt := p.(type) {
	case *packet.Publish:
		// An empty topic carrying a Topic Alias is resolved later by
		// resolveTopicAlias, so only a non-aliased topic is checked here.
		if _, aliased := pkt.Properties.Get(packet.PropTopicAlias); !(aliased && len(pkt.Topic) == 0) && !validTopicName(pkt.Topic) {
			return xerror.WithReason(xerror.ProtocolError, code.TopicNameInvalid)
		}
		if pkt.QoS > 2 {
			return xerror.ErrMalformed
		}
		if pkt.QoS > 0 && pkt.PacketID == 0 {
			return xerror.ErrMalformed
		}
	case *packet.Subscribe:
		for _, f := range pkt.Filters {
			if !validTopicFilter(f.Filter) {
				return xerror.WithReason(xerror.ProtocolError, code.TopicFilterInvalid)
			}
		}
		if pkt.PacketID == 0 {
			return xerror.ErrMalformed
		}
	case *packet.Unsubscribe:
		for _, f := range pkt.Filters {
			if !validTopicFilter(f) {
				return xerror.WithReason(xerror.ProtocolError, code.TopicFilterInvalid)
			}
		}
		if pkt.PacketID == 0 {
			return xerror.ErrMalformed
		}
	}
	return nil
}
