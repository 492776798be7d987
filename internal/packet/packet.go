package packet

import (
	"fmt"
	"io"
)

// Packet is the wire-codec side of the tagged-variant sum type spec §9
// describes; the engine's Received entry point type-switches over the
// concrete value Decode returns.
type Packet interface {
	Encode(w io.Writer) error
}

// Decode reads one control packet body, given its already-decoded fixed
// header and the connection's negotiated protocol version (V3/V3.1.1
// packets ignore v5-only fields such as properties).
func Decode(fh *FixedHeader, v Version, r io.Reader) (Packet, error) {
	switch fh.PacketType {
	case CONNECT:
		return NewConnect(fh, r)
	case PUBLISH:
		return NewPublish(fh, v, r)
	case PUBACK:
		return DecodePuback(fh, v, r)
	case PUBREC:
		return DecodePubrec(fh, v, r)
	case PUBREL:
		return DecodePubrel(fh, v, r)
	case PUBCOMP:
		return DecodePubcomp(fh, v, r)
	case SUBSCRIBE:
		return NewSubscribe(fh, v, r)
	case UNSUBSCRIBE:
		return NewUnsubscribe(fh, v, r)
	case PINGREQ:
		if _, err := io.CopyN(io.Discard, r, int64(fh.RemainLength)); err != nil {
			return nil, err
		}
		return Pingreq{}, nil
	case DISCONNECT:
		return NewDisconnect(fh, v, r)
	default:
		return nil, fmt.Errorf("packet: unsupported inbound type %s", fh.PacketType)
	}
}
