package packet

import (
	"bytes"
	"io"

	"github.com/beaconmq/beacon/internal/code"
)

// ackPacket is the shared shape of PUBACK/PUBREC/PUBREL/PUBCOMP: a packet
// identifier plus, on MQTT5, a reason code and property set. Pre-5 packets
// always carry only the packet identifier; MQTT5 packets also omit the
// reason code when it is Success and there are no properties, per
// [MQTT-3.4.2-1] and its PUBREC/PUBREL/PUBCOMP siblings.
type ackPacket struct {
	Kind       Type
	Flags      byte
	Version    Version
	PacketID   uint16
	Reason     code.Code
	Properties Properties
}

func (a *ackPacket) encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, a.PacketID); err != nil {
		return err
	}
	if a.Version == V5 && (a.Reason != code.Success || len(a.Properties) > 0) {
		buf.WriteByte(byte(a.Reason))
		if len(a.Properties) > 0 {
			if err := EncodeProperties(buf, a.Properties); err != nil {
				return err
			}
		}
	}
	fh := &FixedHeader{PacketType: a.Kind, Flags: a.Flags}
	return encode(fh, buf, w)
}

func decodeAck(kind Type, fh *FixedHeader, v Version, r io.Reader) (*ackPacket, error) {
	rest := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(rest)
	pid, err := readUint16(buf)
	if err != nil {
		return nil, err
	}
	a := &ackPacket{Kind: kind, Flags: fh.Flags, Version: v, PacketID: pid, Reason: code.Success}
	if buf.Len() > 0 {
		reasonByte, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		a.Reason = code.Code(reasonByte)
		if v == V5 && buf.Len() > 0 {
			props, err := DecodeProperties(buf)
			if err != nil {
				return nil, err
			}
			a.Properties = props
		}
	}
	return a, nil
}

// Puback is the PUBACK packet (QoS 1 acknowledgement).
type Puback struct{ ackPacket }

func NewPuback(pid uint16, v Version, reason code.Code) *Puback {
	return &Puback{ackPacket{Kind: PUBACK, Version: v, PacketID: pid, Reason: reason}}
}
func (p *Puback) Encode(w io.Writer) error { return p.encode(w) }
func DecodePuback(fh *FixedHeader, v Version, r io.Reader) (*Puback, error) {
	a, err := decodeAck(PUBACK, fh, v, r)
	if err != nil {
		return nil, err
	}
	return &Puback{*a}, nil
}

// Pubrec is the PUBREC packet (QoS 2 step 1).
type Pubrec struct{ ackPacket }

func NewPubrec(pid uint16, v Version, reason code.Code) *Pubrec {
	return &Pubrec{ackPacket{Kind: PUBREC, Version: v, PacketID: pid, Reason: reason}}
}
func (p *Pubrec) Encode(w io.Writer) error { return p.encode(w) }
func DecodePubrec(fh *FixedHeader, v Version, r io.Reader) (*Pubrec, error) {
	a, err := decodeAck(PUBREC, fh, v, r)
	if err != nil {
		return nil, err
	}
	return &Pubrec{*a}, nil
}

// Pubrel is the PUBREL packet (QoS 2 step 2); it carries the fixed reserved
// flags nibble 0x02 per [MQTT-3.6.1-1].
type Pubrel struct{ ackPacket }

func NewPubrel(pid uint16, v Version, reason code.Code) *Pubrel {
	return &Pubrel{ackPacket{Kind: PUBREL, Flags: PubrelFlagReserved, Version: v, PacketID: pid, Reason: reason}}
}
func (p *Pubrel) Encode(w io.Writer) error { return p.encode(w) }
func DecodePubrel(fh *FixedHeader, v Version, r io.Reader) (*Pubrel, error) {
	a, err := decodeAck(PUBREL, fh, v, r)
	if err != nil {
		return nil, err
	}
	return &Pubrel{*a}, nil
}

// Pubcomp is the PUBCOMP packet (QoS 2 step 3).
type Pubcomp struct{ ackPacket }

func NewPubcomp(pid uint16, v Version, reason code.Code) *Pubcomp {
	return &Pubcomp{ackPacket{Kind: PUBCOMP, Version: v, PacketID: pid, Reason: reason}}
}
func (p *Pubcomp) Encode(w io.Writer) error { return p.encode(w) }
func DecodePubcomp(fh *FixedHeader, v Version, r io.Reader) (*Pubcomp, error) {
	a, err := decodeAck(PUBCOMP, fh, v, r)
	if err != nil {
		return nil, err
	}
	return &Pubcomp{*a}, nil
}
