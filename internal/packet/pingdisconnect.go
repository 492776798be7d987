package packet

import (
	"bytes"
	"io"

	"github.com/beaconmq/beacon/internal/code"
)

// Pingreq is the keepalive ping request.
type Pingreq struct{}

func (Pingreq) Encode(w io.Writer) error {
	fh := &FixedHeader{PacketType: PINGREQ, Flags: FixedHeaderFlagReserved}
	return encode(fh, &bytes.Buffer{}, w)
}

// Pingresp is the keepalive ping response.
type Pingresp struct{}

func (Pingresp) Encode(w io.Writer) error {
	fh := &FixedHeader{PacketType: PINGRESP, Flags: FixedHeaderFlagReserved}
	return encode(fh, &bytes.Buffer{}, w)
}

// Disconnect is the MQTT5 DISCONNECT packet. Pre-5 protocol versions never
// receive this packet from the server (spec §4.G / §6): DisconnectSuppressed
// guards every emission site.
type Disconnect struct {
	Version    Version
	Reason     code.Code
	Properties Properties
}

// Encode writes the DISCONNECT packet's wire form to w. Callers must check
// code.DisconnectSuppressed(Version) before calling this for a server-
// initiated disconnect on a pre-5 connection.
func (d *Disconnect) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if d.Reason != code.NormalDisconnection || len(d.Properties) > 0 {
		buf.WriteByte(byte(d.Reason))
		if len(d.Properties) > 0 {
			if err := EncodeProperties(buf, d.Properties); err != nil {
				return err
			}
		}
	}
	fh := &FixedHeader{PacketType: DISCONNECT, Flags: FixedHeaderFlagReserved}
	return encode(fh, buf, w)
}

// NewDisconnect decodes a client-initiated DISCONNECT packet from r.
func NewDisconnect(fh *FixedHeader, v Version, r io.Reader) (*Disconnect, error) {
	rest := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	d := &Disconnect{Version: v, Reason: code.NormalDisconnection}
	if len(rest) == 0 {
		return d, nil
	}
	buf := bytes.NewBuffer(rest)
	reasonByte, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	d.Reason = code.Code(reasonByte)
	if v == V5 && buf.Len() > 0 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		d.Properties = props
	}
	return d, nil
}
