package packet

import (
	"bytes"
	"io"

	"github.com/beaconmq/beacon/internal/code"
)

// Connack is the CONNECT acknowledgement packet.
type Connack struct {
	Version        Version
	SessionPresent bool
	Reason         code.Code
	Properties     Properties
}

// Encode writes the CONNACK packet's wire form to w, narrowing the reason
// code through the compat table for pre-5 clients.
func (c *Connack) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	sp := byte(0)
	if c.SessionPresent {
		sp = 1
	}
	buf.WriteByte(sp)

	if c.Version == V5 {
		buf.WriteByte(byte(c.Reason))
		if err := EncodeProperties(buf, c.Properties); err != nil {
			return err
		}
	} else {
		buf.WriteByte(code.CompatConnack(c.Reason))
	}
	fh := &FixedHeader{PacketType: CONNACK, Flags: FixedHeaderFlagReserved}
	return encode(fh, buf, w)
}

// DecodeConnack reads a CONNACK packet. Nothing in this module calls it:
// the broker engine only ever sends CONNACK.
func DecodeConnack(fh *FixedHeader, v Version, r io.Reader) (*Connack, error) {
	rest := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(rest)
	spByte, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	reasonByte, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	ack := &Connack{Version: v, SessionPresent: spByte&0x01 != 0, Reason: code.Code(reasonByte)}
	if v == V5 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		ack.Properties = props
	}
	return ack, nil
}
