package packet

import (
	"bytes"
	"io"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/xerror"
)

// RetainHandling controls whether the broker resends matching retained
// messages on this subscription (MQTT5 subscribe options).
type RetainHandling byte

const (
	SendRetainedAlways          RetainHandling = 0
	SendRetainedOnNewSubscribe  RetainHandling = 1
	DoNotSendRetained           RetainHandling = 2
)

// SubOptions are the per-filter options carried on a SUBSCRIBE packet.
// Pre-5 packets only ever populate QoS; the rest default to zero values
// that match pre-5 broker behavior (no-local off, retain-as-published off,
// always resend retained).
type SubOptions struct {
	QoS             byte
	NoLocal         bool
	RetainAsPublished bool
	RetainHandling  RetainHandling
}

// SubFilter is one (topic filter, options) pair from a SUBSCRIBE packet.
type SubFilter struct {
	Filter  []byte
	Options SubOptions
}

// Subscribe is the MQTT SUBSCRIBE packet.
type Subscribe struct {
	Version    Version
	PacketID   uint16
	Properties Properties
	Filters    []SubFilter
}

// NewSubscribe decodes a SUBSCRIBE packet from r.
func NewSubscribe(fh *FixedHeader, v Version, r io.Reader) (*Subscribe, error) {
	if fh.Flags != PubrelFlagReserved {
		return nil, xerror.ErrMalformed
	}
	rest := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(rest)
	pid, err := readUint16(buf)
	if err != nil {
		return nil, err
	}
	s := &Subscribe{Version: v, PacketID: pid}
	if pid == 0 {
		return nil, xerror.ErrMalformed
	}
	if v == V5 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		s.Properties = props
	}
	for buf.Len() > 0 {
		filter, err := UTF8DecodedStrings(false, buf)
		if err != nil {
			return nil, err
		}
		if len(filter) == 0 {
			return nil, xerror.ErrMalformed
		}
		optByte, err := buf.ReadByte()
		if err != nil {
			return nil, xerror.ErrMalformed
		}
		opts := SubOptions{QoS: optByte & 0x03}
		if v == V5 {
			opts.NoLocal = optByte&0x04 != 0
			opts.RetainAsPublished = optByte&0x08 != 0
			opts.RetainHandling = RetainHandling((optByte >> 4) & 0x03)
		}
		if opts.QoS > 2 {
			return nil, xerror.ErrMalformed
		}
		s.Filters = append(s.Filters, SubFilter{Filter: filter, Options: opts})
	}
	if len(s.Filters) == 0 {
		return nil, xerror.ErrMalformed
	}
	return s, nil
}

// Suback is the SUBSCRIBE acknowledgement, one reason code per filter in
// the same order as the request.
type Suback struct {
	Version  Version
	PacketID uint16
	Reasons  []code.Code
}

// Encode writes the SUBACK packet's wire form to w, narrowing reasons
// through the compat table for pre-5 clients.
func (s *Suback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, s.PacketID); err != nil {
		return err
	}
	if s.Version == V5 {
		if err := EncodeProperties(buf, nil); err != nil {
			return err
		}
	}
	for _, reason := range s.Reasons {
		if s.Version == V5 {
			buf.WriteByte(byte(reason))
		} else {
			buf.WriteByte(code.CompatSuback(reason))
		}
	}
	fh := &FixedHeader{PacketType: SUBACK, Flags: FixedHeaderFlagReserved}
	return encode(fh, buf, w)
}

// Unsubscribe is the MQTT UNSUBSCRIBE packet.
type Unsubscribe struct {
	Version    Version
	PacketID   uint16
	Properties Properties
	Filters    [][]byte
}

// NewUnsubscribe decodes an UNSUBSCRIBE packet from r.
func NewUnsubscribe(fh *FixedHeader, v Version, r io.Reader) (*Unsubscribe, error) {
	if fh.Flags != PubrelFlagReserved {
		return nil, xerror.ErrMalformed
	}
	rest := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(rest)
	pid, err := readUint16(buf)
	if err != nil {
		return nil, err
	}
	if pid == 0 {
		return nil, xerror.ErrMalformed
	}
	u := &Unsubscribe{Version: v, PacketID: pid}
	if v == V5 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		u.Properties = props
	}
	for buf.Len() > 0 {
		filter, err := UTF8DecodedStrings(false, buf)
		if err != nil {
			return nil, err
		}
		if len(filter) == 0 {
			return nil, xerror.ErrMalformed
		}
		u.Filters = append(u.Filters, filter)
	}
	if len(u.Filters) == 0 {
		return nil, xerror.ErrMalformed
	}
	return u, nil
}

// Unsuback is the UNSUBSCRIBE acknowledgement.
type Unsuback struct {
	Version  Version
	PacketID uint16
	Reasons  []code.Code
}

// Encode writes the UNSUBACK packet's wire form to w. Pre-5 UNSUBACK has no
// payload beyond the packet identifier.
func (u *Unsuback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := writeUint16(buf, u.PacketID); err != nil {
		return err
	}
	if u.Version == V5 {
		if err := EncodeProperties(buf, nil); err != nil {
			return err
		}
		for _, reason := range u.Reasons {
			buf.WriteByte(byte(reason))
		}
	}
	fh := &FixedHeader{PacketType: UNSUBACK, Flags: FixedHeaderFlagReserved}
	return encode(fh, buf, w)
}
