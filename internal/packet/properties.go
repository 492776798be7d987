package packet

import (
	"bytes"
	"io"

	"github.com/beaconmq/beacon/internal/binary"
)

// PropertyID is an MQTT5 property identifier.
type PropertyID byte

// Property identifiers the engine reads or sets. Not exhaustive; limited to
// the ones SPEC_FULL names a use for.
const (
	PropSessionExpiryInterval  PropertyID = 0x11
	PropAssignedClientID       PropertyID = 0x12
	PropServerKeepAlive        PropertyID = 0x13
	PropAuthenticationMethod   PropertyID = 0x15
	PropAuthenticationData     PropertyID = 0x16
	PropRequestProblemInfo     PropertyID = 0x17
	PropReceiveMaximum         PropertyID = 0x21
	PropTopicAliasMaximum      PropertyID = 0x22
	PropTopicAlias             PropertyID = 0x23
	PropMaximumQoS             PropertyID = 0x24
	PropRetainAvailable        PropertyID = 0x25
	PropUserProperty           PropertyID = 0x26
	PropMaximumPacketSize      PropertyID = 0x27
	PropWildcardSubAvailable   PropertyID = 0x28
	PropSubIDAvailable         PropertyID = 0x29
	PropSharedSubAvailable     PropertyID = 0x2A
	PropReasonString           PropertyID = 0x1F
	PropResponseTopic          PropertyID = 0x08
	PropCorrelationData        PropertyID = 0x09
	PropSubscriptionIdentifier PropertyID = 0x0B
	PropContentType            PropertyID = 0x03
	PropPayloadFormatIndicator PropertyID = 0x01
	PropMessageExpiryInterval  PropertyID = 0x02
	PropWillDelayInterval      PropertyID = 0x18
)

// Properties is an MQTT5 property set (conn_props/ack_props in spec §3).
// Values are stored as the Go type appropriate to the property's wire type:
// uint32 for four-byte integers, uint16 for two-byte integers, byte for
// single-byte, []byte for binary/UTF8 data, and [][2][]byte for the
// repeatable UserProperty pairs.
type Properties map[PropertyID]interface{}

// Clone returns a shallow copy, enough for the engine's need to carry a
// per-connection property map without aliasing it across entry points.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns a property value and whether it was present.
func (p Properties) Get(id PropertyID) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[id]
	return v, ok
}

// Set stores a property value, allocating the map if needed. Returns the
// (possibly newly allocated) map for assignment back, matching the idiom
// Go maps require.
func (p Properties) Set(id PropertyID, v interface{}) Properties {
	if p == nil {
		p = Properties{}
	}
	p[id] = v
	return p
}

// byteProps, uint16Props, uint32Props, varIntProps and binaryProps classify
// how a property's value is encoded, keyed by the identifiers this engine
// actually reads/writes.
var byteProps = map[PropertyID]bool{
	PropRequestProblemInfo:   true,
	PropMaximumQoS:           true,
	PropRetainAvailable:      true,
	PropWildcardSubAvailable: true,
	PropSubIDAvailable:       true,
	PropSharedSubAvailable:   true,
	PropPayloadFormatIndicator: true,
}

var uint16Props = map[PropertyID]bool{
	PropServerKeepAlive:   true,
	PropReceiveMaximum:    true,
	PropTopicAliasMaximum: true,
	PropTopicAlias:        true,
}

var uint32Props = map[PropertyID]bool{
	PropSessionExpiryInterval: true,
	PropMaximumPacketSize:     true,
	PropWillDelayInterval:     true,
	PropMessageExpiryInterval: true,
}

var varIntProps = map[PropertyID]bool{
	PropSubscriptionIdentifier: true,
}

var binaryProps = map[PropertyID]bool{
	PropAssignedClientID:     true,
	PropAuthenticationMethod: true,
	PropAuthenticationData:   true,
	PropReasonString:         true,
	PropResponseTopic:        true,
	PropCorrelationData:      true,
	PropContentType:          true,
}

// EncodeProperties writes an MQTT5 property set: a variable-byte length
// prefix followed by each (id, value) pair.
func EncodeProperties(w io.Writer, props Properties) error {
	buf := &bytes.Buffer{}
	for id, v := range props {
		switch {
		case byteProps[id]:
			buf.WriteByte(byte(id))
			buf.WriteByte(v.(byte))
		case uint16Props[id]:
			buf.WriteByte(byte(id))
			if err := binary.WriteUint16(buf, v.(uint16)); err != nil {
				return err
			}
		case uint32Props[id]:
			buf.WriteByte(byte(id))
			if err := binary.WriteUint32(buf, v.(uint32)); err != nil {
				return err
			}
		case varIntProps[id]:
			buf.WriteByte(byte(id))
			if err := binary.WriteVarInt(buf, v.(uint32)); err != nil {
				return err
			}
		case binaryProps[id]:
			buf.WriteByte(byte(id))
			if err := binary.WriteString(buf, v.([]byte)); err != nil {
				return err
			}
		case id == PropUserProperty:
			for _, pair := range v.([][2][]byte) {
				buf.WriteByte(byte(id))
				if err := binary.WriteString(buf, pair[0]); err != nil {
					return err
				}
				if err := binary.WriteString(buf, pair[1]); err != nil {
					return err
				}
			}
		}
	}
	if err := binary.WriteVarInt(w, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// DecodeProperties reads an MQTT5 property set from buf.
func DecodeProperties(buf *bytes.Buffer) (Properties, error) {
	length, err := binary.ReadVarInt(buf)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(buf, raw); err != nil {
		return nil, err
	}
	sub := bytes.NewBuffer(raw)
	props := Properties{}
	for sub.Len() > 0 {
		idByte, err := sub.ReadByte()
		if err != nil {
			return nil, err
		}
		id := PropertyID(idByte)
		switch {
		case byteProps[id]:
			b, err := sub.ReadByte()
			if err != nil {
				return nil, err
			}
			props[id] = b
		case uint16Props[id]:
			v, err := binary.ReadUint16(sub)
			if err != nil {
				return nil, err
			}
			props[id] = v
		case uint32Props[id]:
			v, err := binary.ReadUint32(sub)
			if err != nil {
				return nil, err
			}
			props[id] = v
		case varIntProps[id]:
			v, err := binary.ReadVarInt(sub)
			if err != nil {
				return nil, err
			}
			props[id] = v
		case binaryProps[id]:
			v, err := binary.ReadString(sub)
			if err != nil {
				return nil, err
			}
			props[id] = []byte(v)
		case id == PropUserProperty:
			k, err := binary.ReadString(sub)
			if err != nil {
				return nil, err
			}
			v, err := binary.ReadString(sub)
			if err != nil {
				return nil, err
			}
			existing, _ := props[id].([][2][]byte)
			props[id] = append(existing, [2][]byte{[]byte(k), []byte(v)})
		default:
			return nil, io.ErrUnexpectedEOF
		}
	}
	return props, nil
}
