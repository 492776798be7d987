package packet

import (
	"bytes"
	"io"

	"github.com/beaconmq/beacon/internal/xerror"
)

// Publish is the MQTT PUBLISH packet.
type Publish struct {
	Version    Version
	Dup        bool
	QoS        byte
	Retain     bool
	Topic      []byte
	PacketID   uint16
	Properties Properties
	Payload    []byte
}

// NewPublish decodes a PUBLISH packet from r.
func NewPublish(fh *FixedHeader, v Version, r io.Reader) (*Publish, error) {
	rest := make([]byte, fh.RemainLength)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(rest)

	p := &Publish{
		Version: v,
		Dup:     fh.Flags&0x08 != 0,
		QoS:     (fh.Flags >> 1) & 0x03,
		Retain:  fh.Flags&0x01 != 0,
	}
	if p.QoS > 2 {
		return nil, xerror.ErrMalformed
	}

	topic, err := UTF8DecodedStrings(true, buf)
	if err != nil {
		return nil, err
	}
	p.Topic = topic

	if p.QoS > 0 {
		pid, err := readUint16(buf)
		if err != nil {
			return nil, err
		}
		if pid == 0 {
			return nil, xerror.ErrMalformed
		}
		p.PacketID = pid
	}

	if v == V5 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return nil, err
		}
		p.Properties = props
	}

	// An empty topic is only legal on MQTT5 when a Topic Alias resolves it
	// to a previously-seen topic (the engine's resolveTopicAlias performs the alias lookup);
	// on every other version it is malformed.
	if len(p.Topic) == 0 {
		if _, hasAlias := p.Properties.Get(PropTopicAlias); !hasAlias {
			return nil, xerror.ErrMalformed
		}
	}

	p.Payload = buf.Bytes()
	return p, nil
}

// Encode writes the PUBLISH packet's wire form to w.
func (p *Publish) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	topicBytes, _, err := UTF8EncodedStrings(p.Topic)
	if err != nil {
		return err
	}
	buf.Write(topicBytes)
	if p.QoS > 0 {
		if err := writeUint16(buf, p.PacketID); err != nil {
			return err
		}
	}
	if p.Version == V5 {
		if err := EncodeProperties(buf, p.Properties); err != nil {
			return err
		}
	}
	buf.Write(p.Payload)

	flags := byte(0)
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}
	fh := &FixedHeader{PacketType: PUBLISH, Flags: flags}
	return encode(fh, buf, w)
}
