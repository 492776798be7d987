package engine

import (
	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/packet"
)

// EventKind discriminates the outbound events Deliver accepts (spec §4.G).
type EventKind byte

const (
	EventPublish EventKind = iota
	EventConnack
	EventPuback
	EventPubrec
	EventPubrel
	EventPubcomp
	EventSuback
	EventUnsuback
	EventDisconnect
)

// Event is the outbound event envelope originating from Session, Broker, or
// internal logic (spec §4.G); callers populate only the fields their Kind
// needs.
type Event struct {
	Kind EventKind

	PacketID uint16
	Message  Message

	Reason         code.Code
	Reasons        []code.Code
	SessionPresent bool
	Properties     packet.Properties
}

// Deliver translates an outbound event into wire packets and sends them
// (spec §4.G). It is the second of the engine's three entry points; callers
// must never invoke it concurrently with Received on the same Conn (spec
// §5).
func Deliver(c *Conn, ev Event) error {
	switch ev.Kind {
	case EventPublish:
		return deliverPublish(c, ev)
	case EventConnack:
		return deliverConnack(c, ev)
	case EventPuback:
		return deliverSend(c, packet.NewPuback(ev.PacketID, c.ProtoVersion, ev.Reason))
	case EventPubrec:
		return deliverSend(c, packet.NewPubrec(ev.PacketID, c.ProtoVersion, ev.Reason))
	case EventPubrel:
		return deliverSend(c, packet.NewPubrel(ev.PacketID, c.ProtoVersion, ev.Reason))
	case EventPubcomp:
		return deliverSend(c, packet.NewPubcomp(ev.PacketID, c.ProtoVersion, ev.Reason))
	case EventSuback:
		return deliverSend(c, &packet.Suback{Version: c.ProtoVersion, PacketID: ev.PacketID, Reasons: ev.Reasons})
	case EventUnsuback:
		return deliverSend(c, &packet.Unsuback{Version: c.ProtoVersion, PacketID: ev.PacketID, Reasons: ev.Reasons})
	case EventDisconnect:
		return deliverDisconnect(c, ev)
	}
	return nil
}

// deliverPublish runs the message.delivered hook, applies the clean_retain
// rule, strips the mountpoint prefix, and sends the resulting PUBLISH (spec
// §4.G bullet 1).
func deliverPublish(c *Conn, ev Event) error {
	if c.Hooks != nil {
		c.Hooks.Run(hook.MessageDelivered, ev.Message)
	}

	msg := ev.Message
	retain := msg.Retain
	if !c.IsBridge && retain && !msg.Headers["retained"] {
		retain = false
	}

	topic := stripMountpoint(c.Mountpoint, msg.Topic)
	props := msg.Properties
	sendTopic := topic
	if alias, reuse, ok := assignOutboundAlias(c, topic); ok {
		props = props.Clone().Set(packet.PropTopicAlias, alias)
		if reuse {
			sendTopic = nil
		}
	}

	p := &packet.Publish{
		Version:    c.ProtoVersion,
		QoS:        msg.QoS,
		Retain:     retain,
		Topic:      sendTopic,
		PacketID:   ev.PacketID,
		Properties: props,
		Payload:    msg.Payload,
	}
	return deliverSendIsMessage(c, p, true)
}

// assignOutboundAlias returns the Topic Alias Deliver should attach for
// topic, allocating a new one the first time topic is seen (up to the
// client's negotiated ClientTopicAliasMax) and reusing it thereafter.
// reuse is true once topic already has an alias, telling the caller it may
// omit the topic on the wire; ok is false when aliasing is disabled or the
// allocation table is full, in which case the full topic must be sent with
// no alias property. Grounded on the assign-then-reuse bookkeeping in
// gonzalop-mq/topic_alias.go, mirrored for the server's outbound direction.
func assignOutboundAlias(c *Conn, topic []byte) (alias uint16, reuse bool, ok bool) {
	if c.ProtoVersion != packet.V5 || c.ClientTopicAliasMax == 0 {
		return 0, false, false
	}
	key := string(topic)
	if existing, known := c.outboundAliases[key]; known {
		return existing, true, true
	}
	if uint16(len(c.outboundAliases)) >= c.ClientTopicAliasMax {
		return 0, false, false
	}
	if c.outboundAliases == nil {
		c.outboundAliases = make(map[string]uint16)
	}
	next := uint16(len(c.outboundAliases)) + 1
	c.outboundAliases[key] = next
	return next, false, true
}

// deliverConnack sends a CONNACK for a connack event originated outside the
// CONNECT handshake itself (e.g. a re-issued CONNACK after an async auth
// decision); compat translation happens inside Connack.Encode.
func deliverConnack(c *Conn, ev Event) error {
	ack := &packet.Connack{Version: c.ProtoVersion, Reason: ev.Reason, SessionPresent: ev.SessionPresent, Properties: ev.Properties}
	return deliverSend(c, ack)
}

// deliverDisconnect sends a server-initiated DISCONNECT, suppressed entirely
// on pre-5 connections (spec §4.G bullet 3).
func deliverDisconnect(c *Conn, ev Event) error {
	if code.DisconnectSuppressed(code.Version(c.ProtoVersion)) {
		return nil
	}
	d := &packet.Disconnect{Version: c.ProtoVersion, Reason: ev.Reason, Properties: ev.Properties}
	return deliverSend(c, d)
}

// deliverSend sends p and bumps send_stats.pkt on success (spec §4.G "Every
// successful send increments send_stats").
func deliverSend(c *Conn, p packet.Packet) error {
	return deliverSendIsMessage(c, p, false)
}

func deliverSendIsMessage(c *Conn, p packet.Packet, isMessage bool) error {
	if err := sendPacket(c, p); err != nil {
		return err
	}
	c.SendStats.Pkt++
	if isMessage {
		c.SendStats.Msg++
	}
	if c.Metrics != nil {
		c.Metrics.NotifySent(c.ClientID, packetKindName(p), isMessage)
	}
	return nil
}

func packetKindName(p packet.Packet) string {
	switch p.(type) {
	case *packet.Publish:
		return "PUBLISH"
	case *packet.Connack:
		return "CONNACK"
	case *packet.Puback:
		return "PUBACK"
	case *packet.Pubrec:
		return "PUBREC"
	case *packet.Pubrel:
		return "PUBREL"
	case *packet.Pubcomp:
		return "PUBCOMP"
	case *packet.Suback:
		return "SUBACK"
	case *packet.Unsuback:
		return "UNSUBACK"
	case *packet.Disconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}
