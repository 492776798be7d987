package engine

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/xerror"
	"github.com/google/uuid"
)

// checkStep is the check-chain combinator signature spec §9 names:
// run_check_steps folds a vector of these over the packet/state pair.
type checkStep func(c *Conn, p *packet.Connect) code.Code

// checkProtoVersion enforces the recognized (name, version) set spec §4.C
// step 2 names.
func checkProtoVersion(c *Conn, p *packet.Connect) code.Code {
	if !packet.RecognizedProtoNameVersion(string(p.ProtocolName), p.Version) {
		return code.UnsupportedProtocolVersion
	}
	return code.Success
}

// checkClientID enforces the client-id policy spec §4.C step 2 names.
func checkClientID(c *Conn, p *packet.Connect) code.Code {
	if packet.IsVersion3(p.Version) && len(p.ClientId) == 0 {
		return code.ClientIdentifierNotValid
	}
	if len(p.ClientId) == 0 {
		if !p.CleanSession {
			return code.ClientIdentifierNotValid
		}
		return code.Success // server-assigned
	}
	if len(p.ClientId) > c.MaxClientIDLen {
		return code.ClientIdentifierNotValid
	}
	return code.Success
}

var connectChecks = []checkStep{checkProtoVersion, checkClientID}

// newClientID generates a unique server-assigned client identifier (spec
// §4.C step 4). Grounded on the fresh-identifier capability
// hlindberg-mezquit's go.mod pulls in (google/uuid, as an indirect of
// lithammer/shortuuid); formatted without dashes to keep it a compact
// MQTT-legal UTF-8 string.
func newClientID() []byte {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return []byte("beacon-" + id)
}

// handleConnect drives the CONNECT handshake described in spec §4.C.
func handleConnect(ctx context.Context, c *Conn, p *packet.Connect) error {
	if c.Connected {
		return xerror.ProtocolBadConnect
	}

	// Step 1: snapshot proposed fields.
	c.ProtoVersion = p.Version
	c.ProtoName = string(p.ProtocolName)
	c.ClientID = p.ClientId
	c.CleanStart = p.CleanSession
	c.Keepalive = p.KeepAlive
	c.ConnProps = p.Properties.Clone()
	if v, ok := c.ConnProps.Get(packet.PropTopicAliasMaximum); ok {
		c.ClientTopicAliasMax, _ = v.(uint16)
	}
	willRawTopic, willMessage := snapshotWill(p)
	c.ConnectedAt = c.now()

	fail := func(reason code.Code) error {
		ack := p.NewConnackPacket(reason, false)
		_ = sendPacket(c, ack)
		return xerror.WithReason(xerror.UnspecifiedError, reason)
	}

	// Step 2: ordered check chain.
	for _, step := range connectChecks {
		if reason := step(c, p); reason != code.Success {
			return fail(reason)
		}
	}

	// Step 3: authenticate.
	creds := Credentials{ClientID: c.ClientID, Username: p.Username}
	if len(p.Username) > 0 {
		c.Username = p.Username
	}
	if c.ACL == nil {
		return fail(code.UnspecifiedError)
	}
	auth, err := c.ACL.Authenticate(ctx, creds, p.Password)
	if err != nil {
		return fail(code.BadUsernameOrPassword)
	}
	c.IsSuper = auth.IsSuper

	// Step 4: generate client id if empty.
	if len(c.ClientID) == 0 {
		c.ClientID = newClientID()
		c.AckProps = c.AckProps.Set(packet.PropAssignedClientID, c.ClientID)
	}

	// Step 5: open session.
	if c.Session == nil {
		return fail(code.UnspecifiedError)
	}
	handle, sessionPresent, err := c.Session.Open(ctx, OpenParams{
		ClientID:    c.ClientID,
		CleanStart:  c.CleanStart,
		Zone:        c.Zone,
		ConnectedAt: c.ConnectedAt,
	})
	if err != nil {
		return fail(code.UnspecifiedError)
	}
	c.SessionHandle = handle
	c.Connected = true

	// Step 6: register.
	if c.ConnMgr != nil {
		c.ConnMgr.Register(c.ClientID, c.Self, ConnInfo{
			ClientID:     c.ClientID,
			PeerAddress:  c.PeerAddress,
			ProtoVersion: c.ProtoVersion,
		})
	}

	// Step 7: arm keepalive.
	if c.Keepalive > 0 && c.Self != nil {
		c.Self.ArmKeepalive(roundKeepalive(c.Keepalive, c.KeepaliveBackoff))
	}

	// Step 8: hook client.connected.
	if c.Hooks != nil {
		c.Hooks.Run(hook.ClientConnected, c.Info())
	}

	// Step 9: mountpoint variable substitution.
	c.Mountpoint = substituteMountpoint(c.Mountpoint, c.ClientID, c.Username)
	if willMessage != nil {
		willMessage.Topic = applyMountpoint(c.Mountpoint, willRawTopic)
		c.WillMessage = willMessage
	}

	// Step 10: emit CONNACK.
	if c.ProtoVersion == packet.V5 && c.ServerTopicAliasMax > 0 {
		c.AckProps = c.AckProps.Set(packet.PropTopicAliasMaximum, c.ServerTopicAliasMax)
	}
	ack := p.NewConnackPacket(code.Success, sessionPresent)
	ack.Properties = c.AckProps
	return sendPacket(c, ack)
}

func snapshotWill(p *packet.Connect) (rawTopic []byte, msg *Message) {
	if !p.WillFlag {
		return nil, nil
	}
	return p.WillTopic, &Message{
		Topic:      p.WillTopic,
		Payload:    p.WillMessage,
		QoS:        p.WillQoS,
		Retain:     p.WillRetain,
		Properties: p.WillProperties,
	}
}

// substituteMountpoint replaces %c with clientID and %u with username (if
// defined) in the mountpoint template (spec §4.C step 9).
func substituteMountpoint(template string, clientID, username []byte) string {
	if template == "" {
		return ""
	}
	out := bytes.ReplaceAll([]byte(template), []byte("%c"), clientID)
	if len(username) > 0 {
		out = bytes.ReplaceAll(out, []byte("%u"), username)
	}
	return string(out)
}

// applyMountpoint prepends the mountpoint prefix to topic.
func applyMountpoint(mountpoint string, topic []byte) []byte {
	if mountpoint == "" {
		return topic
	}
	return append([]byte(mountpoint), topic...)
}

// stripMountpoint removes the mountpoint prefix from topic if present (spec
// §4.G, testable property 5).
func stripMountpoint(mountpoint string, topic []byte) []byte {
	if mountpoint == "" {
		return topic
	}
	prefix := []byte(mountpoint)
	if bytes.HasPrefix(topic, prefix) {
		return topic[len(prefix):]
	}
	return topic
}

// roundKeepalive computes round(keepalive * backoff) seconds (spec §4.C
// step 7), truncated to whole seconds the way time.Duration demands.
func roundKeepalive(keepalive uint16, backoff float64) time.Duration {
	seconds := float64(keepalive)*backoff + 0.5
	return time.Duration(seconds) * time.Second
}
