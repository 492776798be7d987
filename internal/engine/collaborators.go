// Package engine implements the per-connection MQTT protocol engine: the
// component that ingests decoded control packets for a single client
// connection, drives its protocol state machine, and emits outbound
// packets plus calls to the collaborators declared in this file.
package engine

import (
	"context"
	"time"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
)

// SendFunc is the side-effecting byte sink the transport layer injects at
// Init (spec §6 "Outbound byte sink"). A failed send is propagated to the
// caller of Received/Deliver; the engine never retries it.
type SendFunc func(b []byte) error

// NowFunc and a self-handle are injected rather than reached for ambient
// task identity (spec §9): "the engine must not reach for ambient task
// identity. Inject now_fn and self_handle at init."
type NowFunc func() time.Time

// SelfHandle lets the engine schedule its own keepalive wakeup without
// knowing how the owning task's scheduler represents itself.
type SelfHandle interface {
	// ArmKeepalive schedules a self-delivered Shutdown(KeepaliveTimeout)
	// after d. Calling it again replaces any previously armed timer.
	ArmKeepalive(d time.Duration)
	// CancelKeepalive disarms any previously armed timer.
	CancelKeepalive()
}

// Message is the internal, transport-agnostic representation of a published
// payload, attached with its publisher identity once it leaves the Publish
// Pipeline (spec §4.D step 3).
type Message struct {
	Topic      []byte
	Payload    []byte
	QoS        byte
	Retain     bool
	Publisher  []byte // client_id of the originating publisher
	Properties packet.Properties
	// Headers carries out-of-band delivery flags the Session/Broker attach,
	// notably "retained" (spec §4.G clean_retain rule: a redelivered
	// retained message already flagged headers.retained is left alone).
	Headers map[string]bool
}

// Credentials is what the engine hands to AccessControl.Authenticate: the
// fields CONNECT supplies plus whatever the connection pre-seeded from a
// peer certificate.
type Credentials struct {
	ClientID []byte
	Username []byte
}

// SessionHandle is an opaque reference to a long-lived Session, returned by
// Session.Open and threaded back into every later Session call.
type SessionHandle interface{}

// OpenParams is everything Session.Open needs to create or resume session
// state for a freshly handshaken connection.
type OpenParams struct {
	ClientID    []byte
	CleanStart  bool
	Zone        string
	ConnectedAt time.Time
}

// Session is the long-lived per-client collaborator that buffers in-flight
// QoS>0 messages, owns subscriptions, and drives retransmission. Out of
// scope for this engine beyond the calls below (spec §1, §6).
type Session interface {
	Open(ctx context.Context, params OpenParams) (handle SessionHandle, sessionPresent bool, err error)
	Publish(ctx context.Context, handle SessionHandle, packetID uint16, msg Message) error
	Puback(ctx context.Context, handle SessionHandle, packetID uint16, reason code.Code) error
	Pubrec(ctx context.Context, handle SessionHandle, packetID uint16, reason code.Code) error
	Pubrel(ctx context.Context, handle SessionHandle, packetID uint16, reason code.Code) error
	Pubcomp(ctx context.Context, handle SessionHandle, packetID uint16, reason code.Code) error
	Subscribe(ctx context.Context, handle SessionHandle, packetID uint16, props packet.Properties, filters []packet.SubFilter) error
	Unsubscribe(ctx context.Context, handle SessionHandle, packetID uint16, filters [][]byte) error
}

// AuthResult is returned by AccessControl.Authenticate.
type AuthResult struct {
	IsSuper bool
}

// Action names what an ACL check is guarding.
type Action byte

const (
	ActionPublish Action = iota
	ActionSubscribe
)

// AccessControl is the authentication + per-topic ACL collaborator (spec
// §6). Authentication back-end implementations are a named Non-goal; the
// interface here is all the engine needs from whatever backend is plugged
// in.
type AccessControl interface {
	Authenticate(ctx context.Context, creds Credentials, password []byte) (AuthResult, error)
	CheckACL(ctx context.Context, creds Credentials, action Action, topic []byte) (allowed bool)
}

// PubCaps is what check_pub_caps validates a PUBLISH against (spec §4.D).
type PubCaps struct {
	QoS    byte
	Retain bool
}

// Caps is the zone's resolved capability set (spec §4.A "caps" derived
// view).
type Caps struct {
	MaxQoS         byte
	RetainAllowed  bool
	MaxClientIDLen int
}

// AnnotatedFilter pairs a subscribe filter with the reason code the
// Capability/ACL check chain assigned it (spec §9's "preserve original
// filter order, mark denied entries" resolution).
type AnnotatedFilter struct {
	Filter packet.SubFilter
	Reason code.Code
}

// CapabilityPolicy is the per-zone limits collaborator (spec §6).
type CapabilityPolicy interface {
	CheckPub(zone string, p PubCaps) (code.Code, bool)
	CheckSub(zone string, filters []packet.SubFilter) []AnnotatedFilter
	GetCaps(zone string) Caps
}

// ConnInfo is what the engine registers with the Connection Manager: just
// enough for the registry to route Deliver events back to this connection.
type ConnInfo struct {
	ClientID     []byte
	PeerAddress  string
	ProtoVersion packet.Version
}

// ConnectionManager maps client identifiers to connection handles (spec §6).
type ConnectionManager interface {
	Register(clientID []byte, self interface{}, info ConnInfo)
	Unregister(clientID []byte)
}

// Broker is the routing fabric that delivers published messages to
// subscribers (spec §1, §6). The engine only ever calls PublishWill on it
// from Lifecycle, to fan out a will message; ordinary published-message fanout
// happens inside Session/Broker collaboration the engine never observes.
type Broker interface {
	PublishWill(ctx context.Context, msg Message) error
}

// MetricsSink is the counter sink notified on every successful send that
// Deliver makes. Packets the inbound handlers send directly through
// sendPacket (CONNACK, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBACK, UNSUBACK,
// PINGRESP) are not reported here and are not counted in SendStats.
type MetricsSink interface {
	NotifySent(clientID []byte, packetType string, isMessage bool)
}
