package engine

import (
	"time"

	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/packet"
)

// Stats is the {pkt, msg} counter pair spec §3 names for both directions.
// msg increments only on PUBLISH frames.
type Stats struct {
	Pkt uint64
	Msg uint64
}

// Conn is the Connection State of spec §3: the single-owner, per-connection
// value threaded through Received/Deliver/Shutdown. It is never shared
// across connections and carries no internal locking (spec §5).
type Conn struct {
	// Immutable after Init.
	Zone          string
	SendFn        SendFunc
	PeerAddress   string
	PeerCert      []byte
	NowFn         NowFunc
	Self          SelfHandle

	Session           Session
	ACL               AccessControl
	Caps              CapabilityPolicy
	ConnMgr           ConnectionManager
	BrokerRouting     Broker
	Hooks             *hook.Bus
	Metrics           MetricsSink
	MaxClientIDLen    int
	KeepaliveBackoff  float64

	// Mutated by CONNECT / entry points.
	ProtoVersion packet.Version
	ProtoName    string
	ClientID     []byte
	Username     []byte
	IsSuper      bool
	IsBridge     bool
	CleanStart   bool
	Keepalive    uint16
	MaxPacketSize uint32
	Mountpoint    string
	EnableACL     bool
	WillMessage   *Message

	SessionHandle SessionHandle
	ConnProps     packet.Properties
	AckProps      packet.Properties

	// ServerTopicAliasMax is the Topic Alias Maximum this connection
	// advertises in CONNACK: the highest alias value a client-sent PUBLISH
	// may use (SPEC_FULL §12, zone-configured).
	ServerTopicAliasMax uint16
	// ClientTopicAliasMax is the Topic Alias Maximum the client advertised
	// in CONNECT's conn_props: the highest alias value Deliver's encoder
	// may assign when sending PUBLISH to this client.
	ClientTopicAliasMax uint16
	// inboundAliases resolves a client-assigned Topic Alias back to the
	// topic it was first published with (resolveTopicAlias performs the lookup).
	inboundAliases map[uint16][]byte
	// outboundAliases tracks which Topic Alias Deliver has already assigned
	// a given topic, so repeat deliveries can omit the topic on the wire.
	outboundAliases map[string]uint16

	RecvStats Stats
	SendStats Stats

	Connected   bool
	ConnectedAt time.Time
}

// InitParams seeds a fresh Conn at Init (spec §4.A/§3 "created by Init").
type InitParams struct {
	Zone             string
	SendFn           SendFunc
	PeerAddress      string
	PeerCert         []byte
	NowFn            NowFunc
	Self             SelfHandle
	Session          Session
	ACL              AccessControl
	Caps             CapabilityPolicy
	ConnMgr          ConnectionManager
	BrokerRouting    Broker
	Hooks            *hook.Bus
	Metrics          MetricsSink
	MaxPacketSize    uint32
	Mountpoint       string
	EnableACL        bool
	MaxClientIDLen   int
	KeepaliveBackoff float64
	// ServerTopicAliasMax seeds Conn.ServerTopicAliasMax from the zone's
	// configured topic_alias_maximum (SPEC_FULL §12).
	ServerTopicAliasMax uint16
	// PreseededUsername is the username derived from the peer certificate
	// per the zone's peer_cert_as_username policy (spec §6), applied before
	// CONNECT arrives; CONNECT's own username, if present, wins.
	PreseededUsername []byte
}

// Init creates a fresh Conn. Connected starts false (spec §9: the source's
// `connected = fasle` typo is just the boolean false — no "almost connected"
// third state exists).
func Init(p InitParams) *Conn {
	backoff := p.KeepaliveBackoff
	if backoff == 0 {
		backoff = 0.75
	}
	return &Conn{
		Zone:             p.Zone,
		SendFn:           p.SendFn,
		PeerAddress:      p.PeerAddress,
		PeerCert:         p.PeerCert,
		NowFn:            p.NowFn,
		Self:             p.Self,
		Session:          p.Session,
		ACL:              p.ACL,
		Caps:             p.Caps,
		ConnMgr:          p.ConnMgr,
		BrokerRouting:    p.BrokerRouting,
		Hooks:            p.Hooks,
		Metrics:          p.Metrics,
		MaxPacketSize:    p.MaxPacketSize,
		Mountpoint:       p.Mountpoint,
		EnableACL:        p.EnableACL,
		MaxClientIDLen:   p.MaxClientIDLen,
		KeepaliveBackoff: backoff,
		ServerTopicAliasMax: p.ServerTopicAliasMax,
		Username:         p.PreseededUsername,
		ProtoVersion:     packet.V3_1_1,
		Connected:        false,
	}
}

// Info is the read-only derived view spec §4.A names.
type Info struct {
	ClientID     []byte
	Username     []byte
	ProtoVersion packet.Version
	PeerAddress  string
	Connected    bool
	ConnectedAt  time.Time
}

func (c *Conn) Info() Info {
	return Info{
		ClientID:     c.ClientID,
		Username:     c.Username,
		ProtoVersion: c.ProtoVersion,
		PeerAddress:  c.PeerAddress,
		Connected:    c.Connected,
		ConnectedAt:  c.ConnectedAt,
	}
}

// Credentials is the read-only derived view the handshake and publish/
// subscribe pipelines build Credentials values from.
func (c *Conn) Credentials() Credentials {
	return Credentials{ClientID: c.ClientID, Username: c.Username}
}

// ConnCaps is the read-only derived view over the zone's resolved caps.
func (c *Conn) ConnCaps() Caps {
	if c.Caps == nil {
		return Caps{}
	}
	return c.Caps.GetCaps(c.Zone)
}

// ConnStats is the read-only derived view spec §4.A names "stats".
func (c *Conn) ConnStats() (recv, send Stats) {
	return c.RecvStats, c.SendStats
}

// ParserSeed is the initial framer state spec §4.A/§6 names: enough for the
// framer to enforce the negotiated packet-size limit and interpret
// version-dependent wire fields.
type ParserSeed struct {
	MaxPacketSize uint32
	ProtoVersion  packet.Version
}

func (c *Conn) ParserSeed() ParserSeed {
	return ParserSeed{MaxPacketSize: c.MaxPacketSize, ProtoVersion: c.ProtoVersion}
}

func (c *Conn) now() time.Time {
	if c.NowFn != nil {
		return c.NowFn()
	}
	return time.Now()
}

func (c *Conn) send(b []byte) error {
	if c.SendFn == nil {
		return nil
	}
	return c.SendFn(b)
}
