/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Configuration interface {
	// Validate validates the configuration.
	// If returns error, the broker will not start.
	Validate() error
	// Unmarshaler defined how to unmarshal YAML into the config structure.
	//yaml.Unmarshaler
}
type Config struct {
	Mqtt  Mqtt            `yaml:"mqtt"`
	Zones map[string]Zone `yaml:"zones" validate:"dive"`
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, z := range c.Zones {
		if err := validate.Struct(z); err != nil {
			return fmt.Errorf("config: zone %q: %w", name, err)
		}
	}
	return nil
}

// PeerCertUsernamePolicy controls whether (and how) a connecting client's
// TLS peer certificate seeds the connection's username when none is
// supplied on CONNECT.
type PeerCertUsernamePolicy string

const (
	PeerCertUsernameNone = PeerCertUsernamePolicy("none")
	PeerCertUsernameCN   = PeerCertUsernamePolicy("cn")
	PeerCertUsernameDN   = PeerCertUsernamePolicy("dn")
)

// Zone is the named policy bucket spec §6/GLOSSARY describes: the
// per-client configuration a connection's `zone` field looks up.
type Zone struct {
	// MaxPacketSize seeds the framer's limit (parser_seed, spec §4.A).
	MaxPacketSize uint32 `yaml:"max_packet_size" validate:"gte=0"`
	// Mountpoint is the topic-prefix template, may contain %c/%u.
	Mountpoint string `yaml:"mountpoint"`
	// EnableACL toggles per-topic ACL checks; false or is_super bypasses them.
	EnableACL bool `yaml:"enable_acl"`
	// MaxClientIDLen bounds a client-supplied (non-empty) client id's length.
	MaxClientIDLen int `yaml:"max_clientid_len" validate:"gte=1"`
	// KeepaliveBackoff scales the negotiated keepalive before arming the
	// server-side expiry timer (spec §4.C step 7); defaults to 0.75.
	KeepaliveBackoff float64 `yaml:"keepalive_backoff" validate:"gte=0"`
	// PeerCertAsUsername selects how (if at all) a peer certificate seeds
	// the connection's username.
	PeerCertAsUsername PeerCertUsernamePolicy `yaml:"peer_cert_as_username" validate:"oneof=cn dn none"`
	// MaxQoS is the highest QoS a publish from a client in this zone may use.
	MaxQoS byte `yaml:"max_qos" validate:"lte=2"`
	// AllowRetain toggles whether PUBLISH with the retain flag is accepted.
	AllowRetain bool `yaml:"allow_retain"`
	// TopicAliasMax is the highest Topic Alias value this zone's connections
	// will accept from a client (CONNACK's Topic Alias Maximum, SPEC_FULL
	// §12); 0 disables inbound topic aliasing for the zone.
	TopicAliasMax uint16 `yaml:"topic_alias_maximum"`
}

// DefaultZone returns a Zone with the spec-documented defaults applied
// (keepalive_backoff 0.75, no peer-cert seeding).
func DefaultZone() Zone {
	return Zone{
		MaxPacketSize:      268435455,
		MaxClientIDLen:     23,
		KeepaliveBackoff:   0.75,
		PeerCertAsUsername: PeerCertUsernameNone,
		MaxQoS:             2,
		AllowRetain:        true,
		TopicAliasMax:      16,
	}
}

type Mqtt struct {
	// SessionExpiry is the maximum session expiry interval in seconds.
	SessionExpiry time.Duration `yaml:"session_expiry"`
	// SessionExpiryCheckInterval is the interval time for session expiry checker to check whether there
	// are expired sessions.
	SessionExpiryCheckInterval time.Duration `yaml:"session_expiry_check_interval"`
	// MessageExpiry is the maximum lifetime of the message in seconds.
	// If a message in the queue is not sent in MessageExpiry time, it will be removed, which means it will not be sent to the subscriber.
	MessageExpiry time.Duration `yaml:"message_expiry"`
	// InflightExpiry is the lifetime of the "inflight" message in seconds.
	// If a "inflight" message is not acknowledged by a client in InflightExpiry time, it will be removed when the message queue is full.
	InflightExpiry time.Duration `yaml:"inflight_expiry"`
	// MaxPacketSize is the maximum packet size that the server is willing to accept from the client
	MaxPacketSize uint32 `yaml:"max_packet_size"`
	// ReceiveMax limits the number of QoS 1 and QoS 2 publications that the server is willing to process concurrently for the client.
	ReceiveMax uint16 `yaml:"server_receive_maximum"`
	// MaxKeepAlive is the maximum keep alive time in seconds allows by the server.
	// If the client requests a keepalive time bigger than MaxKeepalive,
	// the server will use MaxKeepAlive as the keepalive time.
	// In this case, if the client version is v5, the server will set MaxKeepalive into CONNACK to inform the client.
	// But if the client version is 3.x, the server has no way to inform the client that the keepalive time has been changed.
	MaxKeepAlive uint16 `yaml:"max_keepalive"`
	// TopicAliasMax indicates the highest value that the server will accept as a Topic Alias sent by the client.
	// No-op if the client version is MQTTv3.x
	TopicAliasMax uint16 `yaml:"topic_alias_maximum"`
	// SubscriptionIDAvailable indicates whether the server supports Subscription Identifiers.
	// No-op if the client version is MQTTv3.x .
	SubscriptionIDAvailable bool `yaml:"subscription_identifier_available"`
	// SharedSubAvailable indicates whether the server supports Shared Subscriptions.
	SharedSubAvailable bool `yaml:"shared_subscription_available"`
	// WildcardSubAvailable indicates whether the server supports Wildcard Subscriptions.
	WildcardAvailable bool `yaml:"wildcard_subscription_available"`
	// RetainAvailable indicates whether the server supports retained messages.
	RetainAvailable bool `yaml:"retain_available"`
	// MaxQueuedMsg is the maximum queue length of the outgoing messages.
	// If the queue is full, some message will be dropped.
	// The message dropping strategy is described in the document of the persistence/queue.Store interface.
	MaxQueueMessages int `yaml:"max_queue_messages"`
	// MaxInflight limits inflight message length of the outgoing messages.
	// Inflight message is also stored in the message queue, so it must be less than or equal to MaxQueuedMsg.
	// Inflight message is the QoS 1 or QoS 2 message that has been sent out to a client but not been acknowledged yet.
	MaxInflight uint16 `yaml:"max_inflight"`
	// MaximumQoS is the highest QOS level permitted for a Publish.
	MaximumQoS uint8 `yaml:"maximum_qos"`
	// QueueQos0Msg indicates whether to store QoS 0 message for a offline session.
	QueueQos0Msg bool `yaml:"queue_qos0_messages"`
	// DeliveryMode is the delivery mode. The possible value can be "overlap" or "onlyonce".
	// It is possible for a client’s subscriptions to overlap so that a published message might match multiple filters.
	// When set to "overlap" , the server will deliver one message for each matching subscription and respecting the subscription’s QoS in each case.
	// When set to "onlyOnce",the server will deliver the message to the client respecting the maximum QoS of all the matching subscriptions.
	DeliveryMode string `yaml:"delivery_mode"`
	// AllowZeroLenClientId indicates whether to allow a client to connect with empty client id.
	AllowZeroLenClientId bool `yaml:"allow_zero_len_client_id"`
	// TCPListen is the listen address ServeTCP binds, e.g. ":1883".
	TCPListen string `yaml:"tcp_listen"`
	// WSListen is the listen address ServeWS binds, e.g. ":8083".
	WSListen string `yaml:"ws_listen"`
	// DefaultZone names the Zones entry new connections resolve to when the
	// transport layer has no more specific zone to offer (a single-listener
	// deployment names one zone here).
	DefaultZone string `yaml:"default_zone"`
	// JaegerEndpoint, when set, sends spans to a Jaeger collector over HTTP.
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
	// ZipkinEndpoint, when set and JaegerEndpoint is empty, sends spans to a
	// Zipkin collector instead.
	ZipkinEndpoint string `yaml:"zipkin_endpoint"`
	// LogFile, when set, additionally sinks JSON logs through a rotating
	// lumberjack writer (see internal/xlog.Configure).
	LogFile string `yaml:"log_file"`
}

// Load reads and validates a YAML configuration file at path, the way a
// zap/validator-based Go service typically bootstraps from a config flag.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
