package code

// Version mirrors the three protocol generations the engine supports. It is
// redeclared here (rather than imported from packet) so this package has no
// dependency on the wire-codec layer; internal/packet.Version is defined in
// terms of the same three values and converts to/from code.Version at the
// engine boundary.
type Version byte

const (
	V3     Version = 3
	V3_1_1 Version = 4
	V5     Version = 5
)

// connackCompat is the pre-5 CONNACK return-code table (MQTT 3.1/3.1.1
// §3.2.2.3). Values not present here have no legal pre-5 equivalent and fall
// back to ServerUnavailable's entry (0x03), the closest catch-all the old
// table offers.
var connackCompat = map[Code]byte{
	Success:                    0x00,
	UnsupportedProtocolVersion: 0x01,
	ClientIdentifierNotValid:   0x02,
	ServerUnavailable:          0x03,
	BadUsernameOrPassword:      0x04,
	NotAuthorized:              0x05,
}

// subackCompat is the pre-5 SUBACK return-code table: granted QoS values
// pass through unchanged, anything else becomes the single legacy failure
// code 0x80.
var subackCompat = map[Code]byte{
	GrantedQoS0: 0x00,
	GrantedQoS1: 0x01,
	GrantedQoS2: 0x02,
}

const legacyFailure byte = 0x80

// CompatConnack translates a v5 CONNACK reason code into the byte a pre-5
// client expects. v5 itself is the identity translation, handled by the
// caller checking the protocol version before calling this.
func CompatConnack(reason Code) byte {
	if b, ok := connackCompat[reason]; ok {
		return b
	}
	return connackCompat[ServerUnavailable]
}

// CompatSuback translates a v5 SUBACK reason code into the byte a pre-5
// client expects.
func CompatSuback(reason Code) byte {
	if b, ok := subackCompat[reason]; ok {
		return b
	}
	return legacyFailure
}

// DisconnectSuppressed reports whether a DISCONNECT packet must be
// suppressed entirely for the given protocol version (spec §4.G: pre-5
// clients never receive a server-initiated DISCONNECT packet).
func DisconnectSuppressed(v Version) bool {
	return v != V5
}
