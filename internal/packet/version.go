package packet

import "github.com/beaconmq/beacon/internal/code"

// Version is the negotiated MQTT protocol level. It shares its underlying
// values with code.Version so the engine can pass one straight through to
// the reason-code compat table without a conversion function at every call
// site.
type Version = code.Version

const (
	V3     = code.V3
	V3_1_1 = code.V3_1_1
	V5     = code.V5
)

// protocolName is the wire-level name paired with a version, e.g. MQIsdp for
// the ancient V3 level. version2protocolName enumerates the recognized
// (name, version) set spec §4.C requires.
var version2protocolName = map[Version]string{
	V3:     "MQIsdp",
	V3_1_1: "MQTT",
	V5:     "MQTT",
}

// IsVersion3 reports whether v is the pre-3.1.1 protocol level (the only
// level that uses the "MQIsdp" protocol name and the oldest CONNECT payload
// rules).
func IsVersion3(v Version) bool {
	return v == V3
}

// RecognizedProtoNameVersion reports whether (name, version) is one of the
// three combinations the engine accepts: ("MQIsdp", V3), ("MQTT", V3_1_1),
// ("MQTT", V5).
func RecognizedProtoNameVersion(name string, v Version) bool {
	want, ok := version2protocolName[v]
	return ok && want == name
}
