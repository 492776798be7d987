package engine

import "bytes"

// validTopicName reports whether topic is legal on a PUBLISH: non-empty,
// UTF-8 (decode already guarantees that), and free of wildcard characters
// [MQTT-3.3.2-2].
func validTopicName(topic []byte) bool {
	if len(topic) == 0 {
		return false
	}
	return !bytes.ContainsAny(topic, "+#")
}

// validTopicFilter reports whether filter is a legal SUBSCRIBE/UNSUBSCRIBE
// filter: '+' only occupies a whole level, '#' only appears alone as the
// final level [MQTT-4.7.1-2, MQTT-4.7.1-3].
func validTopicFilter(filter []byte) bool {
	if len(filter) == 0 {
		return false
	}
	levels := bytes.Split(filter, []byte("/"))
	for i, level := range levels {
		switch {
		case bytes.Equal(level, []byte("#")):
			if i != len(levels)-1 {
				return false
			}
		case bytes.Equal(level, []byte("+")):
			// whole-level wildcard, always fine.
		default:
			if bytes.ContainsAny(level, "+#") {
				return false
			}
		}
	}
	return true
}

// sharedGroupPrefix is the $share/<group>/ syntax SPEC_FULL §12 asks the
// parser to tolerate without doing any group-fanout logic itself.
var sharedGroupPrefix = []byte("$share/")

// isSystemTopic reports whether topic is a read-only $SYS-style topic that
// ordinary clients may not publish to (SPEC_FULL §12).
func isSystemTopic(topic []byte) bool {
	return len(topic) > 0 && topic[0] == '$' && !bytes.HasPrefix(topic, sharedGroupPrefix)
}
