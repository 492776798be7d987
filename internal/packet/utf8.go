package packet

import (
	"bytes"

	"github.com/beaconmq/beacon/internal/binary"
	"github.com/beaconmq/beacon/internal/xerror"
)

// UTF8EncodedStrings returns the 2-byte-length-prefixed wire form of s,
// along with its total encoded length.
func UTF8EncodedStrings(s []byte) ([]byte, int, error) {
	buf := &bytes.Buffer{}
	if err := binary.WriteString(buf, s); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), buf.Len(), nil
}

// UTF8DecodedStrings reads a 2-byte-length-prefixed string from buf. When
// allowEmpty is false, a zero-length string is rejected.
func UTF8DecodedStrings(allowEmpty bool, buf *bytes.Buffer) ([]byte, error) {
	s, err := binary.ReadString(buf)
	if err != nil {
		return nil, err
	}
	if !allowEmpty && len(s) == 0 {
		return nil, xerror.ErrMalformed
	}
	return []byte(s), nil
}

func writeUint16(w interface{ Write([]byte) (int, error) }, v uint16) error {
	return binary.WriteUint16(w, v)
}

func readUint16(buf *bytes.Buffer) (uint16, error) {
	return binary.ReadUint16(buf)
}
