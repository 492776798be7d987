// Package binary implements the byte-level read/write primitives shared by
// every packet codec in internal/packet.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidStringLength is returned when a UTF-8 string's declared length
// does not match the bytes actually available.
var ErrInvalidStringLength = errors.New("binary: invalid string length")

// ReadBool reads a single byte and interprets it as a boolean (non-zero = true).
func ReadBool(r io.Reader) (bool, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// WriteBool writes b as a single 0x00/0x01 byte.
func WriteBool(w io.Writer, b bool) error {
	v := byte(0)
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint16 reads a big-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	b := make([]byte, 2)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// WriteUint16 writes v as a big-endian uint16.
func WriteUint16(w io.Writer, v uint16) error {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	_, err := w.Write(b)
	return err
}

// ReadUint32 reads a big-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// WriteUint32 writes v as a big-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	_, err := w.Write(b)
	return err
}

// ReadString reads a length-prefixed (2-byte big-endian length) UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	length, err := ReadUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return "", ErrInvalidStringLength
	}
	if err != nil {
		return "", err
	}
	if n != int(length) {
		return "", ErrInvalidStringLength
	}
	return string(buf), nil
}

// WriteString writes s as a length-prefixed (2-byte big-endian length) string.
func WriteString(w io.Writer, s []byte) error {
	if err := WriteUint16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

// ReadVarInt reads an MQTT variable-byte integer (used for MQTT5 property
// lengths and the remaining-length field).
func ReadVarInt(r io.Reader) (uint32, error) {
	var value uint32
	var multiplier uint32 = 1
	b := make([]byte, 1)
	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(r, b); err != nil {
			return 0, err
		}
		value += uint32(b[0]&0x7f) * multiplier
		if b[0]&0x80 == 0 {
			return value, nil
		}
		multiplier *= 128
	}
	return 0, errors.New("binary: malformed variable byte integer")
}

// WriteVarInt writes v as an MQTT variable-byte integer.
func WriteVarInt(w io.Writer, v uint32) error {
	for {
		b := byte(v % 128)
		v /= 128
		if v > 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	}
}
