package stream

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrOutOfRange is returned when an accessor would read past the buffer.
var ErrOutOfRange = errors.New("stream: offset out of range")

func check(b []byte, off, n int) error {
	if off < 0 || n < 0 || off > len(b) || len(b)-off < n {
		return errors.Wrapf(ErrOutOfRange, "read %d bytes at 0x%X (len 0x%X)", n, off, len(b))
	}
	return nil
}

// Bytes returns the n bytes at off.
func Bytes(b []byte, off, n int) ([]byte, error) {
	if err := check(b, off, n); err != nil {
		return nil, err
	}
	return b[off : off+n], nil
}

// Uint8 reads one byte at off.
func Uint8(b []byte, off int) (uint8, error) {
	if err := check(b, off, 1); err != nil {
		return 0, err
	}
	return b[off], nil
}

// Uint16LE reads a little-endian 16-bit value at off.
func Uint16LE(b []byte, off int) (uint16, error) {
	if err := check(b, off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[off:]), nil
}

// Uint24LE reads a little-endian 24-bit value at off.
func Uint24LE(b []byte, off int) (uint32, error) {
	if err := check(b, off, 3); err != nil {
		return 0, err
	}
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16, nil
}

// Uint32LE reads a little-endian 32-bit value at off.
func Uint32LE(b []byte, off int) (uint32, error) {
	if err := check(b, off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

// Uint16BE reads a big-endian 16-bit value at off.
func Uint16BE(b []byte, off int) (uint16, error) {
	if err := check(b, off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[off:]), nil
}

// PutUint16LE writes v at off.
func PutUint16LE(b []byte, off int, v uint16) error {
	if err := check(b, off, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b[off:], v)
	return nil
}

// PutUint32LE writes v at off.
func PutUint32LE(b []byte, off int, v uint32) error {
	if err := check(b, off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[off:], v)
	return nil
}

// AppendUint24LE appends the low 24 bits of v.
func AppendUint24LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16))
}

// PutUint24LE writes the low 24 bits of v at off.
func PutUint24LE(b []byte, off int, v uint32) error {
	if err := check(b, off, 3); err != nil {
		return err
	}
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	return nil
}
