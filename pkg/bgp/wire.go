package bgp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// cursor is a bounds-checked big-endian reader over a byte slice, used by
// the UPDATE, NOTIFICATION and prefix parsers so that their short-buffer
// handling lives in one place. The OPEN and path attribute parsers read
// from a bytes.Buffer instead.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return fmt.Errorf("short buffer: need %d bytes, have %d", n, c.remaining())
	}
	return nil
}

func (c *cursor) readUint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readUint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

func (c *cursor) readUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) readUint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return v, nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// writeUint8/16/32/64 write big-endian fixed-width integers to buf. They
// never fail: bytes.Buffer grows as needed, matching the teacher's use of
// binary.Write against a bytes.Buffer throughout message.go.
func writeUint8(buf *bytes.Buffer, v uint8)   { buf.WriteByte(v) }
func writeUint16(buf *bytes.Buffer, v uint16) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeUint32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.BigEndian, v) }
func writeUint64(buf *bytes.Buffer, v uint64) { _ = binary.Write(buf, binary.BigEndian, v) }

// byteLen is the number of octets needed to carry length significant bits,
// i.e. ceil(length/8). Shared by Prefix4/Prefix6 packing (§4.A).
func byteLen(length uint8) int {
	return int((length + 7) / 8)
}

// packPrefixBits copies the top `length` bits of addr into a
// ceil(length/8)-byte slice, zeroing the unused trailing bits of the last
// byte. Used by the wire writers for Prefix4/Prefix6 NLRI and withdrawn
// routes.
func packPrefixBits(addr []byte, length uint8) []byte {
	n := byteLen(length)
	out := make([]byte, n)
	copy(out, addr[:n])
	if rem := length % 8; rem != 0 && n > 0 {
		mask := byte(0xFF << (8 - rem))
		out[n-1] &= mask
	}
	return out
}

// unpackPrefixBits reconstructs a full-width address from ceil(length/8)
// on-wire bytes, zero-extending the remainder, per §4.A's "reader must
// zero-extend the remaining octets" rule.
func unpackPrefixBits(data []byte, length uint8, width int) []byte {
	out := make([]byte, width)
	copy(out, data)
	return out
}

// bitsEqual reports whether the top `n` bits of a and b are identical.
// Shared by Prefix4.Includes/Prefix6.Includes (§3's containment rule).
func bitsEqual(a, b []byte, n uint8) bool {
	full := int(n / 8)
	for i := 0; i < full; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	if rem := n % 8; rem != 0 {
		mask := byte(0xFF << (8 - rem))
		if (a[full] & mask) != (b[full] & mask) {
			return false
		}
	}
	return true
}
