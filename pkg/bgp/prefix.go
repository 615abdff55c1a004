package bgp

import (
	"bytes"
	"fmt"
	"net"
)

// Prefix4 is an IPv4 network prefix, grounded on the wire layout in §3/§4.A
// and the comparison rule in original_source/src/route.h's Route type:
// "test if length smaller (prefix size bigger) then other. prefix must be
// same to do this" becomes Prefix4.Greater below.
type Prefix4 struct {
	Addr   [4]byte
	Length uint8
}

// NewPrefix4 builds a Prefix4 from a net.IP and a prefix length, rejecting
// lengths outside 0..32 per §4.C's UPDATE validation rule.
func NewPrefix4(ip net.IP, length uint8) (Prefix4, error) {
	if length > 32 {
		return Prefix4{}, fmt.Errorf("prefix4: length %d exceeds 32", length)
	}
	v4 := ip.To4()
	if v4 == nil {
		return Prefix4{}, fmt.Errorf("prefix4: %s is not an IPv4 address", ip)
	}
	p := Prefix4{Length: length}
	copy(p.Addr[:], packPrefixBits(v4, length))
	return p, nil
}

func MustPrefix4(cidr string) Prefix4 {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	ones, _ := ipnet.Mask.Size()
	p, err := NewPrefix4(ip, uint8(ones))
	if err != nil {
		panic(err)
	}
	return p
}

func (p Prefix4) IP() net.IP {
	return net.IPv4(p.Addr[0], p.Addr[1], p.Addr[2], p.Addr[3])
}

func (p Prefix4) String() string {
	return fmt.Sprintf("%s/%d", p.IP(), p.Length)
}

func (p Prefix4) Equal(other Prefix4) bool {
	return p.Length == other.Length && p.Addr == other.Addr
}

// Includes reports whether p covers other: p.Length <= other.Length and the
// top p.Length bits of both addresses match (§3).
func (p Prefix4) Includes(other Prefix4) bool {
	if p.Length > other.Length {
		return false
	}
	return bitsEqual(p.Addr[:], other.Addr[:], p.Length)
}

// Greater implements §4.D's tie-break-adjacent comparison: a > b iff the
// prefix bits are identical and a is less specific (shorter length, in the
// "broader wins" sense used by route.h: shorter length sorts greater).
func (p Prefix4) Greater(other Prefix4) bool {
	if p.Addr != other.Addr {
		return false
	}
	return p.Length < other.Length
}

// Pack returns the on-wire NLRI encoding: a length byte followed by
// ceil(length/8) prefix bytes, MSB-first, zero-padded (§4.A). This is the
// corrected form of the original's buggy NLRI writer — see Open Question #2
// in DESIGN.md.
func (p Prefix4) Pack() []byte {
	packed := packPrefixBits(p.Addr[:], p.Length)
	out := make([]byte, 0, 1+len(packed))
	out = append(out, p.Length)
	out = append(out, packed...)
	return out
}

func (p Prefix4) WriteTo(buf *bytes.Buffer) {
	buf.Write(p.Pack())
}

// ParsePrefix4 reads one length-prefixed NLRI entry from c.
func ParsePrefix4(c *cursor) (Prefix4, error) {
	length, err := c.readUint8()
	if err != nil {
		return Prefix4{}, err
	}
	if length > 32 {
		return Prefix4{}, fmt.Errorf("prefix4: on-wire length %d exceeds 32", length)
	}
	data, err := c.readBytes(byteLen(length))
	if err != nil {
		return Prefix4{}, err
	}
	p := Prefix4{Length: length}
	copy(p.Addr[:], unpackPrefixBits(data, length, 4))
	return p, nil
}

// Prefix6 is the IPv6 analogue of Prefix4; structurally identical per the
// spec's explicit note that the IPv6 RIB/prefix reuse the IPv4 spec.
type Prefix6 struct {
	Addr   [16]byte
	Length uint8
}

func NewPrefix6(ip net.IP, length uint8) (Prefix6, error) {
	if length > 128 {
		return Prefix6{}, fmt.Errorf("prefix6: length %d exceeds 128", length)
	}
	v6 := ip.To16()
	if v6 == nil {
		return Prefix6{}, fmt.Errorf("prefix6: %s is not an IPv6 address", ip)
	}
	p := Prefix6{Length: length}
	copy(p.Addr[:], packPrefixBits(v6, length))
	return p, nil
}

func (p Prefix6) IP() net.IP {
	return net.IP(p.Addr[:])
}

func (p Prefix6) String() string {
	return fmt.Sprintf("%s/%d", p.IP(), p.Length)
}

func (p Prefix6) Equal(other Prefix6) bool {
	return p.Length == other.Length && p.Addr == other.Addr
}

func (p Prefix6) Includes(other Prefix6) bool {
	if p.Length > other.Length {
		return false
	}
	return bitsEqual(p.Addr[:], other.Addr[:], p.Length)
}

func (p Prefix6) Greater(other Prefix6) bool {
	if p.Addr != other.Addr {
		return false
	}
	return p.Length < other.Length
}

func (p Prefix6) Pack() []byte {
	packed := packPrefixBits(p.Addr[:], p.Length)
	out := make([]byte, 0, 1+len(packed))
	out = append(out, p.Length)
	out = append(out, packed...)
	return out
}

func (p Prefix6) WriteTo(buf *bytes.Buffer) {
	buf.Write(p.Pack())
}

func ParsePrefix6(c *cursor) (Prefix6, error) {
	length, err := c.readUint8()
	if err != nil {
		return Prefix6{}, err
	}
	if length > 128 {
		return Prefix6{}, fmt.Errorf("prefix6: on-wire length %d exceeds 128", length)
	}
	data, err := c.readBytes(byteLen(length))
	if err != nil {
		return Prefix6{}, err
	}
	p := Prefix6{Length: length}
	copy(p.Addr[:], unpackPrefixBits(data, length, 16))
	return p, nil
}
