package bgp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// AS_TRANS is the reserved 2-byte ASN placeholder a 4-byte-ASN speaker uses
// in AS_PATH when talking to a 2-byte-only peer (RFC 6793 §4.2.3).
const AS_TRANS uint32 = 23456

// PathAttr is the tagged-variant interface every path attribute implements,
// following the teacher's path_attribute.go dispatch idiom (parsePathAttr
// switches on the type code, each concrete type carries the shared
// `*pathAttr` header). §4.B.
type PathAttr interface {
	String() string
	Flags() uint8
	Type() PathAttrType
	ValueLen() int
	IsTransitive() bool
	Decode() ([]byte, error)
}

// ParsePathAttrs parses the full path-attribute section of an UPDATE
// message. §4.C requires duplicate type codes to be rejected; that check
// happens in message.go's Update.Validate, not here, so this stays a pure
// decode loop like the teacher's version.
func ParsePathAttrs(buf *bytes.Buffer) ([]PathAttr, error) {
	attrs := make([]PathAttr, 0)
	for buf.Len() > 0 {
		attr, err := parsePathAttr(buf)
		if err != nil {
			return nil, fmt.Errorf("ParsePathAttrs: %w", err)
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// canonicalAttrFlags maps each known attribute type to the Optional and
// Transitive bits it must carry on the wire (RFC 4271 §5). The Partial bit
// varies legitimately (whether an optional transitive attribute has been
// modified in transit) and the Extended Length bit is just an encoding
// choice, so both are excluded from the comparison.
var canonicalAttrFlags = map[PathAttrType]uint8{
	ORIGIN:               PATH_ATTR_FLAG_TRANSITIVE,
	AS_PATH:              PATH_ATTR_FLAG_TRANSITIVE,
	NEXT_HOP:             PATH_ATTR_FLAG_TRANSITIVE,
	LOCAL_PREF:           PATH_ATTR_FLAG_TRANSITIVE,
	ATOMIC_AGGREGATE:     PATH_ATTR_FLAG_TRANSITIVE,
	MULTI_EXIT_DISC:      PATH_ATTR_FLAG_OPTIONAL,
	AGGREGATOR:           PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE,
	COMMUNITIES:          PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE,
	EXTENDED_COMMUNITIES: PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE,
	AS4_PATH:             PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE,
	AS4_AGGREGATOR:       PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE,
}

const attrFlagCanonicalMask = PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE

// reconstructAttrBytes rebuilds the original on-wire attribute (header +
// value) so it can be echoed back verbatim as NOTIFICATION.Data, per §4.B's
// "return the original attribute bytes as error data" rule.
func reconstructAttrBytes(base *pathAttr, value []byte) []byte {
	buf := new(bytes.Buffer)
	base.writeHeader(buf, len(value))
	buf.Write(value)
	return buf.Bytes()
}

func parsePathAttr(buf *bytes.Buffer) (PathAttr, error) {
	if buf.Len() < 2 {
		return nil, fmt.Errorf("invalid path attribute data")
	}
	base := &pathAttr{}
	b, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("parsePathAttr: flags: %w", err)
	}
	base.flags = b
	b, err = buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("parsePathAttr: type: %w", err)
	}
	base.typ = PathAttrType(b)

	if canonical, ok := canonicalAttrFlags[base.typ]; ok && base.flags&attrFlagCanonicalMask != canonical {
		length, lerr := readAttrLength(buf, base)
		if lerr != nil {
			return nil, fmt.Errorf("parsePathAttr: %s: %w", base.typ, lerr)
		}
		return nil, ErrUpdateAttributeFlagsError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}

	var attr PathAttr
	switch base.typ {
	case ORIGIN:
		attr, err = newOrigin(buf, base)
	case AS_PATH:
		attr, err = newASPath(buf, base, false)
	case NEXT_HOP:
		attr, err = newNextHop(buf, base)
	case MULTI_EXIT_DISC:
		attr, err = newMultiExitDisc(buf, base)
	case LOCAL_PREF:
		attr, err = newLocalPref(buf, base)
	case ATOMIC_AGGREGATE:
		attr, err = newAtomicAggregate(buf, base)
	case AGGREGATOR:
		attr, err = newAggregator(buf, base, false)
	case COMMUNITIES:
		attr, err = newCommunity(buf, base)
	case EXTENDED_COMMUNITIES:
		attr, err = newExtendedCommunity(buf, base)
	case AS4_PATH:
		attr, err = newAS4Path(buf, base)
	case AS4_AGGREGATOR:
		attr, err = newAggregator(buf, base, true)
	default:
		attr, err = newUnknownPathAttr(buf, base)
	}
	if err != nil {
		return nil, fmt.Errorf("parsePathAttr: %s: %w", base.typ, err)
	}
	return attr, nil
}

// GetPathAttr returns the first attribute of type T in attrs, following the
// teacher's generic-helper idiom (GetPathAttr[T]/GetMessage[T]/GetCap[T]).
func GetPathAttr[T PathAttr](attrs []PathAttr) (T, bool) {
	var zero T
	for _, a := range attrs {
		if t, ok := a.(T); ok {
			return t, true
		}
	}
	return zero, false
}

type pathAttr struct {
	flags uint8
	typ   PathAttrType
}

func (p *pathAttr) String() string {
	return fmt.Sprintf("Flag=0x%x Type=%s", p.flags, p.typ)
}

const (
	// It defines whether the attribute is optional(if set to 1) or well-known(if set to 0)
	PATH_ATTR_FLAG_OPTIONAL uint8 = 1 << 7
	// It defines whether an optional attribute is transitive(if set to 1) or non-transitive(if set to 0)
	// For well-known attributes, the Transitive bit MUST be set to 1.
	PATH_ATTR_FLAG_TRANSITIVE uint8 = 1 << 6
	// It defines whether the information contained in the optional transitive attribute is partial(if set to 1) or complete(if set to 0).
	// For well-known attributes and for optional non-transitive attributes, the Partial bit MUST be set to 0.
	PATH_ATTR_FLAG_PARTIAL uint8 = 1 << 5
	// It defines whether the Attribute Length is one byte(if set to 0) or two bytes(if set to 1).
	PATH_ATTR_FLAG_EXTENDED uint8 = 1 << 4
)

func (p *pathAttr) IsOptional() bool {
	return (p.flags & PATH_ATTR_FLAG_OPTIONAL) == PATH_ATTR_FLAG_OPTIONAL
}

func (p *pathAttr) IsTransitive() bool {
	return (p.flags & PATH_ATTR_FLAG_TRANSITIVE) == PATH_ATTR_FLAG_TRANSITIVE
}

// IsWellKnownMandatory reports the §4.B well-known-mandatory test that
// Update.Validate applies to attributes of unrecognized type:
// !optional && transitive.
func (p *pathAttr) IsWellKnownMandatory() bool {
	return !p.IsOptional() && p.IsTransitive()
}

func (p *pathAttr) writeHeader(buf *bytes.Buffer, length int) {
	writeUint8(buf, p.flags)
	writeUint8(buf, byte(p.typ))
	if (p.flags & PATH_ATTR_FLAG_EXTENDED) == PATH_ATTR_FLAG_EXTENDED {
		writeUint16(buf, uint16(length))
	} else {
		writeUint8(buf, uint8(length))
	}
}

type PathAttrType uint8

const (
	ORIGIN               PathAttrType = 1  // Well-known mandatory attribute
	AS_PATH              PathAttrType = 2  // Well-known mandatory attribute
	NEXT_HOP             PathAttrType = 3  // Well-known mandatory attribute
	MULTI_EXIT_DISC      PathAttrType = 4  // Optional non-transitive attribute
	LOCAL_PREF           PathAttrType = 5  // Well-known discretionary attribute
	ATOMIC_AGGREGATE     PathAttrType = 6  // Well-known discretionary attribute
	AGGREGATOR           PathAttrType = 7  // Optional transitive attribute
	COMMUNITIES          PathAttrType = 8  // Optional transitive attribute
	EXTENDED_COMMUNITIES PathAttrType = 16 // Optional transitive attribute
	AS4_PATH             PathAttrType = 17 // Optional transitive attribute
	AS4_AGGREGATOR       PathAttrType = 18 // Optional transitive attribute
)

func (p PathAttrType) String() string {
	switch p {
	case ORIGIN:
		return "ORIGIN"
	case AS_PATH:
		return "AS_PATH"
	case NEXT_HOP:
		return "NEXT_HOP"
	case MULTI_EXIT_DISC:
		return "MULTI_EXIT_DISC"
	case LOCAL_PREF:
		return "LOCAL_PREF"
	case ATOMIC_AGGREGATE:
		return "ATOMIC_AGGREGATE"
	case AGGREGATOR:
		return "AGGREGATOR"
	case COMMUNITIES:
		return "COMMUNITIES"
	case EXTENDED_COMMUNITIES:
		return "EXTENDED_COMMUNITIES"
	case AS4_PATH:
		return "AS4_PATH"
	case AS4_AGGREGATOR:
		return "AS4_AGGREGATOR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(p))
	}
}

// UnknownPathAttr retains an attribute of an unrecognized type opaquely, per
// §4.B's pass-through policy for optional attributes: forwarded untouched
// if transitive, dropped on re-advertise if not (the FSM's egress path
// enforces the drop; this type just carries the raw bytes).
type UnknownPathAttr struct {
	*pathAttr
	Data []byte
}

func newUnknownPathAttr(buf *bytes.Buffer, base *pathAttr) (*UnknownPathAttr, error) {
	attr := &UnknownPathAttr{pathAttr: base}
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if _, err := buf.Read(data); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	attr.Data = data
	return attr, nil
}

func (attr *UnknownPathAttr) Type() PathAttrType { return attr.typ }
func (attr *UnknownPathAttr) Flags() uint8       { return attr.flags }
func (attr *UnknownPathAttr) ValueLen() int      { return len(attr.Data) }

func (attr *UnknownPathAttr) String() string {
	return attr.pathAttr.String() + fmt.Sprintf("\nUnknown attribute, %d bytes", len(attr.Data))
}

func (attr *UnknownPathAttr) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	attr.writeHeader(buf, len(attr.Data))
	buf.Write(attr.Data)
	return buf.Bytes(), nil
}

// readAttrLength reads the 1- or 2-byte length field per the attribute's
// extended flag, shared by every concrete attribute's constructor.
func readAttrLength(buf *bytes.Buffer, base *pathAttr) (int, error) {
	if (base.flags & PATH_ATTR_FLAG_EXTENDED) == PATH_ATTR_FLAG_EXTENDED {
		var l uint16
		if err := binary.Read(buf, binary.BigEndian, &l); err != nil {
			return 0, fmt.Errorf("length: %w", err)
		}
		return int(l), nil
	}
	l, err := buf.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("length: %w", err)
	}
	return int(l), nil
}

type Origin struct {
	*pathAttr
	Value uint8
}

const (
	ORIGIN_IGP        uint8 = 0
	ORIGIN_EGP        uint8 = 1
	ORIGIN_INCOMPLETE uint8 = 2
)

func newOrigin(buf *bytes.Buffer, base *pathAttr) (*Origin, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 1 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	v, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &Origin{pathAttr: base, Value: v}, nil
}

func (*Origin) Type() PathAttrType  { return ORIGIN }
func (a *Origin) Flags() uint8      { return a.flags }
func (a *Origin) ValueLen() int     { return 1 }

func (a *Origin) String() string {
	names := map[uint8]string{ORIGIN_IGP: "IGP(0)", ORIGIN_EGP: "EGP(1)", ORIGIN_INCOMPLETE: "INCOMPLETE(2)"}
	return a.pathAttr.String() + fmt.Sprintf("\nOrigin=%s", names[a.Value])
}

func (a *Origin) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, 1)
	writeUint8(buf, a.Value)
	return buf.Bytes(), nil
}

// ASPathSegment is an AS_PATH or AS4_PATH segment, grounded on
// original_source/src/bgp-path-attrib.h's BgpAsPathSegment: a type tag plus
// a flat ASN list, with ASNs always stored widened to uint32 regardless of
// on-wire width (Is4B only controls serialization).
type ASPathSegment struct {
	Type  uint8
	Is4B  bool
	ASNs  []uint32
}

const (
	SEG_TYPE_AS_SET      uint8 = 1
	SEG_TYPE_AS_SEQUENCE uint8 = 2
)

func (s *ASPathSegment) String() string {
	kind := "AS_SEQUENCE"
	if s.Type == SEG_TYPE_AS_SET {
		kind = "AS_SET"
	}
	return fmt.Sprintf("%s%v", kind, s.ASNs)
}

func parseASPathSegments(buf *bytes.Buffer, length int, is4b bool) ([]*ASPathSegment, error) {
	segBuf := bytes.NewBuffer(buf.Next(length))
	segs := make([]*ASPathSegment, 0)
	for segBuf.Len() > 0 {
		typ, err := segBuf.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("seg type: %w", err)
		}
		count, err := segBuf.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("seg length: %w", err)
		}
		asns := make([]uint32, count)
		for i := range asns {
			if is4b {
				var v uint32
				if err := binary.Read(segBuf, binary.BigEndian, &v); err != nil {
					return nil, fmt.Errorf("seg asn: %w", err)
				}
				asns[i] = v
			} else {
				var v uint16
				if err := binary.Read(segBuf, binary.BigEndian, &v); err != nil {
					return nil, fmt.Errorf("seg asn: %w", err)
				}
				asns[i] = uint32(v)
			}
		}
		segs = append(segs, &ASPathSegment{Type: typ, Is4B: is4b, ASNs: asns})
	}
	return segs, nil
}

func writeASPathSegments(buf *bytes.Buffer, segs []*ASPathSegment, is4b bool) {
	for _, seg := range segs {
		writeUint8(buf, seg.Type)
		writeUint8(buf, uint8(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if is4b {
				writeUint32(buf, asn)
			} else {
				writeUint16(buf, uint16(asn))
			}
		}
	}
}

func segmentsWireLen(segs []*ASPathSegment, is4b bool) int {
	width := 2
	if is4b {
		width = 4
	}
	n := 0
	for _, s := range segs {
		n += 2 + len(s.ASNs)*width
	}
	return n
}

type ASPath struct {
	*pathAttr
	Segments []*ASPathSegment
	Is4B     bool
}

func newASPath(buf *bytes.Buffer, base *pathAttr, is4b bool) (*ASPath, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	segs, err := parseASPathSegments(buf, length, is4b)
	if err != nil {
		return nil, err
	}
	return &ASPath{pathAttr: base, Segments: segs, Is4B: is4b}, nil
}

func (*ASPath) Type() PathAttrType { return AS_PATH }
func (a *ASPath) Flags() uint8     { return a.flags }
func (a *ASPath) ValueLen() int    { return segmentsWireLen(a.Segments, a.Is4B) }

func (a *ASPath) String() string {
	s := a.pathAttr.String()
	for _, seg := range a.Segments {
		s += "\n  " + seg.String()
	}
	return s
}

func (a *ASPath) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, a.ValueLen())
	writeASPathSegments(buf, a.Segments, a.Is4B)
	return buf.Bytes(), nil
}

// ASNCount sums segment ASN counts per §4.E's tie-break rule 3: AS_SET
// counts as a single hop regardless of its member count, AS_SEQUENCE counts
// every entry.
func (a *ASPath) ASNCount() int {
	n := 0
	for _, s := range a.Segments {
		if s.Type == SEG_TYPE_AS_SET {
			n++
		} else {
			n += len(s.ASNs)
		}
	}
	return n
}

// LeftmostASN returns the first ASN of the first segment, used by §4.E's
// MED comparison rule ("only compared when the leftmost ASN of both paths
// is identical").
func (a *ASPath) LeftmostASN() (uint32, bool) {
	if len(a.Segments) == 0 || len(a.Segments[0].ASNs) == 0 {
		return 0, false
	}
	return a.Segments[0].ASNs[0], true
}

// Prepend implements §4.B's prepend algorithm: extend a leading AS_SEQUENCE
// in place when there's room, otherwise push a new single-ASN AS_SEQUENCE
// to the front — including when the leading segment is an AS_SET, per
// RFC 4271 §5.1.2.b.2 (DESIGN.md Open Question #3).
func (a *ASPath) Prepend(asn uint32) {
	if len(a.Segments) > 0 && a.Segments[0].Type == SEG_TYPE_AS_SEQUENCE && len(a.Segments[0].ASNs) < 255 {
		seg := a.Segments[0]
		seg.ASNs = append([]uint32{asn}, seg.ASNs...)
		return
	}
	newSeg := &ASPathSegment{Type: SEG_TYPE_AS_SEQUENCE, Is4B: a.Is4B, ASNs: []uint32{asn}}
	a.Segments = append([]*ASPathSegment{newSeg}, a.Segments...)
}

// Clone returns a deep copy so RIB update-groups can share the parsed
// attribute list by reference while an FSM mutates its own egress copy.
func (a *ASPath) Clone() *ASPath {
	segs := make([]*ASPathSegment, len(a.Segments))
	for i, s := range a.Segments {
		asns := make([]uint32, len(s.ASNs))
		copy(asns, s.ASNs)
		segs[i] = &ASPathSegment{Type: s.Type, Is4B: s.Is4B, ASNs: asns}
	}
	base := &pathAttr{flags: a.flags, typ: a.typ}
	return &ASPath{pathAttr: base, Segments: segs, Is4B: a.Is4B}
}

// NewEmptyASPath builds the zero-hop AS_PATH §4.E's insert_local requires
// ("AsPath=empty-4b").
func NewEmptyASPath() *ASPath {
	return &ASPath{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH}, Is4B: true}
}

type As4Path struct {
	*pathAttr
	Segments []*ASPathSegment
}

func newAS4Path(buf *bytes.Buffer, base *pathAttr) (*As4Path, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	segs, err := parseASPathSegments(buf, length, true)
	if err != nil {
		return nil, err
	}
	return &As4Path{pathAttr: base, Segments: segs}, nil
}

func (*As4Path) Type() PathAttrType { return AS4_PATH }
func (a *As4Path) Flags() uint8     { return a.flags }
func (a *As4Path) ValueLen() int    { return segmentsWireLen(a.Segments, true) }

func (a *As4Path) String() string {
	s := a.pathAttr.String()
	for _, seg := range a.Segments {
		s += "\n  " + seg.String()
	}
	return s
}

func (a *As4Path) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, a.ValueLen())
	writeASPathSegments(buf, a.Segments, true)
	return buf.Bytes(), nil
}

// RestoreAsPath4B implements §4.B's restore_4b: reconcile a 2-byte AS_PATH
// received from a peer that only negotiated 2-byte ASNs with the AS4_PATH
// compatibility attribute it sent alongside it. Every AS_TRANS entry in
// asPath is replaced by the next ASN from as4Path's flattened AS_SEQUENCE
// list; other entries are left as-is, with a mismatch against the
// corresponding 4-byte value reported through warn rather than failing
// the session (§7: internal logic errors are logged, not fatal).
// RestoreAsPath4B follows original_source's restoreAsPath (bgp-update-message.cc):
// find the position in the flattened AS4_PATH AS_SEQUENCE where real 4-byte
// ASNs start (the first entry that doesn't fit in 2 bytes), then walk each
// AS_PATH segment against that position independently — every segment
// restarts from the same starting index rather than carrying a cursor
// forward from the previous segment. Without that per-segment reset, an
// AS_SET segment whose AS_TRANS placeholders come after a AS_SEQUENCE
// segment already consumed from the same flat list finds the cursor already
// past the end and leaves its own AS_TRANS unresolved.
//
// Deviates from the original in one respect: a literal (non-AS_TRANS) ASN
// is only compared against the flat list once this segment has already
// matched at least one AS_TRANS (i.e. once the cursor is actually tracking
// aligned positions). The original instead compares unconditionally from
// the shared start index, which spuriously warns on any literal ASN that
// precedes the segment's first AS_TRANS, since that index was never meant
// to line up with it.
func RestoreAsPath4B(asPath *ASPath, as4Path *As4Path, warn func(string)) *ASPath {
	flat := make([]uint32, 0)
	for _, seg := range as4Path.Segments {
		if seg.Type == SEG_TYPE_AS_SEQUENCE {
			flat = append(flat, seg.ASNs...)
		}
	}
	has4b := len(flat) > 0
	startIdx := len(flat)
	for i, v := range flat {
		if v > 0xffff {
			startIdx = i
			break
		}
	}

	restored := &ASPath{pathAttr: &pathAttr{flags: asPath.flags, typ: AS_PATH}, Is4B: true}
	for _, seg := range asPath.Segments {
		idx := startIdx
		incr := false
		newSeg := &ASPathSegment{Type: seg.Type, Is4B: true}
		for _, asn := range seg.ASNs {
			newAsn := asn
			if has4b && idx < len(flat) {
				switch {
				case asn == AS_TRANS:
					incr = true
					newAsn = flat[idx]
				case incr && asn != flat[idx]:
					if warn != nil {
						warn(fmt.Sprintf("restore_4b: AS_PATH entry %d does not match AS4_PATH entry %d", asn, flat[idx]))
					}
				}
				if incr {
					idx++
				}
			}
			newSeg.ASNs = append(newSeg.ASNs, newAsn)
		}
		restored.Segments = append(restored.Segments, newSeg)
	}
	return restored
}

// DowngradeAsPath4B implements §4.B's downgrade_4b: the inverse of
// RestoreAsPath4B, used when a 4-byte speaker must emit AS_PATH to a
// 2-byte-only peer.
func DowngradeAsPath4B(asPath *ASPath) (*ASPath, *As4Path) {
	as2 := &ASPath{pathAttr: &pathAttr{flags: asPath.flags, typ: AS_PATH}, Is4B: false}
	as4 := &As4Path{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_OPTIONAL | PATH_ATTR_FLAG_TRANSITIVE, typ: AS4_PATH}}
	for _, seg := range asPath.Segments {
		downSeg := &ASPathSegment{Type: seg.Type, Is4B: false}
		fullSeg := &ASPathSegment{Type: seg.Type, Is4B: true, ASNs: append([]uint32{}, seg.ASNs...)}
		for _, asn := range seg.ASNs {
			if asn > 0xFFFF {
				downSeg.ASNs = append(downSeg.ASNs, AS_TRANS)
			} else {
				downSeg.ASNs = append(downSeg.ASNs, asn)
			}
		}
		as2.Segments = append(as2.Segments, downSeg)
		as4.Segments = append(as4.Segments, fullSeg)
	}
	return as2, as4
}

type NextHop struct {
	*pathAttr
	Addr net.IP
}

func newNextHop(buf *bytes.Buffer, base *pathAttr) (*NextHop, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 4 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	b := make([]byte, length)
	if _, err := buf.Read(b); err != nil {
		return nil, fmt.Errorf("addr: %w", err)
	}
	return &NextHop{pathAttr: base, Addr: net.IP(b)}, nil
}

func (*NextHop) Type() PathAttrType { return NEXT_HOP }
func (a *NextHop) Flags() uint8     { return a.flags }
func (a *NextHop) ValueLen() int    { return len(a.Addr.To4()) }
func (a *NextHop) String() string   { return a.pathAttr.String() + fmt.Sprintf("\nNextHop=%s", a.Addr) }

func (a *NextHop) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	v4 := a.Addr.To4()
	a.writeHeader(buf, len(v4))
	buf.Write(v4)
	return buf.Bytes(), nil
}

type LocalPref struct {
	*pathAttr
	Value uint32
}

func newLocalPref(buf *bytes.Buffer, base *pathAttr) (*LocalPref, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 4 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	var v uint32
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &LocalPref{pathAttr: base, Value: v}, nil
}

func (*LocalPref) Type() PathAttrType { return LOCAL_PREF }
func (a *LocalPref) Flags() uint8     { return a.flags }
func (a *LocalPref) ValueLen() int    { return 4 }
func (a *LocalPref) String() string   { return a.pathAttr.String() + fmt.Sprintf("\nLocalPref=%d", a.Value) }

func (a *LocalPref) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, 4)
	writeUint32(buf, a.Value)
	return buf.Bytes(), nil
}

// DefaultLocalPref is §4.E's "default 100 if absent" tie-break fallback.
const DefaultLocalPref uint32 = 100

type MultiExitDisc struct {
	*pathAttr
	Value uint32
}

func newMultiExitDisc(buf *bytes.Buffer, base *pathAttr) (*MultiExitDisc, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 4 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	var v uint32
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &MultiExitDisc{pathAttr: base, Value: v}, nil
}

func (*MultiExitDisc) Type() PathAttrType { return MULTI_EXIT_DISC }
func (a *MultiExitDisc) Flags() uint8     { return a.flags }
func (a *MultiExitDisc) ValueLen() int    { return 4 }
func (a *MultiExitDisc) String() string {
	return a.pathAttr.String() + fmt.Sprintf("\nMultiExitDisc=%d", a.Value)
}

func (a *MultiExitDisc) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, 4)
	writeUint32(buf, a.Value)
	return buf.Bytes(), nil
}

type AtomicAggregate struct {
	*pathAttr
}

func newAtomicAggregate(buf *bytes.Buffer, base *pathAttr) (*AtomicAggregate, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 0 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	return &AtomicAggregate{pathAttr: base}, nil
}

// Type correctly returns ATOMIC_AGGREGATE. The teacher's equivalent method
// erroneously returned AS4_AGGREGATOR; DESIGN.md records this as a fixed
// teacher bug, not a preserved Open Question.
func (*AtomicAggregate) Type() PathAttrType { return ATOMIC_AGGREGATE }
func (a *AtomicAggregate) Flags() uint8     { return a.flags }
func (a *AtomicAggregate) ValueLen() int    { return 0 }
func (a *AtomicAggregate) String() string   { return a.pathAttr.String() }

func (a *AtomicAggregate) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, 0)
	return buf.Bytes(), nil
}

// Aggregator carries the AS and address of the speaker that performed
// route aggregation. Grounded on bgp-path-attrib.h's BgpPathAttribAggregator
// (is_4b distinguishes the 2-byte AGGREGATOR from the 4-byte
// AS4_AGGREGATOR compatibility attribute, rather than being two unrelated
// structs as in the teacher, which never implemented AS4_AGGREGATOR at all).
type Aggregator struct {
	*pathAttr
	ASN     uint32
	Address net.IP
	Is4B    bool
}

func newAggregator(buf *bytes.Buffer, base *pathAttr, is4b bool) (*Aggregator, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	want := 6
	if is4b {
		want = 8
	}
	if length != want {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	var asn uint32
	if is4b {
		if err := binary.Read(buf, binary.BigEndian, &asn); err != nil {
			return nil, fmt.Errorf("asn: %w", err)
		}
	} else {
		var asn16 uint16
		if err := binary.Read(buf, binary.BigEndian, &asn16); err != nil {
			return nil, fmt.Errorf("asn: %w", err)
		}
		asn = uint32(asn16)
	}
	b := make([]byte, 4)
	if err := binary.Read(buf, binary.BigEndian, b); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	return &Aggregator{pathAttr: base, ASN: asn, Address: net.IP(b), Is4B: is4b}, nil
}

func (a *Aggregator) Type() PathAttrType {
	if a.Is4B {
		return AS4_AGGREGATOR
	}
	return AGGREGATOR
}
func (a *Aggregator) Flags() uint8 { return a.flags }
func (a *Aggregator) ValueLen() int {
	if a.Is4B {
		return 8
	}
	return 6
}
func (a *Aggregator) String() string {
	return a.pathAttr.String() + fmt.Sprintf("\nASN=%d Address=%s", a.ASN, a.Address)
}

func (a *Aggregator) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, a.ValueLen())
	if a.Is4B {
		writeUint32(buf, a.ASN)
	} else {
		writeUint16(buf, uint16(a.ASN))
	}
	buf.Write(a.Address.To4())
	return buf.Bytes(), nil
}

type Community struct {
	*pathAttr
	Value uint32
}

func newCommunity(buf *bytes.Buffer, base *pathAttr) (*Community, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 4 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	var v uint32
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &Community{pathAttr: base, Value: v}, nil
}

func (*Community) Type() PathAttrType { return COMMUNITIES }
func (a *Community) Flags() uint8     { return a.flags }
func (a *Community) ValueLen() int    { return 4 }
func (a *Community) String() string   { return a.pathAttr.String() + fmt.Sprintf("\nCommunity=%d", a.Value) }

func (a *Community) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, 4)
	writeUint32(buf, a.Value)
	return buf.Bytes(), nil
}

// ExtendedCommunity (RFC 4360) is not in spec.md's explicit PathAttribute
// variant list. Carried over from the teacher's ExtendedCommunities type,
// which parsed it the same way; nothing in the spec excludes it.
type ExtendedCommunity struct {
	*pathAttr
	Value uint64
}

func newExtendedCommunity(buf *bytes.Buffer, base *pathAttr) (*ExtendedCommunity, error) {
	length, err := readAttrLength(buf, base)
	if err != nil {
		return nil, err
	}
	if length != 8 {
		return nil, ErrUpdateAttributeLengthError.WithData(reconstructAttrBytes(base, buf.Next(length)))
	}
	var v uint64
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &ExtendedCommunity{pathAttr: base, Value: v}, nil
}

func (*ExtendedCommunity) Type() PathAttrType { return EXTENDED_COMMUNITIES }
func (a *ExtendedCommunity) Flags() uint8     { return a.flags }
func (a *ExtendedCommunity) ValueLen() int    { return 8 }
func (a *ExtendedCommunity) String() string {
	return a.pathAttr.String() + fmt.Sprintf("\nExtendedCommunity=%d", a.Value)
}

func (a *ExtendedCommunity) Decode() ([]byte, error) {
	buf := new(bytes.Buffer)
	a.writeHeader(buf, 8)
	writeUint64(buf, a.Value)
	return buf.Bytes(), nil
}
