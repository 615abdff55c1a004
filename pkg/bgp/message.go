package bgp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

var BGP_MARKER [16]byte = [16]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

var (
	ErrInvalidBGPMarker     *ErrorCode = &ErrorCode{Code: MESSAGE_HEADER_ERROR, Subcode: CONNECTION_NOT_SYNCHRONIZED}
	ErrInvalidMessageLength *ErrorCode = &ErrorCode{Code: MESSAGE_HEADER_ERROR, Subcode: BAD_MESSAGE_LENGTH}
	ErrInvalidMessageType   *ErrorCode = &ErrorCode{Code: MESSAGE_HEADER_ERROR, Subcode: BAD_MESSAGE_TYPE}

	ErrOpenUnsupportedVersion   *ErrorCode = &ErrorCode{Code: OPEN_MESSAGE_ERROR, Subcode: UNSUPPORTED_VERSION_NUMBER}
	ErrOpenInvalidPeerAS        *ErrorCode = &ErrorCode{Code: OPEN_MESSAGE_ERROR, Subcode: BAD_PEER_AS}
	ErrOpenUnacceptableHoldTime *ErrorCode = &ErrorCode{Code: OPEN_MESSAGE_ERROR, Subcode: UNACCEPTABLE_HOLD_TIME}

	ErrUpdateMalformedAttributeList          *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: MALFORMED_ATTRIBUTE_LIST}
	ErrUpdateUnrecognizedWellKnownAttribute  *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: UNRECOGNIZED_WELL_KNOWN_ATTRIBUTE}
	ErrUpdateAttributeFlagsError             *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: ATTRIBUTE_FLAGS_ERROR}
	ErrUpdateAttributeLengthError            *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: ATTRIBUTE_LENGTH_ERROR}
	ErrUpdateMissingWellKnownAttribute       *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: MISSING_WELL_KNOWN_ATTRIBUTE}
	ErrUpdateInvalidOriginAttribute          *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: INVALID_ORIGIN_ATTRIBUTE}
	ErrUpdateInvalidNextHopAttribute         *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: INVALID_NEXT_HOP_ATTRIBUTE}
	ErrUpdateMalformedASPath                 *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: MALFORMED_AS_PATH}
	ErrUpdateInvalidNetworkField             *ErrorCode = &ErrorCode{Code: UPDATE_MESSAGE_ERROR, Subcode: INVALID_NETWORK_FIELD}

	ErrFiniteStateMachineError *ErrorCode = &ErrorCode{Code: FINITE_STATE_MACHINE_ERROR, Subcode: 0}
)

const (
	VERSION                uint8  = 4
	MINIMUM_MESSAGE_LENGTH uint16 = 19
	MAXIMUM_MESSAGE_LENGTH uint16 = 4096
)

type Packet struct {
	Header  *Header
	Message Message
}

// Header is the 19-byte fixed BGP message header (§6): a 16-byte marker
// (unused since authentication was deprecated, but still validated as
// all-ones on receipt), a 2-byte total length and a 1-byte type.
type Header struct {
	Marker [16]byte
	Length uint16
	Type   MessageType
}

type MessageType uint8

const (
	OPEN         MessageType = 1
	UPDATE       MessageType = 2
	NOTIFICATION MessageType = 3
	KEEPALIVE    MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case OPEN:
		return "OPEN"
	case UPDATE:
		return "UPDATE"
	case NOTIFICATION:
		return "NOTIFICATION"
	case KEEPALIVE:
		return "KEEPALIVE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

type Message interface {
	Type() MessageType
	Decode(l int) ([]byte, error)
}

// GetMessage implements the library's recurring tagged-variant lookup
// idiom (alongside GetPathAttr/GetCap): a type-asserting accessor so a host
// driving Fsm.run doesn't need a type switch to react to a specific
// message kind.
func GetMessage[T *Open | *Update | *Notification | *KeepAlive](msg Message) (T, bool) {
	t, ok := msg.(T)
	return t, ok
}

type Open struct {
	Version    uint8
	AS         uint16
	HoldTime   uint16
	Identifier net.IP
	OptParmLen uint8
	Options    []*Option
}

type Option struct {
	Type   ParameterType
	Length uint8
	Value  []byte
}

type ParameterType uint8

const (
	AUTH_INFO  ParameterType = 1
	CAPABILITY ParameterType = 2
)

// Update is the UPDATE message payload (§4.C): withdrawn IPv4 prefixes, the
// path attribute list and newly advertised IPv4 prefixes. On-wire lengths
// are computed from the slices at Decode time rather than tracked as
// struct fields, so a caller building an Update never has to keep a length
// field in sync by hand.
type Update struct {
	WithdrawnRoutes []Prefix4
	PathAttrs       []PathAttr
	NLRI            []Prefix4
}

type KeepAlive struct{}

type Notification struct {
	ErrorCode *ErrorCode
	Data      []byte
}

// ErrorCode is the library's concrete error carrier (SPEC_FULL.md §7/§9's
// `{Code, Subcode, Data}` record): header checks, validators and the path
// attribute flag/length checks return one of these, so the FSM can
// translate it into a NOTIFICATION verbatim without re-parsing. Other
// decode failures (truncated input, an NLRI length over 32) are plain
// errors.
type ErrorCode struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

// WithData returns a copy of e carrying the offending bytes, used when a
// validator wants to echo the bad attribute/option back in NOTIFICATION.Data.
func (e *ErrorCode) WithData(data []byte) *ErrorCode {
	return &ErrorCode{Code: e.Code, Subcode: e.Subcode, Data: data}
}

const (
	MESSAGE_HEADER_ERROR       uint8 = 1
	OPEN_MESSAGE_ERROR         uint8 = 2
	UPDATE_MESSAGE_ERROR       uint8 = 3
	HOLD_TIMER_EXPIRED         uint8 = 4
	FINITE_STATE_MACHINE_ERROR uint8 = 5
	CEASE                      uint8 = 6
)

const (
	UNKNOWN_SUBCODE uint8 = 0
	// Message Header Error subcodes
	CONNECTION_NOT_SYNCHRONIZED uint8 = 1
	BAD_MESSAGE_LENGTH          uint8 = 2
	BAD_MESSAGE_TYPE            uint8 = 3
	// OPEN Message Error subcodes
	UNSUPPORTED_VERSION_NUMBER     uint8 = 1
	BAD_PEER_AS                    uint8 = 2
	BAD_BGP_IDENTIFIER             uint8 = 3
	UNSUPPORTED_OPTIONAL_PARAMETER uint8 = 4
	AUTHENTICATION_FAILURE         uint8 = 5
	UNACCEPTABLE_HOLD_TIME         uint8 = 6
	// UPDATE Message Error subcodes
	MALFORMED_ATTRIBUTE_LIST          uint8 = 1
	UNRECOGNIZED_WELL_KNOWN_ATTRIBUTE uint8 = 2
	MISSING_WELL_KNOWN_ATTRIBUTE      uint8 = 3
	ATTRIBUTE_FLAGS_ERROR             uint8 = 4
	ATTRIBUTE_LENGTH_ERROR            uint8 = 5
	INVALID_ORIGIN_ATTRIBUTE          uint8 = 6
	AS_ROUTING_LOOP                   uint8 = 7
	INVALID_NEXT_HOP_ATTRIBUTE        uint8 = 8
	OPTIONAL_ATTRIBUTE_ERROR          uint8 = 9
	INVALID_NETWORK_FIELD             uint8 = 10
	MALFORMED_AS_PATH                 uint8 = 11
	// CEASE subcodes, RFC 4486. Supplemented per SPEC_FULL.md §12 — the
	// teacher only ever produced CEASE with subcode 0.
	MAXIMUM_NUMBER_OF_PREFIXES_REACHED uint8 = 1
	ADMINISTRATIVE_SHUTDOWN            uint8 = 2
	PEER_DE_CONFIGURED                 uint8 = 3
	ADMINISTRATIVE_RESET               uint8 = 4
	CONNECTION_REJECTED                uint8 = 5
	OTHER_CONFIGURATION_CHANGE         uint8 = 6
	CONNECTION_COLLISION_RESOLUTION     uint8 = 7
	OUT_OF_RESOURCES                   uint8 = 8
)

func NewErrorCode(code, subcode uint8) *ErrorCode {
	if code == 0 || code > CEASE {
		return nil
	}
	return &ErrorCode{Code: code, Subcode: subcode}
}

func (e *ErrorCode) Error() string {
	switch e.Code {
	case MESSAGE_HEADER_ERROR:
		switch e.Subcode {
		case CONNECTION_NOT_SYNCHRONIZED:
			return "Message Header Error(Connection Not Synchronized)"
		case BAD_MESSAGE_LENGTH:
			return "Message Header Error(Bad Message Length)"
		case BAD_MESSAGE_TYPE:
			return "Message Header Error(Bad Message Type)"
		default:
			return "Message Header Error"
		}
	case OPEN_MESSAGE_ERROR:
		switch e.Subcode {
		case UNSUPPORTED_VERSION_NUMBER:
			return "OPEN Message Error(Unsupported Version Number)"
		case BAD_PEER_AS:
			return "OPEN Message Error(Bad Peer AS)"
		case BAD_BGP_IDENTIFIER:
			return "OPEN Message Error(Bad BGP Identifier)"
		case UNACCEPTABLE_HOLD_TIME:
			return "OPEN Message Error(Unacceptable Hold Time)"
		default:
			return "OPEN Message Error"
		}
	case UPDATE_MESSAGE_ERROR:
		switch e.Subcode {
		case MALFORMED_ATTRIBUTE_LIST:
			return "UPDATE Message Error(Malformed Attribute List)"
		case UNRECOGNIZED_WELL_KNOWN_ATTRIBUTE:
			return "UPDATE Message Error(Unrecognized Well-known Attribute)"
		case MISSING_WELL_KNOWN_ATTRIBUTE:
			return "UPDATE Message Error(Missing Well-known Attribute)"
		case ATTRIBUTE_FLAGS_ERROR:
			return "UPDATE Message Error(Attribute Flags Error)"
		case ATTRIBUTE_LENGTH_ERROR:
			return "UPDATE Message Error(Attribute Length Error)"
		case INVALID_ORIGIN_ATTRIBUTE:
			return "UPDATE Message Error(Invalid ORIGIN Attribute)"
		case AS_ROUTING_LOOP:
			return "UPDATE Message Error(AS Routing Loop)"
		case INVALID_NEXT_HOP_ATTRIBUTE:
			return "UPDATE Message Error(Invalid NEXT_HOP Attribute)"
		case OPTIONAL_ATTRIBUTE_ERROR:
			return "UPDATE Message Error(Optional Attribute Error)"
		case INVALID_NETWORK_FIELD:
			return "UPDATE Message Error(Invalid Network Field)"
		case MALFORMED_AS_PATH:
			return "UPDATE Message Error(Malformed AS_PATH)"
		default:
			return "UPDATE Message Error"
		}
	case HOLD_TIMER_EXPIRED:
		return "Hold Timer Expired"
	case FINITE_STATE_MACHINE_ERROR:
		return "Finite State Machine Error"
	case CEASE:
		return "Cease"
	default:
		return "Unknown Error"
	}
}

func (*Open) Type() MessageType         { return OPEN }
func (*Update) Type() MessageType       { return UPDATE }
func (*Notification) Type() MessageType { return NOTIFICATION }
func (*KeepAlive) Type() MessageType    { return KEEPALIVE }

func NewPacket(msgType MessageType) *Packet {
	return &Packet{Header: &Header{Marker: BGP_MARKER, Length: 19, Type: msgType}}
}

// Parse decodes one full BGP message (header + body) from data, the
// library's sole wire-format entry point for the host's run(bytes) call.
func Parse(data []byte) (*Packet, error) {
	buf := bytes.NewBuffer(data)
	packet := &Packet{Header: &Header{}}
	if err := binary.Read(buf, binary.BigEndian, packet.Header); err != nil {
		return nil, err
	}
	if errCode := packet.Header.Validate(); errCode != nil {
		return nil, errCode
	}
	switch packet.Header.Type {
	case OPEN:
		op, err := ParseOpenMsg(buf.Bytes())
		if err != nil {
			return nil, err
		}
		packet.Message = op
	case UPDATE:
		upd, err := ParseUpdateMsg(buf.Bytes())
		if err != nil {
			return nil, err
		}
		packet.Message = upd
	case NOTIFICATION:
		notif, err := ParseNotificationMsg(buf.Bytes())
		if err != nil {
			return nil, err
		}
		packet.Message = notif
	case KEEPALIVE:
		packet.Message = &KeepAlive{}
	default:
		return nil, ErrInvalidMessageType
	}
	return packet, nil
}

func (p *Packet) Decode() ([]byte, error) {
	hdr, err := p.Header.Decode()
	if err != nil {
		return nil, err
	}
	msg, err := p.Message.Decode(int(p.Header.Length))
	if err != nil {
		return nil, err
	}
	return append(hdr, msg...), nil
}

func (h *Header) Decode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 19))
	if err := binary.Write(buf, binary.BigEndian, h.Marker); err != nil {
		return nil, fmt.Errorf("decode header marker: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, h.Length); err != nil {
		return nil, fmt.Errorf("decode header length: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, h.Type); err != nil {
		return nil, fmt.Errorf("decode header type: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *Header) Validate() *ErrorCode {
	if h.Marker != BGP_MARKER {
		return ErrInvalidBGPMarker
	}
	if h.Length < MINIMUM_MESSAGE_LENGTH || h.Length > MAXIMUM_MESSAGE_LENGTH {
		return ErrInvalidMessageLength
	}
	switch h.Type {
	case OPEN, KEEPALIVE, UPDATE, NOTIFICATION:
		return nil
	default:
		return ErrInvalidMessageType
	}
}

func ParseOpenMsg(data []byte) (*Open, error) {
	type openNoOpt struct {
		Version    uint8
		As         uint16
		HoldTime   uint16
		Identifier uint32
		OptParmLen uint8
	}
	o := &openNoOpt{}
	buf := bytes.NewBuffer(data)
	if err := binary.Read(buf, binary.BigEndian, o); err != nil {
		return nil, err
	}
	options := make([]*Option, 0, o.OptParmLen)
	for buf.Len() > 0 {
		optType, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		l, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		options = append(options, &Option{
			Type:   ParameterType(optType),
			Length: l,
			Value:  buf.Next(int(l)),
		})
	}
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, o.Identifier)
	return &Open{
		Version:    o.Version,
		AS:         o.As,
		HoldTime:   o.HoldTime,
		Identifier: ip,
		OptParmLen: o.OptParmLen,
		Options:    options,
	}, nil
}

func ParseUpdateMsg(data []byte) (*Update, error) {
	c := newCursor(data)
	update := &Update{}

	withdrawnLen, err := c.readUint16()
	if err != nil {
		return nil, fmt.Errorf("parse update msg withdrawn routes len: %w", err)
	}
	wBytes, err := c.readBytes(int(withdrawnLen))
	if err != nil {
		return nil, fmt.Errorf("parse update msg withdrawn routes: %w", err)
	}
	wc := newCursor(wBytes)
	withdrawn := make([]Prefix4, 0)
	for wc.remaining() > 0 {
		p, err := ParsePrefix4(wc)
		if err != nil {
			return nil, fmt.Errorf("parse update msg withdrawn route: %w", err)
		}
		withdrawn = append(withdrawn, p)
	}
	update.WithdrawnRoutes = withdrawn

	attrLen, err := c.readUint16()
	if err != nil {
		return nil, fmt.Errorf("parse update msg total path attr len: %w", err)
	}
	attrBytes, err := c.readBytes(int(attrLen))
	if err != nil {
		return nil, fmt.Errorf("parse update msg path attrs: %w", err)
	}
	attrs, err := ParsePathAttrs(bytes.NewBuffer(attrBytes))
	if err != nil {
		return nil, fmt.Errorf("parse update msg path attrs: %w", err)
	}
	update.PathAttrs = attrs

	nlri := make([]Prefix4, 0)
	for c.remaining() > 0 {
		p, err := ParsePrefix4(c)
		if err != nil {
			return nil, fmt.Errorf("parse update msg nlri: %w", err)
		}
		nlri = append(nlri, p)
	}
	update.NLRI = nlri
	return update, nil
}

func ParseNotificationMsg(data []byte) (*Notification, error) {
	c := newCursor(data)
	code, err := c.readUint8()
	if err != nil {
		return nil, fmt.Errorf("parse notification error code: %w", err)
	}
	subcode, err := c.readUint8()
	if err != nil {
		return nil, fmt.Errorf("parse notification error subcode: %w", err)
	}
	notification := &Notification{ErrorCode: &ErrorCode{Code: code, Subcode: subcode}}
	notification.Data = data[2:]
	return notification, nil
}

func (o *Open) Decode(l int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, l))
	if err := binary.Write(buf, binary.BigEndian, o.Version); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, o.AS); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, o.HoldTime); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, o.Identifier.To4()); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, o.OptParmLen); err != nil {
		return nil, err
	}
	for _, opt := range o.Options {
		if err := binary.Write(buf, binary.BigEndian, opt.Type); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.BigEndian, opt.Length); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.BigEndian, opt.Value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (o *Open) Validate() *ErrorCode {
	if o.Version != VERSION {
		return ErrOpenUnsupportedVersion
	}
	if o.AS == 0 {
		return ErrOpenInvalidPeerAS
	}
	if o.HoldTime != 0 && o.HoldTime < 3 {
		return ErrOpenUnacceptableHoldTime
	}
	return nil
}

// Capabilities extracts the Capability option values (§4.C/§6) from the
// OPEN's optional parameters, used by the FSM during OpenSent to negotiate
// Four-Octet ASN support per RFC 6793.
func (o *Open) Capabilities() ([]Capability, error) {
	caps := make([]Capability, 0, len(o.Options))
	for _, opt := range o.Options {
		if opt.Type != CAPABILITY {
			continue
		}
		c, err := ParseCap(opt.Value)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func (o *Open) Dump() string {
	return fmt.Sprintf("OPEN version=%d as=%d hold=%d id=%s", o.Version, o.AS, o.HoldTime, o.Identifier)
}

func (u *Update) Decode(l int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, l))

	wbuf := new(bytes.Buffer)
	for _, wr := range u.WithdrawnRoutes {
		wr.WriteTo(wbuf)
	}
	writeUint16(buf, uint16(wbuf.Len()))
	buf.Write(wbuf.Bytes())

	abuf := new(bytes.Buffer)
	for _, attr := range u.PathAttrs {
		b, err := attr.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode update path attr: %w", err)
		}
		abuf.Write(b)
	}
	writeUint16(buf, uint16(abuf.Len()))
	buf.Write(abuf.Bytes())

	for _, n := range u.NLRI {
		n.WriteTo(buf)
	}
	return buf.Bytes(), nil
}

// Validate implements §4.C's UPDATE validation rules: well-known mandatory
// attribute presence, duplicate attribute rejection and ORIGIN/NEXT_HOP
// value sanity. AS_PATH is only checked for presence; its segment types
// are not inspected. Unlike the teacher's version, which
// worked against raw (flags, type, value []byte) tuples and special-cased
// a length-sum sanity check against the header length, this type-switches
// over the parsed PathAttr values directly since ParsePathAttrs already
// produced them.
func (u *Update) Validate() *ErrorCode {
	seen := make(map[PathAttrType]bool)
	var haveOrigin, haveASPath, haveNextHop bool
	for _, attr := range u.PathAttrs {
		if seen[attr.Type()] {
			return ErrUpdateMalformedAttributeList
		}
		seen[attr.Type()] = true

		switch a := attr.(type) {
		case *Origin:
			haveOrigin = true
			switch a.Value {
			case ORIGIN_IGP, ORIGIN_EGP, ORIGIN_INCOMPLETE:
			default:
				return ErrUpdateInvalidOriginAttribute
			}
		case *ASPath:
			haveASPath = true
		case *NextHop:
			haveNextHop = true
			if a.Addr.To4() == nil {
				return ErrUpdateInvalidNextHopAttribute
			}
		case *UnknownPathAttr:
			if a.IsWellKnownMandatory() {
				return ErrUpdateUnrecognizedWellKnownAttribute
			}
		}
	}
	if len(u.NLRI) > 0 && (!haveOrigin || !haveASPath || !haveNextHop) {
		return ErrUpdateMissingWellKnownAttribute
	}
	return nil
}

func (u *Update) Dump() string {
	return fmt.Sprintf("UPDATE withdrawn=%d attrs=%d nlri=%d", len(u.WithdrawnRoutes), len(u.PathAttrs), len(u.NLRI))
}

func (*KeepAlive) Decode(l int) ([]byte, error) { return []byte{}, nil }
func (*KeepAlive) Dump() string                 { return "KEEPALIVE" }

func (n *Notification) Decode(l int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, l))
	if err := binary.Write(buf, binary.BigEndian, n.ErrorCode.Code); err != nil {
		return nil, fmt.Errorf("decode notification error code: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, n.ErrorCode.Subcode); err != nil {
		return nil, fmt.Errorf("decode notification error subcode: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, n.Data); err != nil {
		return nil, fmt.Errorf("decode notification data: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *Notification) Dump() string {
	return fmt.Sprintf("NOTIFICATION %s", n.ErrorCode.Error())
}

type messageBuilder struct {
	packet       *Packet
	typ          MessageType
	open         *Open
	update       *Update
	keepalive    *KeepAlive
	notification *Notification
}

func Builder(msgType MessageType) *messageBuilder {
	b := &messageBuilder{
		packet: &Packet{Header: &Header{Marker: BGP_MARKER, Length: 19, Type: msgType}},
		typ:    msgType,
	}
	switch msgType {
	case OPEN:
		b.open = &Open{Version: VERSION, Options: []*Option{}}
	case KEEPALIVE:
		b.keepalive = &KeepAlive{}
	case UPDATE:
		b.update = &Update{WithdrawnRoutes: []Prefix4{}, PathAttrs: []PathAttr{}, NLRI: []Prefix4{}}
	case NOTIFICATION:
		b.notification = &Notification{}
	}
	return b
}

func (b *messageBuilder) Packet() *Packet {
	switch b.typ {
	case OPEN:
		b.packet.Header.Length += 10 + uint16(b.open.OptParmLen)
		b.packet.Message = b.open
	case KEEPALIVE:
		b.packet.Message = b.keepalive
	case UPDATE:
		body, err := b.update.Decode(0)
		if err != nil {
			return nil
		}
		b.packet.Header.Length += uint16(len(body))
		b.packet.Message = b.update
	case NOTIFICATION:
		b.packet.Message = b.notification
		b.packet.Header.Length += 2 + uint16(len(b.notification.Data))
	default:
		return nil
	}
	return b.packet
}

func (b *messageBuilder) Message() Message {
	switch b.typ {
	case OPEN:
		return b.open
	case KEEPALIVE:
		return b.keepalive
	case UPDATE:
		return b.update
	case NOTIFICATION:
		return b.notification
	default:
		return nil
	}
}

// open message
func (b *messageBuilder) AS(as uint32) {
	if b.typ == OPEN && as > 0 {
		if as > 0xFFFF {
			b.open.AS = uint16(AS_TRANS)
		} else {
			b.open.AS = uint16(as)
		}
	}
}

func (b *messageBuilder) HoldTime(hold time.Duration) {
	if b.typ == OPEN {
		b.open.HoldTime = uint16(hold / time.Second)
	}
}

func (b *messageBuilder) Identifier(ident net.IP) {
	if b.typ == OPEN {
		b.open.Identifier = ident
	}
}

func (b *messageBuilder) Options(opts []*Option) {
	if b.typ == OPEN {
		var a uint8 = 0
		for _, opt := range opts {
			a += opt.Length
			a += 2
		}
		b.open.Options = append(b.open.Options, opts...)
		b.open.OptParmLen += a
	}
}

// Capability wraps a Capability value in a CAPABILITY option, ready to pass
// to Options. Grounded on jwhited-corebgp's OpenOption capability wiring.
func CapabilityOption(c Capability) (*Option, error) {
	b, err := c.Decode()
	if err != nil {
		return nil, err
	}
	return &Option{Type: CAPABILITY, Length: uint8(len(b)), Value: b}, nil
}

// update message
func (b *messageBuilder) WithdrawnRoutes(routes []Prefix4) {
	if b.typ == UPDATE {
		b.update.WithdrawnRoutes = append(b.update.WithdrawnRoutes, routes...)
	}
}

func (b *messageBuilder) PathAttrs(attrs []PathAttr) {
	if b.typ == UPDATE {
		b.update.PathAttrs = append(b.update.PathAttrs, attrs...)
	}
}

func (b *messageBuilder) NLRI(routes []Prefix4) {
	if b.typ == UPDATE {
		b.update.NLRI = append(b.update.NLRI, routes...)
	}
}

// notification message
func (b *messageBuilder) ErrorCode(code *ErrorCode) {
	if b.typ == NOTIFICATION {
		b.notification.ErrorCode = code
	}
}

func (b *messageBuilder) Data(data []byte) {
	if b.typ == NOTIFICATION {
		b.notification.Data = data
	}
}
