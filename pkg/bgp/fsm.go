package bgp

import (
	"encoding/binary"
	"errors"
	"net"
	"time"
)

// FsmState is the session state (§3/§4.G). Active and Connect are kept for
// parity with RFC 4271's six-state model even though this library's own
// transitions (below) never land on them: without an owned transport,
// "attempting a TCP connection" is the host's job, not the FSM's, so a
// host driving its own connect loop would report Active/Connect
// externally and only call Start once the socket is up. Broken is this
// library's addition: a terminal fault state for an unrecoverable framing
// error, requiring a fresh Fsm rather than another Start.
type FsmState uint8

const (
	Idle FsmState = iota
	Active
	Connect
	OpenSent
	OpenConfirm
	Established
	Broken
)

func (s FsmState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Active:
		return "ACTIVE"
	case Connect:
		return "CONNECT"
	case OpenSent:
		return "OPEN_SENT"
	case OpenConfirm:
		return "OPEN_CONFIRM"
	case Established:
		return "ESTABLISHED"
	case Broken:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

// Fsm is the embeddable BGP-4 session state machine (§4.G): it owns no
// socket, timer goroutine or thread. A host drives it with Start, Stop,
// Run (inbound bytes) and Tick (a periodic wall-clock check) and reads
// state back with State/IsEstablished. The naming of the per-message
// handlers below (onOpen/onUpdate/...) follows the teacher's old peer.go
// recvOpenMsgEvent/recvUpdateMsgEvent convention; its *net.TCPConn,
// *time.Ticker and netlink.Link are replaced by the injected OutputSink
// and Clock capabilities, and its changeState(eventType) dispatch table
// collapses into direct per-message-type handlers since this FSM reacts
// to wire messages and timer deadlines rather than transport events.
type Fsm struct {
	config *BgpPeerConfig
	clock  Clock
	out    OutputSink
	log    LogSink
	rib    *Rib
	bus    *RouteEventBus

	state FsmState

	inbuf []byte

	sentOpen bool
	use4B    bool
	peerASN  uint32

	peerRouterID uint32

	negotiatedHold      time.Duration
	negotiatedKeepalive time.Duration

	holdDeadline      time.Time
	keepaliveDeadline time.Time
}

// NewFsm builds an Fsm for one peer from cfg. It starts Idle; the caller
// must call Start to send the first OPEN, or simply feed inbound bytes to
// Run to handle a passively-opened session (§8 scenario S1).
func NewFsm(cfg *BgpPeerConfig) (*Fsm, error) {
	if cfg.PeerASN == 0 {
		return nil, ErrPeerASNRequired
	}
	if cfg.RouterID == nil {
		return nil, ErrRouterIDRequired
	}
	f := &Fsm{
		config: cfg,
		clock:  cfg.clock(),
		out:    cfg.OutHandler,
		log:    cfg.logSink(),
		rib:    cfg.rib(),
		bus:    cfg.bus(),
		state:  Idle,
	}
	if f.out == nil {
		f.out = nopOutputSink{}
	}
	f.bus.Subscribe(f, f.onBusEvent)
	return f, nil
}

func (f *Fsm) State() FsmState     { return f.state }
func (f *Fsm) IsEstablished() bool { return f.state == Established }

// Start implements the host-visible start() operation: send our OPEN and
// move Idle -> OpenSent, matching the "Idle | start() | OpenSent" row of
// §4.G's transition table.
func (f *Fsm) Start() error {
	if f.state != Idle {
		return ErrAlreadyStarted
	}
	f.emitOpen()
	f.sentOpen = true
	f.state = OpenSent
	return nil
}

// Stop implements the host-visible stop() operation: send a CEASE
// notification, tear down every RIB entry scoped to this peer and return
// to Idle. Calling Stop from Idle is a no-op, matching §5's idempotence
// expectation for repeated housekeeping calls.
func (f *Fsm) Stop() error {
	if f.state == Idle {
		return nil
	}
	if f.state != Broken {
		f.emitNotification(NewErrorCode(CEASE, ADMINISTRATIVE_SHUTDOWN))
	}
	f.closeSession()
	return nil
}

// Run implements run(bytes): feed newly-received bytes in, decode as many
// complete messages as are buffered, and report how many bytes were
// consumed. A negative return signals an unrecoverable framing error; the
// session has moved to Broken and the host should discard this Fsm.
func (f *Fsm) Run(data []byte) int {
	f.inbuf = append(f.inbuf, data...)
	consumed := 0
	for {
		if len(f.inbuf) < int(MINIMUM_MESSAGE_LENGTH) {
			break
		}
		length := binary.BigEndian.Uint16(f.inbuf[16:18])
		if length < MINIMUM_MESSAGE_LENGTH || length > MAXIMUM_MESSAGE_LENGTH {
			f.log.Stderr("fsm: bad message length in header, closing")
			f.state = Broken
			return -1
		}
		if len(f.inbuf) < int(length) {
			break
		}
		msgBytes := f.inbuf[:length]
		f.inbuf = append([]byte{}, f.inbuf[length:]...)
		consumed += int(length)
		if err := f.handleInbound(msgBytes); err != nil {
			return -1
		}
	}
	return consumed
}

// Tick implements tick(): a host-driven wall-clock check for the Hold and
// Keepalive timers. It must be called periodically for those timers to
// ever fire; a deadline is acted on at the first Tick at or after it.
func (f *Fsm) Tick() {
	if f.state == Idle || f.state == Broken {
		return
	}
	now := f.clock.Now()
	if !f.holdDeadline.IsZero() && !now.Before(f.holdDeadline) {
		f.log.Stderr("fsm: hold timer expired")
		f.emitNotification(NewErrorCode(HOLD_TIMER_EXPIRED, UNKNOWN_SUBCODE))
		f.closeSession()
		return
	}
	if f.state == Established && !f.keepaliveDeadline.IsZero() && !now.Before(f.keepaliveDeadline) {
		f.emitKeepalive()
		f.armKeepalive(now)
	}
}

func (f *Fsm) handleInbound(msgBytes []byte) error {
	packet, err := Parse(msgBytes)
	if err != nil {
		var ec *ErrorCode
		if errors.As(err, &ec) {
			f.emitNotification(ec)
			f.closeSession()
			return nil
		}
		f.log.Stderr("fsm: unrecoverable parse error: " + err.Error())
		f.state = Broken
		return err
	}

	if f.state != Idle && f.state != Broken {
		f.armHold(f.clock.Now())
	}

	switch msg := packet.Message.(type) {
	case *Open:
		return f.onOpen(msg)
	case *KeepAlive:
		return f.onKeepalive()
	case *Update:
		return f.onUpdate(msg)
	case *Notification:
		return f.onNotification(msg)
	}
	return nil
}

// onOpen handles an inbound OPEN. It is deliberately state-agnostic about
// Idle vs. OpenSent (both the passive S1 scenario and the active
// Idle-start()-then-receive-OPEN flow end up here) and only rejects an
// OPEN arriving once the session is already confirmed or established,
// which is a genuine FSM sequencing error.
func (f *Fsm) onOpen(msg *Open) error {
	if f.state != Idle && f.state != OpenSent {
		f.emitNotification(ErrFiniteStateMachineError)
		f.closeSession()
		return nil
	}
	if ec := msg.Validate(); ec != nil {
		f.emitNotification(ec)
		f.closeSession()
		return nil
	}

	caps, err := msg.Capabilities()
	if err != nil {
		f.emitNotification(ErrUpdateMalformedAttributeList)
		f.closeSession()
		return nil
	}

	peerASN := uint32(msg.AS)
	use4B := false
	if four, ok := GetCap[*FourOctetASCapability](caps); ok {
		peerASN = four.ASN
		use4B = f.config.Use4BASN
	}
	if peerASN != f.config.PeerASN {
		f.emitNotification(ErrOpenInvalidPeerAS)
		f.closeSession()
		return nil
	}

	if msg.Identifier == nil || msg.Identifier.IsUnspecified() || ipToUint32(msg.Identifier) == ipToUint32(f.config.RouterID) {
		f.emitNotification(NewErrorCode(OPEN_MESSAGE_ERROR, BAD_BGP_IDENTIFIER))
		f.closeSession()
		return nil
	}

	f.peerASN = peerASN
	f.use4B = use4B
	f.peerRouterID = ipToUint32(msg.Identifier)

	f.negotiateTimers(msg.HoldTime)

	if !f.sentOpen {
		f.emitOpen()
		f.sentOpen = true
	}
	f.emitKeepalive()

	now := f.clock.Now()
	f.armHold(now)
	f.armKeepalive(now)
	f.state = OpenConfirm
	return nil
}

func (f *Fsm) onKeepalive() error {
	switch f.state {
	case OpenConfirm:
		f.state = Established
		f.armHold(f.clock.Now())
		f.publishLocalOnEstablish()
	case Established:
		f.armHold(f.clock.Now())
	default:
		f.emitNotification(ErrFiniteStateMachineError)
		f.closeSession()
	}
	return nil
}

func (f *Fsm) onUpdate(msg *Update) error {
	if f.state != Established {
		f.emitNotification(ErrFiniteStateMachineError)
		f.closeSession()
		return nil
	}
	if ec := msg.Validate(); ec != nil {
		f.emitNotification(ec)
		f.closeSession()
		return nil
	}

	attrs := msg.PathAttrs
	if asPath, ok := GetPathAttr[*ASPath](attrs); ok && !asPath.Is4B {
		if as4, ok := GetPathAttr[*As4Path](attrs); ok {
			restored := RestoreAsPath4B(asPath, as4, f.log.Stderr)
			attrs = replaceASPath(attrs, restored)
		}
	}

	withdrawn := make([]Prefix4, 0, len(msg.WithdrawnRoutes))
	for _, p := range msg.WithdrawnRoutes {
		if f.rib.Withdraw(f.peerRouterID, p) {
			withdrawn = append(withdrawn, p)
		}
	}
	if len(withdrawn) > 0 {
		f.bus.Publish(f, RouteWithdraw{Prefixes: withdrawn})
	}

	if len(msg.NLRI) == 0 {
		return nil
	}

	nh, _ := GetPathAttr[*NextHop](attrs)
	var nexthop net.IP
	if nh != nil {
		nexthop = nh.Addr
	}
	if !f.config.NoNextHopCheck && !f.nextHopInPeeringLan(nexthop) {
		f.emitNotification(ErrUpdateInvalidNextHopAttribute)
		f.closeSession()
		return nil
	}

	added := make([]Prefix4, 0, len(msg.NLRI))
	for _, p := range msg.NLRI {
		if !filterAllows(f.config.IngressFilters, p) {
			continue
		}
		if changed, err := f.rib.InsertPeer(f.peerRouterID, p, nexthop, attrs, 0); err == nil && changed {
			added = append(added, p)
		}
	}
	if len(added) > 0 {
		f.bus.Publish(f, RouteAdd{Attribs: attrs, Prefixes: added})
	}
	return nil
}

func (f *Fsm) onNotification(msg *Notification) error {
	f.log.Stderr("fsm: received " + msg.Dump())
	f.closeSession()
	return nil
}

// onBusEvent is the Fsm's RouteReceiver, subscribed once at construction
// time so a passively-opened session (one that never calls Start) can
// still egress routes once Established. It egresses
// RouteAdd/RouteWithdraw as outbound UPDATEs and arbitrates RouteCollision
// per §4.G's collision-resolution rule: the side with the numerically
// smaller BGP identifier yields.
func (f *Fsm) onBusEvent(sender any, event RouteEvent) bool {
	switch e := event.(type) {
	case RouteAdd:
		if f.state != Established {
			return false
		}
		prefixes := f.filterEgress(e.Attribs, e.Prefixes)
		if len(prefixes) == 0 {
			return false
		}
		f.emitUpdateAdd(e.Attribs, prefixes)
		return true
	case RouteWithdraw:
		if f.state != Established {
			return false
		}
		f.emitUpdateWithdraw(e.Prefixes)
		return true
	case RouteCollision:
		if f.config.NoCollisionDetection {
			return false
		}
		if e.PeerBgpID != f.peerRouterID {
			return false
		}
		own := ipToUint32(f.config.RouterID)
		if own < e.PeerBgpID {
			f.emitNotification(NewErrorCode(CEASE, CONNECTION_COLLISION_RESOLUTION))
			f.closeSession()
			return true
		}
		return false
	}
	return false
}

// publishLocalOnEstablish announces every locally-originated RIB entry
// the moment a session reaches Established, so a peer configured after
// rib.InsertLocal was already called still receives those routes.
func (f *Fsm) publishLocalOnEstablish() {
	groups := make(map[uint64][]*RibEntry)
	for _, e := range f.rib.Get() {
		if e.SrcRouterID == 0 {
			groups[e.UpdateID] = append(groups[e.UpdateID], e)
		}
	}
	for _, entries := range groups {
		if len(entries) == 0 {
			continue
		}
		prefixes := make([]Prefix4, 0, len(entries))
		for _, e := range entries {
			prefixes = append(prefixes, e.Prefix)
		}
		attrs := append([]PathAttr{}, entries[0].Attribs...)
		attrs = append(attrs, &NextHop{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: NEXT_HOP}, Addr: entries[0].NextHop})
		f.onBusEvent(nil, RouteAdd{Attribs: attrs, Prefixes: prefixes})
	}
}

// filterEgress implements §4.G's egress rules: never advertise a route
// back to the peer it came from, never re-advertise a route whose
// leftmost AS_PATH entry is already this peer's ASN (loop prevention),
// and apply the configured egress filter list.
func (f *Fsm) filterEgress(attribs []PathAttr, prefixes []Prefix4) []Prefix4 {
	if asPath, ok := GetPathAttr[*ASPath](attribs); ok {
		if leftmost, ok := asPath.LeftmostASN(); ok && leftmost == f.config.PeerASN {
			return nil
		}
	}
	out := make([]Prefix4, 0, len(prefixes))
	for _, p := range prefixes {
		if src, ok := f.rib.BestSourceForPrefix(p); ok && src == f.peerRouterID {
			continue
		}
		if !filterAllows(f.config.EgressFilters, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *Fsm) emitUpdateAdd(attribs []PathAttr, prefixes []Prefix4) {
	origin := &Origin{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: ORIGIN}, Value: ORIGIN_IGP}
	var asPath *ASPath
	var existingNextHop net.IP
	rest := make([]PathAttr, 0, len(attribs))
	for _, a := range attribs {
		switch v := a.(type) {
		case *Origin:
			origin = v
		case *ASPath:
			asPath = v.Clone()
		case *NextHop:
			existingNextHop = v.Addr
		case *As4Path:
			// dropped: the outbound UPDATE carries only AS_PATH; no
			// AS4_PATH is generated on egress.
		case *UnknownPathAttr:
			if v.IsTransitive() {
				rest = append(rest, a)
			}
		default:
			rest = append(rest, a)
		}
	}
	if asPath == nil {
		asPath = NewEmptyASPath()
	}
	asPath.Prepend(f.config.ASN)

	nexthop := &NextHop{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: NEXT_HOP}, Addr: f.egressNextHop(existingNextHop)}

	outAttrs := make([]PathAttr, 0, len(rest)+3)
	outAttrs = append(outAttrs, origin, asPath, nexthop)
	outAttrs = append(outAttrs, rest...)

	b := Builder(UPDATE)
	b.PathAttrs(outAttrs)
	b.NLRI(prefixes)
	f.send(b.Packet())
}

func (f *Fsm) emitUpdateWithdraw(prefixes []Prefix4) {
	b := Builder(UPDATE)
	b.WithdrawnRoutes(prefixes)
	f.send(b.Packet())
}

// egressNextHop implements §4.G's nexthop policy: a forced default
// nexthop wins outright; otherwise an existing nexthop already inside the
// configured peering LAN is left unchanged, and anything else is
// rewritten to our own configured nexthop.
func (f *Fsm) egressNextHop(existing net.IP) net.IP {
	if f.config.ForcedDefaultNextHop && f.config.NextHop != nil {
		return f.config.NextHop
	}
	if lan, ok := f.config.peeringLan(); ok && existing != nil {
		if v4 := existing.To4(); v4 != nil {
			p := Prefix4{Length: 32}
			copy(p.Addr[:], v4)
			if lan.Includes(p) {
				return existing
			}
		}
	}
	if f.config.NextHop != nil {
		return f.config.NextHop
	}
	if existing != nil {
		return existing
	}
	return f.config.RouterID
}

func (f *Fsm) nextHopInPeeringLan(nexthop net.IP) bool {
	lan, ok := f.config.peeringLan()
	if !ok {
		return true
	}
	if nexthop == nil {
		return false
	}
	v4 := nexthop.To4()
	if v4 == nil {
		return false
	}
	p := Prefix4{Length: 32}
	copy(p.Addr[:], v4)
	return lan.Includes(p)
}

// negotiateTimers implements the Hold/Keepalive negotiation rule: the
// smaller of our configured Hold timer and the peer's advertised one
// wins; either side offering 0 disables both timers for the session.
func (f *Fsm) negotiateTimers(peerHoldSeconds uint16) {
	mine := f.config.holdTimer()
	peer := time.Duration(peerHoldSeconds) * time.Second
	switch {
	case mine == 0 || peer == 0:
		f.negotiatedHold = 0
	case peer < mine:
		f.negotiatedHold = peer
	default:
		f.negotiatedHold = mine
	}
	if f.negotiatedHold == 0 {
		f.negotiatedKeepalive = 0
	} else {
		f.negotiatedKeepalive = f.negotiatedHold / 3
	}
}

func (f *Fsm) armHold(now time.Time) {
	if f.negotiatedHold <= 0 {
		f.holdDeadline = time.Time{}
		return
	}
	f.holdDeadline = now.Add(f.negotiatedHold)
}

func (f *Fsm) armKeepalive(now time.Time) {
	if f.negotiatedKeepalive <= 0 {
		f.keepaliveDeadline = time.Time{}
		return
	}
	f.keepaliveDeadline = now.Add(f.negotiatedKeepalive)
}

func (f *Fsm) emitOpen() {
	caps := make([]Capability, 0, 2)
	if f.config.Use4BASN {
		caps = append(caps, NewFourOctetASCapability(f.config.ASN))
	}
	caps = append(caps, defaultCaps()...)

	opts := make([]*Option, 0, len(caps))
	for _, c := range caps {
		opt, err := CapabilityOption(c)
		if err != nil {
			f.log.Stderr("fsm: encode capability: " + err.Error())
			continue
		}
		opts = append(opts, opt)
	}

	b := Builder(OPEN)
	b.AS(f.config.ASN)
	b.HoldTime(f.config.holdTimer())
	b.Identifier(f.config.RouterID)
	b.Options(opts)
	f.send(b.Packet())
}

func (f *Fsm) emitKeepalive() {
	f.send(Builder(KEEPALIVE).Packet())
}

func (f *Fsm) emitNotification(ec *ErrorCode) {
	if ec == nil {
		return
	}
	b := Builder(NOTIFICATION)
	b.ErrorCode(ec)
	if ec.Data != nil {
		b.Data(ec.Data)
	}
	f.send(b.Packet())
}

func (f *Fsm) send(packet *Packet) {
	if packet == nil {
		return
	}
	raw, err := packet.Decode()
	if err != nil {
		f.log.Stderr("fsm: encode outbound message: " + err.Error())
		return
	}
	if !f.out.Write(raw) {
		f.log.Stderr("fsm: output sink rejected write")
	}
}

// closeSession implements the "discard every RIB entry scoped to this
// peer and return to Idle" half of every closing transition in §4.G's
// table (FSM error, NOTIFICATION received, Hold expiry, collision loss,
// stop()).
func (f *Fsm) closeSession() {
	if f.peerRouterID != 0 {
		withdrawn := f.rib.Discard(f.peerRouterID)
		if len(withdrawn) > 0 {
			f.bus.Publish(f, RouteWithdraw{Prefixes: withdrawn})
		}
	}
	f.state = Idle
	f.sentOpen = false
	f.peerRouterID = 0
	f.peerASN = 0
	f.holdDeadline = time.Time{}
	f.keepaliveDeadline = time.Time{}
	f.inbuf = nil
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func replaceASPath(attrs []PathAttr, restored *ASPath) []PathAttr {
	out := make([]PathAttr, 0, len(attrs))
	for _, a := range attrs {
		switch a.(type) {
		case *ASPath, *As4Path:
			continue
		default:
			out = append(out, a)
		}
	}
	out = append(out, restored)
	return out
}

type nopOutputSink struct{}

func (nopOutputSink) Write([]byte) bool { return true }
