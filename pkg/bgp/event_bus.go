package bgp

import "sync"

// RouteEvent is the tagged variant the Route Event Bus carries (§4.F):
// RouteAdd/RouteWithdraw/RouteCollision. Modeled as an interface with a type
// switch, the same tagged-variant idiom path_attribute.go and message.go
// use for PathAttr/Message, rather than a single struct with optional
// fields for every event kind.
type RouteEvent interface {
	routeEvent()
}

// RouteAdd announces that attribs now covers prefixes; published by an FSM
// after a successful UPDATE ingest, or by the host directly after
// rib.InsertLocal.
type RouteAdd struct {
	Attribs  []PathAttr
	Prefixes []Prefix4
}

// RouteWithdraw announces that prefixes are no longer reachable.
type RouteWithdraw struct {
	Prefixes []Prefix4
}

// RouteCollision reports an OPEN collision against PeerBgpID (§4.G): two
// sessions to the same peer identifier exist simultaneously and one must
// yield.
type RouteCollision struct {
	PeerBgpID uint32
}

func (RouteAdd) routeEvent()       {}
func (RouteWithdraw) routeEvent()  {}
func (RouteCollision) routeEvent() {}

// RouteReceiver is what subscribe(receiver) actually dispatches to: given
// the event and the identity of its sender, decide whether to act on it
// and report whether it was "handled" per §4.F's logical-OR contract.
type RouteReceiver func(sender any, event RouteEvent) bool

type routeSubscription struct {
	token    any
	receiver RouteReceiver
}

// RouteEventBus is the synchronous in-process pub/sub hub (§4.F) that lets
// multiple FSMs share route changes and detect OPEN collisions without
// knowing about each other. Grounded on original_source/src/route-event.h
// and examples/route-event-bus.cc's PipedOutHandler wiring: delivery is
// synchronous, in subscription order, on the publisher's goroutine, and a
// receiver whose token equals the publish call's sender is skipped.
//
// The bus holds no lock across Publish (§5: "must not be mutated from
// within a handler") — it only locks long enough to snapshot the current
// subscriber list before dispatching.
type RouteEventBus struct {
	mu   sync.Mutex
	subs []routeSubscription
}

func NewRouteEventBus() *RouteEventBus {
	return &RouteEventBus{}
}

// Subscribe registers receiver under token. token is the stable identity
// used for self-exclusion in Publish and for Unsubscribe; typically the
// subscribing *Fsm itself.
func (b *RouteEventBus) Subscribe(token any, receiver RouteReceiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, routeSubscription{token: token, receiver: receiver})
}

// Unsubscribe removes every subscription registered under token. Per §4.F,
// calling this from within a receiver during Publish is undefined and must
// not be attempted.
func (b *RouteEventBus) Unsubscribe(token any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.token != token {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Publish delivers event to every subscriber except the one whose token
// equals sender (self-exclusion; sender may be nil to exclude nobody), in
// subscription order, on the caller's goroutine. It returns the logical-OR
// of every receiver's "handled" return.
func (b *RouteEventBus) Publish(sender any, event RouteEvent) bool {
	b.mu.Lock()
	subs := make([]routeSubscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	handled := false
	for _, s := range subs {
		if sender != nil && s.token == sender {
			continue
		}
		if s.receiver(sender, event) {
			handled = true
		}
	}
	return handled
}
