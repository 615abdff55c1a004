package bgp

import (
	"fmt"
	"net"
	"sort"
	"sync"
)

// RibEntry is a single per-family routing table entry (§3). SrcRouterID==0
// designates a locally-injected route, matching the insert_local rule that
// scope=0 means "local". Attribs is shared by reference among every entry
// of one update-group so the FSM can emit a whole group in a single UPDATE
// without re-walking the table.
type RibEntry struct {
	Prefix      Prefix4
	SrcRouterID uint32
	NextHop     net.IP
	Attribs     []PathAttr
	Weight      int32
	UpdateID    uint64
}

func (e *RibEntry) localPref() uint32 {
	if lp, ok := GetPathAttr[*LocalPref](e.Attribs); ok {
		return lp.Value
	}
	return DefaultLocalPref
}

func (e *RibEntry) asPathLen() int {
	if asp, ok := GetPathAttr[*ASPath](e.Attribs); ok {
		return asp.ASNCount()
	}
	return 0
}

func (e *RibEntry) originValue() uint8 {
	if o, ok := GetPathAttr[*Origin](e.Attribs); ok {
		return o.Value
	}
	return ORIGIN_INCOMPLETE
}

func (e *RibEntry) med() (uint32, bool) {
	if m, ok := GetPathAttr[*MultiExitDisc](e.Attribs); ok {
		return m.Value, true
	}
	return 0, false
}

func (e *RibEntry) leftmostASN() (uint32, bool) {
	if asp, ok := GetPathAttr[*ASPath](e.Attribs); ok {
		return asp.LeftmostASN()
	}
	return 0, false
}

type ribKey struct {
	prefix Prefix4
	src    uint32
}

// Rib is the per-family routing table (§4.E). A single, non-reentrant
// sync.Mutex is held for the duration of every exported operation, so
// writes are serialized against reads; reads are serialized against each
// other too, and never run concurrently. The original AdjRibIn/AdjRibOut/
// LocRib split and its netlink-backed isntallToRib (kernel FIB programming
// is an explicit Non-goal) are replaced by this one table per family.
type Rib struct {
	mu      sync.Mutex
	entries map[ribKey]*RibEntry
	nextID  uint64
	log     Logger
}

func NewRib() *Rib {
	return &Rib{entries: make(map[ribKey]*RibEntry), log: nopLogger{}}
}

func (r *Rib) SetLogger(l Logger) {
	if l != nil {
		r.log = l
	}
}

// InsertLocal implements insert_local: build {Origin=IGP, AsPath=empty-4b},
// scope src=0, reject a duplicate local prefix, and reuse an existing local
// route's update_id when the nexthop matches so the two entries pack into
// one outbound UPDATE.
func (r *Rib) InsertLocal(prefix Prefix4, nexthop net.IP, weight int32) (*RibEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ribKey{prefix: prefix, src: 0}
	if _, exists := r.entries[key]; exists {
		return nil, fmt.Errorf("rib: local route %s already present", prefix)
	}

	updateID := r.nextUpdateIDLocked()
	attribs := []PathAttr{
		&Origin{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: ORIGIN}, Value: ORIGIN_IGP},
		NewEmptyASPath(),
	}
	for _, e := range r.entries {
		if e.SrcRouterID == 0 && e.NextHop.Equal(nexthop) {
			updateID = e.UpdateID
			attribs = e.Attribs
			break
		}
	}

	entry := &RibEntry{
		Prefix:      prefix,
		SrcRouterID: 0,
		NextHop:     nexthop,
		Attribs:     attribs,
		Weight:      weight,
		UpdateID:    updateID,
	}
	r.entries[key] = entry
	r.log.Info(fmt.Sprintf("rib: inserted local route %s via %s", prefix, nexthop))
	return entry, nil
}

// InsertPeer implements insert_peer: append if the (prefix, src) pair is
// absent; replace only if the new entry wins the tie-break over the
// existing one. Returns whether a change occurred.
func (r *Rib) InsertPeer(src uint32, prefix Prefix4, nexthop net.IP, attribs []PathAttr, weight int32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ribKey{prefix: prefix, src: src}
	candidate := &RibEntry{
		Prefix:      prefix,
		SrcRouterID: src,
		NextHop:     nexthop,
		Attribs:     attribs,
		Weight:      weight,
		UpdateID:    r.nextUpdateIDLocked(),
	}
	existing, ok := r.entries[key]
	if !ok {
		r.entries[key] = candidate
		return true, nil
	}
	if ribGreater(candidate, existing) {
		candidate.UpdateID = existing.UpdateID
		r.entries[key] = candidate
		return true, nil
	}
	return false, nil
}

// Withdraw implements withdraw: remove the matching entry, reporting
// whether one was present.
func (r *Rib) Withdraw(src uint32, prefix Prefix4) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ribKey{prefix: prefix, src: src}
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Discard implements discard: remove every entry with the given source,
// returning the prefixes that were removed so a closing session can
// publish a bulk Withdraw and the caller can tear down Adj-RIB-Out state
// for that peer.
func (r *Rib) Discard(src uint32) []Prefix4 {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := make([]Prefix4, 0)
	for key := range r.entries {
		if key.src == src {
			removed = append(removed, key.prefix)
			delete(r.entries, key)
		}
	}
	return removed
}

// Lookup implements lookup(dest): among every entry whose prefix covers
// dest, select the tie-break winner.
func (r *Rib) Lookup(dest net.IP) (*RibEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(nil, dest)
}

// LookupFromSrc implements the scoped lookup(src, dest) variant, confining
// the candidate set to entries from a given peer before applying the same
// tie-break.
func (r *Rib) LookupFromSrc(src uint32, dest net.IP) (*RibEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(&src, dest)
}

func (r *Rib) lookupLocked(src *uint32, dest net.IP) (*RibEntry, bool) {
	v4 := dest.To4()
	if v4 == nil {
		return nil, false
	}
	destPrefix := Prefix4{Length: 32}
	copy(destPrefix.Addr[:], v4)

	var candidates []*RibEntry
	for key, e := range r.entries {
		if src != nil && key.src != *src {
			continue
		}
		if e.Prefix.Includes(destPrefix) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return ribGreater(candidates[i], candidates[j])
	})
	return candidates[0], true
}

// BestSourceForPrefix reports the tie-break winner's SrcRouterID among
// every entry keyed by exactly this prefix (not a covering scan), used by
// the FSM's egress loop-prevention rule: never re-advertise a route back
// to the peer it was learned from.
func (r *Rib) BestSourceForPrefix(prefix Prefix4) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*RibEntry
	for key, e := range r.entries {
		if key.prefix.Equal(prefix) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return ribGreater(candidates[i], candidates[j])
	})
	return candidates[0].SrcRouterID, true
}

// Get implements get(): a read-only snapshot, safe for the caller to range
// over without holding the Rib's lock.
func (r *Rib) Get() []*RibEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RibEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// EntriesByUpdateGroup returns every entry carrying updateID, i.e. the
// members of one update-group, such as several rib.insert_local calls at
// the same nexthop. The FSM does not call it: publishLocalOnEstablish
// groups the entries of Get() by UpdateID itself.
func (r *Rib) EntriesByUpdateGroup(updateID uint64) []*RibEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RibEntry, 0)
	for _, e := range r.entries {
		if e.UpdateID == updateID {
			out = append(out, e)
		}
	}
	return out
}

func (r *Rib) nextUpdateIDLocked() uint64 {
	r.nextID++
	return r.nextID
}

// ribGreater implements the tie-break order, adapted from path.go's
// sortPathes/compareFuncs comparator pipeline in the teacher with the
// netlink- and peer-info-bound criteria (metric to next hop, local-
// originated, EBGP/IBGP, peer IP address) dropped since this RIB has no
// notion of link state or session type, and weight promoted to the first
// criterion exactly as the spec orders it.
func ribGreater(a, b *RibEntry) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if lp1, lp2 := a.localPref(), b.localPref(); lp1 != lp2 {
		return lp1 > lp2
	}
	if l1, l2 := a.asPathLen(), b.asPathLen(); l1 != l2 {
		return l1 < l2
	}
	if o1, o2 := a.originValue(), b.originValue(); o1 != o2 {
		return o1 < o2
	}
	if asn1, ok1 := a.leftmostASN(); ok1 {
		if asn2, ok2 := b.leftmostASN(); ok2 && asn1 == asn2 {
			med1, hasMed1 := a.med()
			med2, hasMed2 := b.med()
			if hasMed1 && hasMed2 && med1 != med2 {
				return med1 < med2
			}
		}
	}
	return a.SrcRouterID < b.SrcRouterID
}
