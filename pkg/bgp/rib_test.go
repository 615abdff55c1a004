package bgp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRibInsertLocalRejectsDuplicate(t *testing.T) {
	r := NewRib()
	p := MustPrefix4("10.0.0.0/24")
	_, err := r.InsertLocal(p, net.ParseIP("10.0.0.1"), 0)
	require.NoError(t, err)
	_, err = r.InsertLocal(p, net.ParseIP("10.0.0.1"), 0)
	assert.Error(t, err)
}

func TestRibInsertLocalSharesUpdateGroup(t *testing.T) {
	r := NewRib()
	a, err := r.InsertLocal(MustPrefix4("10.0.0.0/24"), net.ParseIP("10.0.0.1"), 0)
	require.NoError(t, err)
	b, err := r.InsertLocal(MustPrefix4("10.0.1.0/24"), net.ParseIP("10.0.0.1"), 0)
	require.NoError(t, err)
	assert.Equal(t, a.UpdateID, b.UpdateID)

	c, err := r.InsertLocal(MustPrefix4("10.0.2.0/24"), net.ParseIP("10.0.0.2"), 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.UpdateID, c.UpdateID)
}

func asPathAttr(asns ...uint32) *ASPath {
	return &ASPath{
		pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
		Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, Is4B: true, ASNs: asns}},
		Is4B:     true,
	}
}

func localPrefAttr(v uint32) *LocalPref {
	return &LocalPref{pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: LOCAL_PREF}, Value: v}
}

func TestRibInsertPeerTieBreakByLocalPref(t *testing.T) {
	r := NewRib()
	p := MustPrefix4("203.0.113.0/24")

	changed, err := r.InsertPeer(1, p, net.ParseIP("10.0.0.1"), []PathAttr{localPrefAttr(100), asPathAttr(65001)}, 0)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.InsertPeer(2, p, net.ParseIP("10.0.0.2"), []PathAttr{localPrefAttr(200), asPathAttr(65002)}, 0)
	require.NoError(t, err)
	assert.True(t, changed)

	best, ok := r.Lookup(net.ParseIP("203.0.113.1"))
	require.True(t, ok)
	assert.EqualValues(t, 2, best.SrcRouterID)
}

func TestRibInsertPeerTieBreakByShorterASPath(t *testing.T) {
	r := NewRib()
	p := MustPrefix4("203.0.113.0/24")

	_, err := r.InsertPeer(1, p, net.ParseIP("10.0.0.1"), []PathAttr{localPrefAttr(100), asPathAttr(65001, 65003)}, 0)
	require.NoError(t, err)
	_, err = r.InsertPeer(2, p, net.ParseIP("10.0.0.2"), []PathAttr{localPrefAttr(100), asPathAttr(65002)}, 0)
	require.NoError(t, err)

	best, ok := r.Lookup(net.ParseIP("203.0.113.1"))
	require.True(t, ok)
	assert.EqualValues(t, 2, best.SrcRouterID)
}

func TestRibWithdrawAndDiscard(t *testing.T) {
	r := NewRib()
	p1, p2 := MustPrefix4("10.1.0.0/24"), MustPrefix4("10.2.0.0/24")
	_, err := r.InsertPeer(9, p1, net.ParseIP("10.0.0.9"), []PathAttr{asPathAttr(65009)}, 0)
	require.NoError(t, err)
	_, err = r.InsertPeer(9, p2, net.ParseIP("10.0.0.9"), []PathAttr{asPathAttr(65009)}, 0)
	require.NoError(t, err)

	assert.True(t, r.Withdraw(9, p1))
	assert.False(t, r.Withdraw(9, p1))

	removed := r.Discard(9)
	assert.ElementsMatch(t, []Prefix4{p2}, removed)
	assert.Empty(t, r.Get())
}

func TestRibLookupFromSrcScoping(t *testing.T) {
	r := NewRib()
	p := MustPrefix4("198.51.100.0/24")
	_, err := r.InsertPeer(1, p, net.ParseIP("10.0.0.1"), []PathAttr{asPathAttr(65001)}, 0)
	require.NoError(t, err)

	_, ok := r.LookupFromSrc(2, net.ParseIP("198.51.100.5"))
	assert.False(t, ok)

	entry, ok := r.LookupFromSrc(1, net.ParseIP("198.51.100.5"))
	require.True(t, ok)
	assert.Equal(t, p, entry.Prefix)
}

func TestRibBestSourceForPrefix(t *testing.T) {
	r := NewRib()
	p := MustPrefix4("203.0.113.0/24")
	_, err := r.InsertPeer(1, p, net.ParseIP("10.0.0.1"), []PathAttr{localPrefAttr(100), asPathAttr(65001)}, 0)
	require.NoError(t, err)
	_, err = r.InsertPeer(2, p, net.ParseIP("10.0.0.2"), []PathAttr{localPrefAttr(200), asPathAttr(65002)}, 0)
	require.NoError(t, err)

	src, ok := r.BestSourceForPrefix(p)
	require.True(t, ok)
	assert.EqualValues(t, 2, src)

	_, ok = r.BestSourceForPrefix(MustPrefix4("192.0.2.0/24"))
	assert.False(t, ok)
}
