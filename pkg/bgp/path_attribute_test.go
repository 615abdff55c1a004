package bgp

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathAttrs(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		attrs []PathAttrType
	}{
		{
			name: "CASE 1",
			data: []byte{0x40, 0x01, 0x01, 0x00, 0x50, 0x02, 0x00, 0x04, 0x02, 0x01, 0x00, 0xc8, 0x40, 0x03, 0x04, 0x0a,
				0x00, 0x00, 0x02},
			attrs: []PathAttrType{ORIGIN, AS_PATH, NEXT_HOP},
		},
		{
			name: "CASE 2",
			data: []byte{0x40, 0x01, 0x01, 0x00, 0x50, 0x02, 0x00, 0x06, 0x02, 0x02, 0x00, 0xc8, 0x01, 0x90, 0x40, 0x03,
				0x04, 0x0a, 0x00, 0x00, 0x02},
			attrs: []PathAttrType{ORIGIN, AS_PATH, NEXT_HOP},
		},
		{
			name:  "CASE 3",
			data:  []byte{0x40, 0x01, 0x01, 0x00, 0x50, 0x02, 0x00, 0x04, 0x02, 01, 0x00, 0xc8, 0x40, 0x03, 0x04, 0x0a, 0x00, 0x00, 0x02, 0x80, 0x04, 0x04, 0x00, 0x00, 0x00, 0x00},
			attrs: []PathAttrType{ORIGIN, AS_PATH, NEXT_HOP, MULTI_EXIT_DISC},
		},
		{
			name: "COMMUNITIES",
			data: []byte{0x40, 0x01, 0x01, 0x00, 0x40, 0x02, 0x04, 0x02, 0x01, 0x00, 0x64, 0x40, 0x03,
				0x04, 0x0a, 0x01, 0x0c, 0x01, 0x80, 0x04, 0x04, 0x00, 0x00, 0x00, 0x00, 0xc0, 0x08, 0x04, 0xff, 0xff, 0xff, 0x02},
			attrs: []PathAttrType{ORIGIN, AS_PATH, NEXT_HOP, MULTI_EXIT_DISC, COMMUNITIES},
		},
		{
			name: "unrecognized type falls through to Unknown",
			data: []byte{0x40, 0x01, 0x01, 0x00, 0x50, 0x02, 0x00, 0x04, 0x02, 0x01, 0xfd, 0xea, 0x80, 0x0e, 0x02, 0xaa, 0xbb},
			attrs: []PathAttrType{ORIGIN, AS_PATH, PathAttrType(14)},
		},
	}
	t.Parallel()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := ParsePathAttrs(bytes.NewBuffer(tt.data))
			require.NoError(t, err)
			for i := 0; i < len(tt.attrs); i++ {
				assert.Equal(t, tt.attrs[i], attrs[i].Type())
			}
		})
	}
}

func TestParsePathAttribute(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		attr PathAttr
	}{
		{
			name: "AS_PATH 200",
			data: []byte{0x50, 0x02, 0x00, 0x04, 0x02, 0x01, 0x00, 0xc8},
			attr: &ASPath{
				pathAttr: &pathAttr{flags: 0x50, typ: AS_PATH},
				Segments: []*ASPathSegment{
					{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{200}},
				},
			},
		},
		{
			name: "AS_PATH 200, 400",
			data: []byte{0x50, 0x02, 0x00, 0x06, 0x02, 0x02, 0x00, 0xc8, 0x01, 0x90},
			attr: &ASPath{
				pathAttr: &pathAttr{flags: 0x50, typ: AS_PATH},
				Segments: []*ASPathSegment{
					{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{200, 400}},
				},
			},
		},
		{
			name: "ORIGIN IGP",
			data: []byte{0x40, 0x01, 0x01, 0x00},
			attr: &Origin{
				pathAttr: &pathAttr{flags: 0x40, typ: ORIGIN},
				Value:    ORIGIN_IGP,
			},
		},
		{
			name: "ORIGIN EGP",
			data: []byte{0x40, 0x01, 0x01, 0x01},
			attr: &Origin{
				pathAttr: &pathAttr{flags: 0x40, typ: ORIGIN},
				Value:    ORIGIN_EGP,
			},
		},
		{
			name: "NEXT_HOP 10.0.0.2",
			data: []byte{0x40, 0x03, 0x04, 0x0a, 0x00, 0x00, 0x02},
			attr: &NextHop{
				pathAttr: &pathAttr{flags: 0x40, typ: NEXT_HOP},
				Addr:     net.ParseIP("10.0.0.2"),
			},
		},
	}
	t.Parallel()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			attr, err := parsePathAttr(bytes.NewBuffer(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.attr.Flags(), attr.Flags())
			assert.Equal(t, tt.attr.Type(), attr.Type())
			assert.Equal(t, tt.attr.String(), attr.String())
		})
	}
}

func TestPathAttrDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		attrType PathAttrType
	}{
		{
			name:     "AS_PATH 1",
			data:     []byte{0x50, 0x02, 0x00, 0x04, 0x02, 0x01, 0x00, 0xc8},
			attrType: AS_PATH,
		},
		{
			name:     "AS_PATH 2",
			data:     []byte{0x50, 0x02, 0x00, 0x06, 0x02, 0x02, 0x00, 0xc8, 0x01, 0x90},
			attrType: AS_PATH,
		},
		{
			name:     "ORIGIN IGP",
			data:     []byte{0x40, 0x01, 0x01, 0x00},
			attrType: ORIGIN,
		},
		{
			name:     "ORIGIN EGP",
			data:     []byte{0x40, 0x01, 0x01, 0x01},
			attrType: ORIGIN,
		},
		{
			name:     "NEXT_HOP 10.0.0.2",
			data:     []byte{0x40, 0x03, 0x04, 0x0a, 0x00, 0x00, 0x02},
			attrType: NEXT_HOP,
		},
		{
			name:     "COMMUNITIES",
			data:     []byte{0xc0, 0x08, 0x04, 0xff, 0xff, 0xff, 0x02},
			attrType: COMMUNITIES,
		},
		{
			name:     "AS4_PATH",
			data:     []byte{0xc0, 0x11, 0x06, 0x02, 0x01, 0x00, 0x01, 0x00, 0x01},
			attrType: AS4_PATH,
		},
		{
			name:     "AS4_AGGREGATOR",
			data:     []byte{0xc0, 0x12, 0x08, 0x00, 0x01, 0x00, 0x01, 0x0a, 0x00, 0x00, 0x01},
			attrType: AS4_AGGREGATOR,
		},
	}
	t.Parallel()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			attr, err := parsePathAttr(bytes.NewBuffer(tt.data))
			require.NoError(t, err)
			res, err := attr.Decode()
			require.NoError(t, err)
			assert.Equal(t, tt.data, res)
		})
	}
}

func TestPathAttrIsTransitive(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		typ          PathAttrType
		isTransitive bool
	}{
		{
			name:         "ORIGIN: Transitive",
			data:         []byte{0x40, 0x01, 0x01, 0x00},
			typ:          ORIGIN,
			isTransitive: true,
		},
		{
			name:         "COMMUNITIES: Transitive",
			data:         []byte{0xc0, 0x08, 0x04, 0xff, 0xff, 0xff, 0x02},
			typ:          COMMUNITIES,
			isTransitive: true,
		},
		{
			name:         "MULTI_EXIT_DISC: Non transitive",
			data:         []byte{0x80, 0x04, 0x04, 0x00, 0x00, 0x00, 0x00},
			typ:          MULTI_EXIT_DISC,
			isTransitive: false,
		},
		{
			name:         "LOCAL_PREF: Transitive",
			data:         []byte{0x40, 0x05, 0x04, 0x00, 0x00, 0x00, 0x64},
			typ:          LOCAL_PREF,
			isTransitive: true,
		},
	}
	t.Parallel()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, err := parsePathAttr(bytes.NewBuffer(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.typ, attr.Type())
			assert.Equal(t, tt.isTransitive, attr.IsTransitive())
		})
	}
}

func TestAtomicAggregateType(t *testing.T) {
	data := []byte{0x40, 0x06, 0x00}
	attr, err := parsePathAttr(bytes.NewBuffer(data))
	require.NoError(t, err)
	assert.Equal(t, ATOMIC_AGGREGATE, attr.Type())
}

func TestASPathPrepend(t *testing.T) {
	tests := []struct {
		name    string
		path    *ASPath
		prepend uint32
		want    []*ASPathSegment
	}{
		{
			name: "extends leading AS_SEQUENCE",
			path: &ASPath{
				pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
				Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{200}}},
			},
			prepend: 100,
			want:    []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{100, 200}}},
		},
		{
			name:    "creates leading AS_SEQUENCE on empty path",
			path:    NewEmptyASPath(),
			prepend: 100,
			want:    []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, Is4B: true, ASNs: []uint32{100}}},
		},
		{
			name: "creates a new leading AS_SEQUENCE when the path starts with an AS_SET",
			path: &ASPath{
				pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
				Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SET, ASNs: []uint32{300, 400}}},
			},
			prepend: 100,
			want: []*ASPathSegment{
				{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{100}},
				{Type: SEG_TYPE_AS_SET, ASNs: []uint32{300, 400}},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.path.Prepend(tt.prepend)
			require.Len(t, tt.path.Segments, len(tt.want))
			for i, seg := range tt.want {
				assert.Equal(t, seg.Type, tt.path.Segments[i].Type)
				assert.Equal(t, seg.ASNs, tt.path.Segments[i].ASNs)
			}
		})
	}
}

func TestASPathASNCount(t *testing.T) {
	path := &ASPath{
		pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
		Segments: []*ASPathSegment{
			{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{100, 200}},
			{Type: SEG_TYPE_AS_SET, ASNs: []uint32{300, 400, 500}},
		},
	}
	assert.Equal(t, 3, path.ASNCount())
	leftmost, ok := path.LeftmostASN()
	require.True(t, ok)
	assert.EqualValues(t, 100, leftmost)
}

func TestRestoreAsPath4B(t *testing.T) {
	as2 := &ASPath{
		pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
		Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{100, AS_TRANS, AS_TRANS}}},
	}
	as4 := &As4Path{
		Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, Is4B: true, ASNs: []uint32{100, 4200000001, 4200000002}}},
	}
	var warnings []string
	restored := RestoreAsPath4B(as2, as4, func(s string) { warnings = append(warnings, s) })
	require.Len(t, restored.Segments, 1)
	assert.Equal(t, []uint32{100, 4200000001, 4200000002}, restored.Segments[0].ASNs)
	assert.Empty(t, warnings)
}

func TestRestoreAsPath4BMultiSegmentResetsPerSegment(t *testing.T) {
	// A SEQUENCE segment followed by a SET segment, both carrying a single
	// AS_TRANS placeholder, against a one-entry AS4_PATH. Without a
	// per-segment reset, the SEQUENCE segment consumes the only flat
	// entry and the SET segment's AS_TRANS is left unresolved.
	as2 := &ASPath{
		pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
		Segments: []*ASPathSegment{
			{Type: SEG_TYPE_AS_SEQUENCE, ASNs: []uint32{AS_TRANS}},
			{Type: SEG_TYPE_AS_SET, ASNs: []uint32{AS_TRANS}},
		},
	}
	as4 := &As4Path{
		Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, Is4B: true, ASNs: []uint32{4200000001}}},
	}
	restored := RestoreAsPath4B(as2, as4, nil)
	require.Len(t, restored.Segments, 2)
	assert.Equal(t, []uint32{4200000001}, restored.Segments[0].ASNs)
	assert.Equal(t, []uint32{4200000001}, restored.Segments[1].ASNs)
}

func TestDowngradeAsPath4B(t *testing.T) {
	full := &ASPath{
		pathAttr: &pathAttr{flags: PATH_ATTR_FLAG_TRANSITIVE, typ: AS_PATH},
		Is4B:     true,
		Segments: []*ASPathSegment{{Type: SEG_TYPE_AS_SEQUENCE, Is4B: true, ASNs: []uint32{100, 4200000001}}},
	}
	as2, as4 := DowngradeAsPath4B(full)
	assert.Equal(t, []uint32{100, AS_TRANS}, as2.Segments[0].ASNs)
	assert.Equal(t, []uint32{100, 4200000001}, as4.Segments[0].ASNs)
}

func TestParsePathAttrRejectsWrongFlags(t *testing.T) {
	// ORIGIN is well-known mandatory: its canonical flags are Transitive
	// only (0x40). Setting Optional (0x80) on top gives 0xc0, which must
	// be rejected as ATTR_FLAG regardless of the value being otherwise
	// well-formed.
	data := []byte{0xc0, 0x01, 0x01, 0x00}
	_, err := parsePathAttr(bytes.NewBuffer(data))
	require.Error(t, err)
	var ec *ErrorCode
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, UPDATE_MESSAGE_ERROR, ec.Code)
	assert.Equal(t, ATTRIBUTE_FLAGS_ERROR, ec.Subcode)
	assert.Equal(t, data, ec.Data)
}

func TestParsePathAttrRejectsWrongLength(t *testing.T) {
	// ORIGIN's value is always a single byte; a declared length of 2 is
	// malformed even though the flags and type are otherwise correct.
	data := []byte{0x40, 0x01, 0x02, 0x00, 0x00}
	_, err := parsePathAttr(bytes.NewBuffer(data))
	require.Error(t, err)
	var ec *ErrorCode
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, UPDATE_MESSAGE_ERROR, ec.Code)
	assert.Equal(t, ATTRIBUTE_LENGTH_ERROR, ec.Subcode)
	assert.Equal(t, data, ec.Data)
}

func TestGetPathAttr(t *testing.T) {
	attrs := []PathAttr{
		&Origin{pathAttr: &pathAttr{flags: 0x40, typ: ORIGIN}, Value: ORIGIN_IGP},
		&NextHop{pathAttr: &pathAttr{flags: 0x40, typ: NEXT_HOP}, Addr: net.ParseIP("10.0.0.1")},
	}
	nh, ok := GetPathAttr[*NextHop](attrs)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", nh.Addr.String())

	_, ok = GetPathAttr[*LocalPref](attrs)
	assert.False(t, ok)
}
