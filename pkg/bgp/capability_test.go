package bgp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMultiProtocolExtensions(t *testing.T) {
	for _, tt := range []struct {
		data []byte
		m    *MultiProtocolExtensions
	}{
		{data: []byte{0x00, 0x01, 0x00, 0x01}, m: &MultiProtocolExtensions{AFI: AFI_IPv4, SAFI: SAFI_UNICAST}},
		{data: []byte{0x00, 0x02, 0x00, 0x01}, m: &MultiProtocolExtensions{AFI: AFI_IPv6, SAFI: SAFI_UNICAST}},
		{data: []byte{0x00, 0x01, 0x00, 0x02}, m: &MultiProtocolExtensions{AFI: AFI_IPv4, SAFI: SAFI_MULTICAST}},
	} {
		m, err := newMultiProtocolExtensions(tt.data)
		require.NoError(t, err)
		assert.Equal(t, tt.m.AFI, m.AFI)
		assert.Equal(t, tt.m.SAFI, m.SAFI)
	}
}

func TestMultiProtocolExtensionsDecode(t *testing.T) {
	for _, tt := range []struct {
		m    *MultiProtocolExtensions
		data []byte
	}{
		{data: []byte{0x01, 0x04, 0x00, 0x01, 0x00, 0x01}, m: &MultiProtocolExtensions{AFI: AFI_IPv4, SAFI: SAFI_UNICAST}},
		{data: []byte{0x01, 0x04, 0x00, 0x02, 0x00, 0x01}, m: &MultiProtocolExtensions{AFI: AFI_IPv6, SAFI: SAFI_UNICAST}},
		{data: []byte{0x01, 0x04, 0x00, 0x01, 0x00, 0x02}, m: &MultiProtocolExtensions{AFI: AFI_IPv4, SAFI: SAFI_MULTICAST}},
	} {
		b, err := tt.m.Decode()
		require.NoError(t, err)
		assert.Equal(t, tt.data, b)
	}
}

func TestNewGracefulRestartCapability(t *testing.T) {
	for _, tt := range []struct {
		g    *GracefulRestartCapability
		data []byte
	}{
		{
			g:    &GracefulRestartCapability{RestartStateFlag: false, GracefulNotification: false, RestartTime: 120},
			data: []byte{0x00, 0x78},
		},
	} {
		g, err := newGracefulRestartCapability(tt.data)
		require.NoError(t, err)
		assert.Equal(t, tt.g.RestartStateFlag, g.RestartStateFlag)
		assert.Equal(t, tt.g.GracefulNotification, g.GracefulNotification)
		assert.Equal(t, tt.g.RestartTime, g.RestartTime)
	}
}

func TestGracefulRestartCapabilityDecode(t *testing.T) {
	for _, tt := range []struct {
		g    *GracefulRestartCapability
		data []byte
	}{
		{
			g:    &GracefulRestartCapability{RestartStateFlag: false, GracefulNotification: false, RestartTime: 120},
			data: []byte{0x00, 0x78},
		},
	} {
		d, err := tt.g.Decode()
		require.NoError(t, err)
		assert.Equal(t, tt.data, d)
	}
}

func TestFourOctetASCapabilityRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name string
		asn  uint32
	}{
		{name: "2-byte range", asn: 65000},
		{name: "4-byte range", asn: 4200000000},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFourOctetASCapability(tt.asn)
			encoded, err := c.Decode()
			require.NoError(t, err)

			parsed, err := ParseCap(encoded)
			require.NoError(t, err)
			four, ok := parsed.(*FourOctetASCapability)
			require.True(t, ok)
			assert.Equal(t, tt.asn, four.ASN)
		})
	}
}

func TestParseCapUnknownRoundTrips(t *testing.T) {
	data := []byte{0x46, 0x02, 0xaa, 0xbb}
	parsed, err := ParseCap(data)
	require.NoError(t, err)
	encoded, err := parsed.Decode()
	require.NoError(t, err)
	assert.Equal(t, data, encoded)
}

func TestGetCap(t *testing.T) {
	caps := []Capability{
		&MultiProtocolExtensions{AFI: AFI_IPv4, SAFI: SAFI_UNICAST},
		NewFourOctetASCapability(65001),
	}
	four, ok := GetCap[*FourOctetASCapability](caps)
	require.True(t, ok)
	assert.EqualValues(t, 65001, four.ASN)

	_, ok = GetCap[*GracefulRestartCapability](caps)
	assert.False(t, ok)
}
