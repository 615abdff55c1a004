package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/korsaris/libbgp/pkg/bgp"
)

func TestLoadConfig(t *testing.T) {
	for _, d := range []struct {
		data []byte
		ext  string
		conf *Config
	}{
		{
			data: []byte(`{"bgp": {"asn": 100, "router_id": "1.1.1.1", "peers": []}}`),
			ext:  "json",
			conf: &Config{Bgp: &bgp.HostConfig{ASN: 100, RouterID: "1.1.1.1", Peers: []bgp.PeerConfig{}}},
		},
		{
			data: []byte("bgp:\n  asn: 100\n  router_id: \"1.1.1.1\"\n"),
			ext:  "yml",
			conf: &Config{Bgp: &bgp.HostConfig{ASN: 100, RouterID: "1.1.1.1"}},
		},
		{
			data: []byte(
				`log:
  level: 1
  out: stdout
bgp:
  asn: 100
  router_id: "1.1.1.1"
  peers:
    - address: "10.0.0.1"
      peer_asn: 200
    - address: "10.0.1.1"
      peer_asn: 300
`),
			ext: "yml",
			conf: &Config{
				Bgp: &bgp.HostConfig{
					ASN:      100,
					RouterID: "1.1.1.1",
					Peers: []bgp.PeerConfig{
						{Address: "10.0.0.1", PeerASN: 200},
						{Address: "10.0.1.1", PeerASN: 300},
					},
				},
			},
		},
	} {
		conf, err := loadConfig(d.data, d.ext)
		require.NoError(t, err)
		assert.Equal(t, d.conf.Bgp.ASN, conf.Bgp.ASN)
		assert.Equal(t, d.conf.Bgp.RouterID, conf.Bgp.RouterID)
		assert.Equal(t, d.conf.Bgp.Peers, conf.Bgp.Peers)
	}
}

func writeTempConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFillsDefaultLog(t *testing.T) {
	path := writeTempConfig(t, "host.yml", "bgp:\n  asn: 100\n  router_id: \"1.1.1.1\"\n")
	conf, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, conf.Log)
	assert.Equal(t, "/var/log/libbgp/bgp", conf.Log.Out)
}

func TestLoadRejectsMissingBgpSection(t *testing.T) {
	path := writeTempConfig(t, "host.yml", "log:\n  level: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingRouterID(t *testing.T) {
	path := writeTempConfig(t, "host.yml", "bgp:\n  asn: 100\n")
	_, err := Load(path)
	assert.Error(t, err)
}
