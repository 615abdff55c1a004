package bgp

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"gopkg.in/yaml.v3"
)

// Clock is the FSM's time capability (§4.H/§6/§9): injected rather than
// sampled from the wall clock internally, so timer behavior is
// reproducible under test with a fake clock (see fsm_test.go).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// OutputSink is the FSM's outbound-bytes capability (§4.H/§6): the host
// supplies the transport, the FSM only calls Write. A false return means
// the host could not deliver the bytes; the FSM logs it but does not treat
// write failure as a fatal session error, matching §7's "internal logic
// errors are logged and reported via the return value; they do not close
// the session."
type OutputSink interface {
	Write(b []byte) bool
}

// FilterAction is an allow/deny verdict for a single prefix filter entry.
type FilterAction uint8

const (
	FilterAllow FilterAction = iota
	FilterDeny
)

// PrefixFilter is one entry of an ingress/egress filter list (§4.G's
// "configured allow/deny lists... applied to every outbound NLRI").
type PrefixFilter struct {
	Prefix Prefix4
	Action FilterAction
}

// filterAllows reports whether prefix passes a filter list: the first matching
// (covering) entry decides; an empty list allows everything.
func filterAllows(filters []PrefixFilter, prefix Prefix4) bool {
	for _, f := range filters {
		if f.Prefix.Includes(prefix) {
			return f.Action == FilterAllow
		}
	}
	return true
}

// BgpPeerConfig is the configuration record the Fsm is constructed with
// (§4.H, §6's "BgpPeerConfig recognized options"). Every field below
// except ConnectRetryInterval corresponds one-to-one with a name in that
// list (rev_bus is RouteEventBus).
type BgpPeerConfig struct {
	ASN     uint32
	PeerASN uint32
	Use4BASN bool

	HoldTimer time.Duration
	RouterID  net.IP

	NextHop              net.IP
	ForcedDefaultNextHop bool
	PeeringLanPrefix     net.IP
	PeeringLanLength     uint8
	NoNextHopCheck       bool

	NoCollisionDetection bool

	Rib           *Rib
	RouteEventBus *RouteEventBus
	Clock         Clock
	OutHandler    OutputSink
	LogHandler    LogSink
	Verbose       bool

	IngressFilters []PrefixFilter
	EgressFilters  []PrefixFilter

	// ConnectRetryInterval is the host-configured fixed interval for the
	// ConnectRetry timer (§4.G's "Timers" paragraph). It has no effect on
	// the state machine itself since this library does not own the
	// transport connect loop; it is exposed so a host driving reconnection
	// outside the FSM can read back the configured value.
	ConnectRetryInterval time.Duration
}

func (c *BgpPeerConfig) clock() Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return systemClock{}
}

func (c *BgpPeerConfig) logSink() LogSink {
	if c.LogHandler != nil {
		return c.LogHandler
	}
	return nopLogSink{}
}

func (c *BgpPeerConfig) rib() *Rib {
	if c.Rib != nil {
		return c.Rib
	}
	return NewRib()
}

func (c *BgpPeerConfig) bus() *RouteEventBus {
	if c.RouteEventBus != nil {
		return c.RouteEventBus
	}
	return NewRouteEventBus()
}

func (c *BgpPeerConfig) holdTimer() time.Duration {
	if c.HoldTimer == 0 {
		return 180 * time.Second
	}
	return c.HoldTimer
}

func (c *BgpPeerConfig) peeringLan() (Prefix4, bool) {
	if c.PeeringLanPrefix == nil {
		return Prefix4{}, false
	}
	p, err := NewPrefix4(c.PeeringLanPrefix, c.PeeringLanLength)
	if err != nil {
		return Prefix4{}, false
	}
	return p, true
}

// HostConfig is the example host's multi-peer configuration file schema
// (§10's "example host's multi-peer config file"), loaded the same way the
// teacher's pkg/config/config.go loads its top-level file: YAML primary,
// JSON fallback on extension, via gopkg.in/yaml.v3 and encoding/json.
type HostConfig struct {
	ASN      uint32       `json:"asn" yaml:"asn"`
	RouterID string       `json:"router_id" yaml:"router_id"`
	LogLevel int          `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogOut   string       `json:"log_out,omitempty" yaml:"log_out,omitempty"`
	Peers    []PeerConfig `json:"peers" yaml:"peers"`
}

// PeerConfig is one entry of HostConfig.Peers: the on-disk form of a
// BgpPeerConfig, using plain strings/ints for YAML/JSON friendliness.
type PeerConfig struct {
	Address              string `json:"address" yaml:"address"`
	PeerASN              uint32 `json:"peer_asn" yaml:"peer_asn"`
	Use4BASN             bool   `json:"use_4b_asn,omitempty" yaml:"use_4b_asn,omitempty"`
	HoldTimerSeconds     uint16 `json:"hold_timer,omitempty" yaml:"hold_timer,omitempty"`
	NextHop              string `json:"nexthop,omitempty" yaml:"nexthop,omitempty"`
	ForcedDefaultNextHop bool   `json:"forced_default_nexthop,omitempty" yaml:"forced_default_nexthop,omitempty"`
	PeeringLanPrefix     string `json:"peering_lan_prefix,omitempty" yaml:"peering_lan_prefix,omitempty"`
	PeeringLanLength     uint8  `json:"peering_lan_length,omitempty" yaml:"peering_lan_length,omitempty"`
	NoNextHopCheck       bool   `json:"no_nexthop_check,omitempty" yaml:"no_nexthop_check,omitempty"`
	NoCollisionDetection bool   `json:"no_collision_detection,omitempty" yaml:"no_collision_detection,omitempty"`
}

// HostConfigFromBytes parses a HostConfig, switching on file extension the
// same way the teacher's pkg/config/config.go and pkg/bgp/config.go did.
func HostConfigFromBytes(data []byte, ext string) (*HostConfig, error) {
	conf := &HostConfig{}
	switch ext {
	case "json", "JSON":
		if err := json.Unmarshal(data, conf); err != nil {
			return nil, err
		}
	case "yaml", "yml", "YAML":
		if err := yaml.Unmarshal(data, conf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("config: invalid config file ext %q", ext)
	}
	return conf, nil
}

// ToPeerConfig builds a runtime BgpPeerConfig from one on-disk PeerConfig
// entry, sharing the rib/bus/clock/handlers owned by the host across every
// peer's Fsm per §5 ("Multiple FSMs may run in parallel threads; they share
// the RIB and the Route Event Bus").
func (pc *PeerConfig) ToPeerConfig(asn uint32, routerID net.IP, rib *Rib, bus *RouteEventBus, clock Clock, out OutputSink, logHandler LogSink, verbose bool) (*BgpPeerConfig, error) {
	cfg := &BgpPeerConfig{
		ASN:                  asn,
		PeerASN:              pc.PeerASN,
		Use4BASN:             pc.Use4BASN,
		HoldTimer:            time.Duration(pc.HoldTimerSeconds) * time.Second,
		RouterID:             routerID,
		ForcedDefaultNextHop: pc.ForcedDefaultNextHop,
		NoNextHopCheck:       pc.NoNextHopCheck,
		NoCollisionDetection: pc.NoCollisionDetection,
		Rib:                  rib,
		RouteEventBus:        bus,
		Clock:                clock,
		OutHandler:           out,
		LogHandler:           logHandler,
		Verbose:              verbose,
	}
	if pc.NextHop != "" {
		ip := net.ParseIP(pc.NextHop)
		if ip == nil {
			return nil, fmt.Errorf("config: invalid nexthop %q for peer %s", pc.NextHop, pc.Address)
		}
		cfg.NextHop = ip
	}
	if pc.PeeringLanPrefix != "" {
		ip := net.ParseIP(pc.PeeringLanPrefix)
		if ip == nil {
			return nil, fmt.Errorf("config: invalid peering_lan_prefix %q for peer %s", pc.PeeringLanPrefix, pc.Address)
		}
		cfg.PeeringLanPrefix = ip
		cfg.PeeringLanLength = pc.PeeringLanLength
	}
	return cfg, nil
}
