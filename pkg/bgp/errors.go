package bgp

import "errors"

// Internal/logic error sentinels (§10: "plain Go error values following
// the teacher's sentinel-error convention", carried over from the original
// pkg/bgp/bgp.go's Err... variable block). These are returned by API
// misuse or bad configuration, never by wire-format parsing — protocol
// errors found there are a concrete *ErrorCode (§7/§9).
var (
	ErrInvalidBgpState  error = errors.New("invalid BGP state")
	ErrAlreadyStarted   error = errors.New("fsm already started")
	ErrNotStarted       error = errors.New("fsm not started")
	ErrPeerASNRequired  error = errors.New("peer AS number is required")
	ErrRouterIDRequired error = errors.New("router id is required")
)
