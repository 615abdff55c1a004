package bgp

import (
	"fmt"

	"github.com/korsaris/libbgp/pkg/log"
)

// Logger is the library's internal diagnostic-logging interface (§10's
// ambient stack), used by the Rib (see Rib.SetLogger); the RouteEventBus
// and Fsm do not use it, and BgpPeerConfig.Verbose is not read by this
// package. It mirrors pkg/log.Logger's shape so the
// zerolog-backed implementation there can be used directly; a caller who
// doesn't want zerolog output can supply any type satisfying this
// interface instead.
type Logger interface {
	Info(msg string)
	Warn(msg string)
	Err(msg string)
}

// zerologAdapter narrows pkg/log.Logger's printf-style methods to Logger's
// plain-string ones, so the bgp package can depend on the teacher's logging
// package without importing its varargs-formatting convention everywhere a
// RibEntry or FSM event needs to write one line.
type zerologAdapter struct {
	inner log.Logger
}

// NewLogger wraps a pkg/log.Logger (zerolog-backed, per the teacher's
// pkg/log/log.go) as the bgp package's internal Logger interface.
func NewLogger(inner log.Logger) Logger {
	return &zerologAdapter{inner: inner}
}

func (z *zerologAdapter) Info(msg string) { z.inner.Info(msg) }
func (z *zerologAdapter) Warn(msg string) { z.inner.Warn(msg) }
func (z *zerologAdapter) Err(msg string)  { z.inner.Err(msg) }

type nopLogger struct{}

func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Err(string)  {}

// LogSink is the FSM's external logging capability (§4.H/§6/§10): a host
// may implement this however it likes. Level gating happens on the host
// side of the interface, matching the spec's "level-gated" phrasing — the
// FSM simply calls Stdout for informational lines and Stderr for warnings
// and errors.
type LogSink interface {
	Stdout(line string)
	Stderr(line string)
}

// logSinkAdapter exposes a Logger as a LogSink (§10's "adapter ... exposes
// the same logger as the FSM's plain stdout(line)/stderr(line)
// capability"): a host passes NewLogSink(NewLogger(...)) as LogHandler to
// get zerolog-formatted output. With no LogHandler the Fsm uses nopLogSink
// and its log lines are discarded.
type logSinkAdapter struct {
	log Logger
}

func NewLogSink(l Logger) LogSink {
	if l == nil {
		l = nopLogger{}
	}
	return &logSinkAdapter{log: l}
}

func (a *logSinkAdapter) Stdout(line string) { a.log.Info(line) }
func (a *logSinkAdapter) Stderr(line string) { a.log.Err(line) }

// nopLogSink discards everything; the Fsm default when a BgpPeerConfig
// supplies no LogHandler.
type nopLogSink struct{}

func (nopLogSink) Stdout(string) {}
func (nopLogSink) Stderr(string) {}

// logf is a small helper so call sites can use Printf-style formatting
// against the plain-string Logger/LogSink interfaces above.
func logf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
