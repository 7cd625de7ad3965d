// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tracelog implements the per-event syscall/signal trace logger
// config key experimental.strace_logging_mode selects (spec 6): "off"
// discards everything, "standard" logs with a real wall-clock timestamp
// attached, "deterministic" omits the wall clock so two runs of the same
// seeded simulation produce byte-identical trace output. It is a thin
// log/slog wrapper, the way the teacher's own cmd/flywall-sim entrypoint
// reaches for nothing more than the standard library's own logging
// facilities.
package tracelog

import (
	"io"
	"log/slog"

	"github.com/bgrimm/netsim/internal/signals"
	"github.com/bgrimm/netsim/internal/simtime"
)

// Mode mirrors config.StraceMode's three values without importing
// internal/config, keeping this package usable by anything that wants
// tracing independent of the YAML schema.
type Mode string

const (
	ModeOff           Mode = "off"
	ModeStandard       Mode = "standard"
	ModeDeterministic Mode = "deterministic"
)

// Logger is the per-event trace sink a host's syscall/signal handling
// code calls into. A nil-mode or Off-mode Logger is a safe, zero-cost
// no-op so call sites never need a mode check of their own.
type Logger struct {
	mode Mode
	log  *slog.Logger
}

// New builds a Logger writing to w in the given mode. Off mode still
// returns a usable Logger (every method is then a no-op) rather than nil,
// so callers can always hold a *Logger.
func New(mode Mode, w io.Writer) *Logger {
	if mode == ModeOff || mode == "" {
		return &Logger{mode: ModeOff}
	}

	opts := &slog.HandlerOptions{}
	if mode == ModeDeterministic {
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	return &Logger{mode: mode, log: slog.New(slog.NewTextHandler(w, opts))}
}

func (l *Logger) enabled() bool { return l != nil && l.mode != ModeOff && l.log != nil }

// Syscall records one syscall-level event: the managed thread that issued
// it, the simulated time it occurred at, and its name/result.
func (l *Logger) Syscall(now simtime.EmulatedTime, hostID uint32, pid int32, tid int, name, result string, extra ...slog.Attr) {
	if !l.enabled() {
		return
	}
	args := make([]any, 0, 5+len(extra))
	args = append(args,
		slog.Uint64("host", uint64(hostID)),
		slog.Int64("pid", int64(pid)),
		slog.Int("tid", tid),
		slog.String("sim_time", now.String()),
		slog.String("result", result),
	)
	for _, a := range extra {
		args = append(args, a)
	}
	l.log.Info("syscall:"+name, args...)
}

// SignalDelivered records a signal handling opportunity being taken
// (spec 4.4).
func (l *Logger) SignalDelivered(now simtime.EmulatedTime, hostID uint32, pid int32, tid int, sig signals.Num) {
	if !l.enabled() {
		return
	}
	l.log.Info("signal_delivered",
		slog.Uint64("host", uint64(hostID)),
		slog.Int64("pid", int64(pid)),
		slog.Int("tid", tid),
		slog.String("sim_time", now.String()),
		slog.String("signal", sig.String()),
	)
}

// ProcessExited records a managed process's terminal state (spec 6's
// expected_final_state comparison point).
func (l *Logger) ProcessExited(now simtime.EmulatedTime, hostID uint32, pid int32, exitCode int, signaled bool, sig signals.Num) {
	if !l.enabled() {
		return
	}
	attrs := []any{
		slog.Uint64("host", uint64(hostID)),
		slog.Int64("pid", int64(pid)),
		slog.String("sim_time", now.String()),
	}
	if signaled {
		attrs = append(attrs, slog.String("signal", sig.String()))
	} else {
		attrs = append(attrs, slog.Int("exit_code", exitCode))
	}
	l.log.Info("process_exited", attrs...)
}
