// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tracelog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/signals"
	"github.com/bgrimm/netsim/internal/simtime"
)

func TestOffModeLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	l := New(ModeOff, &buf)
	l.Syscall(simtime.SimulationStart, 1, 1000, 1, "read", "12")
	require.Empty(t, buf.String())
}

func TestStandardModeIncludesWallTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := New(ModeStandard, &buf)
	l.Syscall(simtime.SimulationStart, 1, 1000, 1, "read", "12")
	out := buf.String()
	require.Contains(t, out, "syscall:read")
	require.Contains(t, out, "time=")
}

func TestDeterministicModeOmitsWallTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := New(ModeDeterministic, &buf)
	l.Syscall(simtime.SimulationStart, 1, 1000, 1, "read", "12")
	out := buf.String()
	require.Contains(t, out, "syscall:read")
	require.False(t, strings.Contains(out, "time="), "deterministic mode must not emit a wall-clock timestamp")
}

func TestSignalDeliveredIncludesSignalName(t *testing.T) {
	var buf bytes.Buffer
	l := New(ModeDeterministic, &buf)
	l.SignalDelivered(simtime.SimulationStart, 1, 1000, 1, signals.SIGTERM)
	require.Contains(t, buf.String(), "SIGTERM")
}

func TestProcessExitedDistinguishesExitAndSignal(t *testing.T) {
	var buf bytes.Buffer
	l := New(ModeDeterministic, &buf)
	l.ProcessExited(simtime.SimulationStart, 1, 1000, 0, false, 0)
	require.Contains(t, buf.String(), "exit_code=0")

	buf.Reset()
	l.ProcessExited(simtime.SimulationStart, 1, 1000, 0, true, signals.SIGKILL)
	require.Contains(t, buf.String(), "SIGKILL")
}

func TestNilLoggerIsSafeNoOp(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() {
		l.Syscall(simtime.SimulationStart, 1, 1000, 1, "read", "12")
	})
}
