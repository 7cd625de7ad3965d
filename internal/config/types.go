// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bgrimm/netsim/internal/signals"
	"github.com/bgrimm/netsim/internal/simtime"
)

// Duration decodes a YAML scalar like "30s" or "500ms" into a
// simtime.Duration, the way every duration-valued config key in spec 6 is
// expressed ("stop_time", "runahead", "unblocked_syscall_latency", ...).
type Duration simtime.Duration

// UnmarshalYAML accepts a plain string parsed with time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	std, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(simtime.FromDuration(std))
	return nil
}

// MarshalYAML round-trips a Duration back to its string form, since the
// loader re-emits the resolved configuration into the output directory
// (spec 6, "Persisted state").
func (d Duration) MarshalYAML() (any, error) {
	return simtime.Duration(d).Std().String(), nil
}

// Sim converts to the simulator's own duration type.
func (d Duration) Sim() simtime.Duration { return simtime.Duration(d) }

// StringList decodes either a single YAML scalar or a sequence into a
// []string, backing "processes[].args: string or array of strings"
// (spec 6).
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = StringList(items)
		return nil
	default:
		return fmt.Errorf("args: expected a string or a list of strings")
	}
}

// FinalState decodes "running" | {exited: N} | {signaled: SIG}
// (spec 6's processes[].expected_final_state).
type FinalState struct {
	Kind   FinalStateKind
	Code   int
	Signal signals.Num
}

// FinalStateKind discriminates FinalState's three shapes.
type FinalStateKind int

const (
	FinalStateRunning FinalStateKind = iota
	FinalStateExited
	FinalStateSignaled
)

func (f *FinalState) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "running" {
			return fmt.Errorf("expected_final_state: unrecognized scalar %q", s)
		}
		*f = FinalState{Kind: FinalStateRunning}
		return nil
	}

	var m struct {
		Exited   *int    `yaml:"exited"`
		Signaled *string `yaml:"signaled"`
	}
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("expected_final_state: %w", err)
	}
	switch {
	case m.Exited != nil:
		*f = FinalState{Kind: FinalStateExited, Code: *m.Exited}
	case m.Signaled != nil:
		sig, err := signals.ParseName(*m.Signaled)
		if err != nil {
			return fmt.Errorf("expected_final_state: %w", err)
		}
		*f = FinalState{Kind: FinalStateSignaled, Signal: sig}
	default:
		return fmt.Errorf("expected_final_state: expected \"running\", {exited: N}, or {signaled: SIG}")
	}
	return nil
}

// SignalSpec decodes a signal config value that accepts either a name
// ("SIGTERM") or a bare integer (spec 6: "signals accept both names and
// integers").
type SignalSpec signals.Num

func (s *SignalSpec) UnmarshalYAML(value *yaml.Node) error {
	// value.Value is the raw scalar text regardless of whether YAML typed
	// it as a string ("SIGTERM") or an int (15); signals.ParseName accepts
	// both spellings directly.
	sig, err := signals.ParseName(value.Value)
	if err != nil {
		return fmt.Errorf("shutdown_signal: %w", err)
	}
	*s = SignalSpec(sig)
	return nil
}

// Num returns the decoded signal number.
func (s SignalSpec) Num() signals.Num { return signals.Num(s) }
