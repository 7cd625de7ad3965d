// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config implements the simulator's YAML configuration schema and
// loader (spec section 6). The shape mirrors the teacher's own
// internal/config package (a typed Config struct, a LoadOptions-driven
// Load/LoadFile pair, and a Validate method collecting ValidationErrors)
// with the teacher's HCL schema replaced by the YAML one spec 6 actually
// describes.
package config

// SchedulerVariant selects the experimental.scheduler worker model
// (spec 6).
type SchedulerVariant string

const (
	SchedulerThreadPerHost SchedulerVariant = "thread-per-host"
	SchedulerThreadPerCore SchedulerVariant = "thread-per-core"
)

// QDiscKind selects experimental.interface_qdisc (spec 6).
type QDiscKind string

const (
	QDiscFIFO       QDiscKind = "fifo"
	QDiscRoundRobin QDiscKind = "round-robin"
)

// StraceMode selects experimental.strace_logging_mode (spec 6).
type StraceMode string

const (
	StraceOff           StraceMode = "off"
	StraceStandard       StraceMode = "standard"
	StraceDeterministic StraceMode = "deterministic"
)

// General is the general.* config section.
type General struct {
	StopTime                     Duration `yaml:"stop_time"`
	BootstrapEndTime             Duration `yaml:"bootstrap_end_time,omitempty"`
	Seed                         int64    `yaml:"seed"`
	Parallelism                  int      `yaml:"parallelism"`
	HeartbeatInterval            Duration `yaml:"heartbeat_interval,omitempty"`
	DataDirectory                string   `yaml:"data_directory"`
	TemplateDirectory            string   `yaml:"template_directory,omitempty"`
	ModelUnblockedSyscallLatency bool     `yaml:"model_unblocked_syscall_latency"`
}

// Experimental is the experimental.* config section.
type Experimental struct {
	Runahead                Duration         `yaml:"runahead,omitempty"`
	UseDynamicRunahead      bool             `yaml:"use_dynamic_runahead"`
	MaxUnappliedCPULatency  Duration         `yaml:"max_unapplied_cpu_latency,omitempty"`
	UnblockedSyscallLatency Duration         `yaml:"unblocked_syscall_latency,omitempty"`
	UnblockedVDSOLatency    Duration         `yaml:"unblocked_vdso_latency,omitempty"`
	SocketSendBuffer        int              `yaml:"socket_send_buffer,omitempty"`
	SocketRecvBuffer        int              `yaml:"socket_recv_buffer,omitempty"`
	SocketBufferAutotune    bool             `yaml:"socket_buffer_autotune"`
	InterfaceQDisc          QDiscKind        `yaml:"interface_qdisc,omitempty"`
	Scheduler               SchedulerVariant `yaml:"scheduler,omitempty"`
	StraceLoggingMode       StraceMode       `yaml:"strace_logging_mode,omitempty"`
}

// Process is one hosts.<hostname>.processes[] entry.
type Process struct {
	Path               string            `yaml:"path"`
	Args               StringList        `yaml:"args,omitempty"`
	Environment        map[string]string `yaml:"environment,omitempty"`
	StartTime          Duration          `yaml:"start_time,omitempty"`
	ShutdownTime       *Duration         `yaml:"shutdown_time,omitempty"`
	ShutdownSignal     *SignalSpec       `yaml:"shutdown_signal,omitempty"`
	ExpectedFinalState *FinalState       `yaml:"expected_final_state,omitempty"`
}

// Host is one hosts.<hostname> entry.
type Host struct {
	NetworkNodeID string    `yaml:"network_node_id"`
	IPAddr        string    `yaml:"ip_addr,omitempty"`
	BandwidthDown *int64    `yaml:"bandwidth_down,omitempty"`
	BandwidthUp   *int64    `yaml:"bandwidth_up,omitempty"`
	Processes     []Process `yaml:"processes,omitempty"`
}

// Config is the top-level configuration schema (spec 6).
type Config struct {
	General      General         `yaml:"general"`
	Experimental Experimental    `yaml:"experimental,omitempty"`
	Hosts        map[string]Host `yaml:"hosts"`
}

// Default returns a Config with every spec-6 default applied, the way the
// teacher's own config package exposes a zero-value-plus-defaults
// constructor rather than relying on Go's bare zero value.
func Default() Config {
	return Config{
		General: General{
			Parallelism: 0, // auto
		},
		Experimental: Experimental{
			InterfaceQDisc:    QDiscFIFO,
			Scheduler:         SchedulerThreadPerHost,
			StraceLoggingMode: StraceOff,
		},
		Hosts: make(map[string]Host),
	}
}
