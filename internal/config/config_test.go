// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/signals"
)

const validYAML = `
general:
  stop_time: 10m
  seed: 42
  parallelism: 4
  data_directory: /tmp/out
experimental:
  interface_qdisc: round-robin
  scheduler: thread-per-core
hosts:
  server:
    network_node_id: n0
    ip_addr: 10.0.0.1
    bandwidth_down: 1000000
    processes:
      - path: /bin/server
        args: [--port, "8080"]
        start_time: 0s
        expected_final_state: running
  client:
    network_node_id: n1
    processes:
      - path: /bin/client
        args: --verbose
        start_time: 5s
        shutdown_time: 1m
        shutdown_signal: SIGTERM
        expected_final_state:
          exited: 0
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load([]byte(validYAML))
	require.NoError(t, err)
	require.Equal(t, int64(42), cfg.General.Seed)
	require.Equal(t, 10*time.Minute, cfg.General.StopTime.Sim().Std())
	require.Equal(t, QDiscRoundRobin, cfg.Experimental.InterfaceQDisc)

	server := cfg.Hosts["server"]
	require.Equal(t, StringList{"--port", "8080"}, server.Processes[0].Args)
	require.Equal(t, FinalStateRunning, server.Processes[0].ExpectedFinalState.Kind)

	client := cfg.Hosts["client"]
	require.Equal(t, StringList{"--verbose"}, client.Processes[0].Args)
	require.Equal(t, signals.SIGTERM, client.Processes[0].ShutdownSignal.Num())
	require.Equal(t, FinalStateExited, client.Processes[0].ExpectedFinalState.Kind)
	require.Equal(t, 0, client.Processes[0].ExpectedFinalState.Code)
}

func TestLoadRejectsUnknownFieldByDefault(t *testing.T) {
	_, err := Load([]byte("general:\n  stop_time: 1s\n  data_directory: /tmp\n  bogus_key: 1\n"))
	require.Error(t, err)
}

func TestLoadAllowUnknownFieldOptOut(t *testing.T) {
	_, err := LoadWithOptions([]byte("general:\n  stop_time: 1s\n  data_directory: /tmp\n  bogus_key: 1\n"), LoadOptions{AllowUnknownFields: true})
	require.NoError(t, err)
}

func TestValidateRejectsBadHostnameAndEnvVar(t *testing.T) {
	cfg := Default()
	cfg.General.DataDirectory = "/tmp"
	cfg.Hosts["-Bad.Host"] = Host{
		NetworkNodeID: "n0",
		Processes: []Process{
			{Path: "/bin/x", Environment: map[string]string{"A=B": "1"}},
		},
	}
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
	require.GreaterOrEqual(t, len(errs), 2)
}

func TestValidateRejectsEmptyDataDirectory(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
}

func TestValidateRejectsUnrecognizedQDisc(t *testing.T) {
	cfg := Default()
	cfg.General.DataDirectory = "/tmp"
	cfg.Experimental.InterfaceQDisc = "random"
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
}
