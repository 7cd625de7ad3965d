// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/config"
)

func TestParseArgsDefaultsPositionalToStdin(t *testing.T) {
	f, err := ParseArgs(nil, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "-", f.ConfigPath)
}

func TestParseArgsAcceptsOnePositionalConfigPath(t *testing.T) {
	f, err := ParseArgs([]string{"topology.yaml"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "topology.yaml", f.ConfigPath)
}

func TestParseArgsRejectsMultiplePositionals(t *testing.T) {
	_, err := ParseArgs([]string{"a.yaml", "b.yaml"}, io.Discard)
	require.Error(t, err)
}

func TestParseArgsExclusiveFlags(t *testing.T) {
	f, err := ParseArgs([]string{"--show-build-info"}, io.Discard)
	require.NoError(t, err)
	require.True(t, f.ShowBuildInfo)
	require.False(t, f.ShmCleanup)
}

func TestApplyOverridesOnlyExplicitlySetFlags(t *testing.T) {
	f, err := ParseArgs([]string{"--general-seed", "7", "topology.yaml"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.General.DataDirectory = "/tmp"
	cfg.General.Seed = 99

	require.NoError(t, f.Apply(&cfg))
	require.Equal(t, int64(7), cfg.General.Seed)
	// Unset flags must not disturb whatever the config file already set.
	require.Equal(t, "/tmp", cfg.General.DataDirectory)
}

func TestApplyNullOverrideRestoresDefault(t *testing.T) {
	f, err := ParseArgs([]string{"--experimental-interface-qdisc", "null"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Experimental.InterfaceQDisc = config.QDiscRoundRobin

	require.NoError(t, f.Apply(&cfg))
	require.Equal(t, config.Default().Experimental.InterfaceQDisc, cfg.Experimental.InterfaceQDisc)
}

func TestApplyRejectsMalformedOverride(t *testing.T) {
	f, err := ParseArgs([]string{"--general-seed", "not-a-number"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	require.Error(t, f.Apply(&cfg))
}

func TestHasOverrideReflectsExplicitFlags(t *testing.T) {
	f, err := ParseArgs([]string{"--general-parallelism", "4"}, io.Discard)
	require.NoError(t, err)
	require.True(t, f.HasOverride(flagParallelism))
	require.False(t, f.HasOverride(flagSeed))
}
