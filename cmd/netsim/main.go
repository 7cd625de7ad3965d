// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netsim runs a discrete-event network simulation from a YAML
// topology file (spec section 6). It is the renamed, rebuilt successor of
// the teacher's cmd/flywall-sim: the same single-binary, positional-config,
// long-flag-override shape, driving this repository's scheduler instead of
// the teacher's PCAP replay and learning engine.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/bgrimm/netsim/internal/cli"
	"github.com/bgrimm/netsim/internal/config"
)

func main() {
	flags, err := cli.ParseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("netsim: %v", err)
	}

	if flags.ShowBuildInfo {
		printBuildInfo()
		return
	}
	cfg, err := config.LoadFileWithOptions(flags.ConfigPath, config.LoadOptions{SkipValidate: true})
	if err != nil {
		log.Fatalf("netsim: %v", err)
	}
	if err := flags.Apply(cfg); err != nil {
		log.Fatalf("netsim: %v", err)
	}

	if flags.ShmCleanup {
		if err := cleanupLeftoverShm(cfg.General.DataDirectory); err != nil {
			log.Fatalf("netsim: shm cleanup: %v", err)
		}
		return
	}

	if errs := cfg.Validate(); errs.HasErrors() {
		log.Fatalf("netsim: invalid configuration:\n%v", errs)
	}

	if err := Run(context.Background(), cfg); err != nil {
		log.Fatalf("netsim: %v", err)
	}
}

// printBuildInfo implements --show-build-info using runtime/debug's module
// build metadata -- the teacher's own command tree never prints a build
// banner, and no pack dependency exists purely for this, so the standard
// library is the right tool rather than a fabricated one.
func printBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("netsim: build info unavailable")
		return
	}
	fmt.Printf("netsim %s\n", info.Main.Version)
	fmt.Printf("  go: %s\n", info.GoVersion)
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" || setting.Key == "vcs.time" {
			fmt.Printf("  %s: %s\n", setting.Key, setting.Value)
		}
	}
}
