// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bgrimm/netsim/internal/config"
)

// prepareOutputDirectory lays out general.data_directory the way spec 6's
// Persisted state paragraph describes: one subdirectory per configured
// host, plus a copy of the fully resolved configuration as the loader
// leaves it (CLI overrides and defaults already applied). If
// general.template_directory is set, its contents seed data_directory
// before anything else is written.
func prepareOutputDirectory(cfg *config.Config, runID string) error {
	if cfg.General.TemplateDirectory != "" {
		if err := copyTree(cfg.General.TemplateDirectory, cfg.General.DataDirectory); err != nil {
			return fmt.Errorf("seed from template_directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.General.DataDirectory, 0o755); err != nil {
		return err
	}

	for name := range cfg.Hosts {
		if _, err := hostDirectory(cfg, name); err != nil {
			return err
		}
	}

	resolved, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal resolved config: %w", err)
	}
	path := filepath.Join(cfg.General.DataDirectory, "resolved-config.yaml")
	if err := os.WriteFile(path, resolved, 0o644); err != nil {
		return err
	}

	runIDPath := filepath.Join(cfg.General.DataDirectory, "run-id")
	return os.WriteFile(runIDPath, []byte(runID+"\n"), 0o644)
}

// hostDirectory returns (creating if necessary) the per-host subdirectory
// of general.data_directory.
func hostDirectory(cfg *config.Config, hostName string) (string, error) {
	dir := filepath.Join(cfg.General.DataDirectory, hostName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

// logWriter opens (or creates) data_directory/trace.log for the
// tracelog.Logger, falling back to stderr if the directory is not yet
// resolvable (e.g. --show-build-info's sibling commands never reach
// here, so this only runs once general.data_directory is known).
func logWriter(cfg *config.Config) *os.File {
	path := filepath.Join(cfg.General.DataDirectory, "trace.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}

// cleanupLeftoverShm implements --shm-cleanup: it removes WAL/SHM journal
// files a prior run's persist.Store left behind under dataDir after an
// unclean exit (modernc.org/sqlite's WAL mode leaves "<db>-wal"/"<db>-shm"
// siblings next to "flows.db" until the next clean close checkpoints them
// away).
func cleanupLeftoverShm(dataDir string) error {
	if dataDir == "" {
		dataDir = "."
	}
	removed := 0
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		if strings.HasSuffix(name, "-wal") || strings.HasSuffix(name, "-shm") {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("netsim: removed %d leftover shm/wal file(s)\n", removed)
	return nil
}
