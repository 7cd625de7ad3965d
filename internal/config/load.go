// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions controls how a config file is loaded, mirroring the
// teacher's own LoadOptions shape in internal/config/load_basic.go.
type LoadOptions struct {
	// AllowUnknownFields ignores keys the schema does not recognize
	// instead of failing the load.
	AllowUnknownFields bool

	// SkipValidate loads without running Validate, for callers that want
	// to inspect a config before deciding whether to enforce it.
	SkipValidate bool
}

// DefaultLoadOptions mirrors the strict-by-default posture spec 6
// describes ("a serialization format with a strict schema").
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{}
}

// Load parses YAML config bytes with the default, strict options.
func Load(data []byte) (*Config, error) {
	return LoadWithOptions(data, DefaultLoadOptions())
}

// LoadWithOptions parses YAML config bytes, applying defaults and
// (unless skipped) validating the result.
func LoadWithOptions(data []byte, opts LoadOptions) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(!opts.AllowUnknownFields)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if !opts.SkipValidate {
		if errs := cfg.Validate(); errs.HasErrors() {
			return nil, errs
		}
	}
	return &cfg, nil
}

// LoadFile reads path (or stdin if path is "-", spec 6's CLI contract)
// and loads it with the default options.
func LoadFile(path string) (*Config, error) {
	return LoadFileWithOptions(path, DefaultLoadOptions())
}

// LoadFileWithOptions reads path (or stdin if path is "-") and loads it
// with opts.
func LoadFileWithOptions(path string, opts LoadOptions) (*Config, error) {
	data, err := readConfigSource(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadWithOptions(data, opts)
}

func readConfigSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
