// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bgrimm/netsim/internal/config"
	"github.com/bgrimm/netsim/internal/simtime"
)

func parseOverrideInt64(v string, defaultValue int64, field string) (int64, error) {
	if v == nullOverride {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", field, err)
	}
	return n, nil
}

func parseOverrideBool(v string, defaultValue bool, field string) (bool, error) {
	if v == nullOverride {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("--%s: %w", field, err)
	}
	return b, nil
}

func parseOverrideDuration(v string, defaultValue config.Duration, field string) (config.Duration, error) {
	if v == nullOverride {
		return defaultValue, nil
	}
	std, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", field, err)
	}
	return config.Duration(simtime.FromDuration(std)), nil
}
