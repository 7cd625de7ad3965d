// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// ValidationError is one configuration problem, mirroring the teacher's
// own internal/config.ValidationError shape.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any problems were found.
func (e ValidationErrors) HasErrors() bool { return len(e) > 0 }

var hostnamePattern = regexp.MustCompile(`^[a-z0-9.-]+$`)

// validHostname enforces spec 6: "lowercase ASCII, digits, hyphen, and
// dot; 1 <= length <= 253; leading hyphen forbidden."
func validHostname(name string) bool {
	if len(name) < 1 || len(name) > 253 {
		return false
	}
	if strings.HasPrefix(name, "-") {
		return false
	}
	return hostnamePattern.MatchString(name)
}

// Validate checks the configuration against every constraint spec 6
// states explicitly, collecting every violation rather than failing on
// the first.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.General.DataDirectory == "" {
		errs = append(errs, ValidationError{"general.data_directory", "must not be empty"})
	}
	if c.General.Parallelism < 0 {
		errs = append(errs, ValidationError{"general.parallelism", "must be >= 0 (0 means auto)"})
	}

	switch c.Experimental.InterfaceQDisc {
	case "", QDiscFIFO, QDiscRoundRobin:
	default:
		errs = append(errs, ValidationError{"experimental.interface_qdisc", fmt.Sprintf("unrecognized value %q", c.Experimental.InterfaceQDisc)})
	}
	switch c.Experimental.Scheduler {
	case "", SchedulerThreadPerHost, SchedulerThreadPerCore:
	default:
		errs = append(errs, ValidationError{"experimental.scheduler", fmt.Sprintf("unrecognized value %q", c.Experimental.Scheduler)})
	}
	switch c.Experimental.StraceLoggingMode {
	case "", StraceOff, StraceStandard, StraceDeterministic:
	default:
		errs = append(errs, ValidationError{"experimental.strace_logging_mode", fmt.Sprintf("unrecognized value %q", c.Experimental.StraceLoggingMode)})
	}

	for name, h := range c.Hosts {
		errs = append(errs, validateHost(name, h)...)
	}

	return errs
}

func validateHost(name string, h Host) ValidationErrors {
	var errs ValidationErrors
	field := fmt.Sprintf("hosts.%s", name)

	if !validHostname(name) {
		errs = append(errs, ValidationError{field, "hostname must be lowercase ASCII, digits, hyphen, or dot; 1-253 chars; no leading hyphen"})
	}
	if ip := net.ParseIP(h.IPAddr); h.IPAddr != "" && (ip == nil || ip.To4() == nil) {
		errs = append(errs, ValidationError{field + ".ip_addr", fmt.Sprintf("not a valid IPv4 address: %q", h.IPAddr)})
	}
	if h.BandwidthDown != nil && *h.BandwidthDown < 0 {
		errs = append(errs, ValidationError{field + ".bandwidth_down", "must be >= 0"})
	}
	if h.BandwidthUp != nil && *h.BandwidthUp < 0 {
		errs = append(errs, ValidationError{field + ".bandwidth_up", "must be >= 0"})
	}

	for i, p := range h.Processes {
		errs = append(errs, validateProcess(fmt.Sprintf("%s.processes[%d]", field, i), p)...)
	}
	return errs
}

func validateProcess(field string, p Process) ValidationErrors {
	var errs ValidationErrors
	if p.Path == "" {
		errs = append(errs, ValidationError{field + ".path", "must not be empty"})
	}
	for k := range p.Environment {
		if strings.Contains(k, "=") {
			errs = append(errs, ValidationError{field + ".environment", fmt.Sprintf("variable name %q must not contain '='", k)})
		}
	}
	return errs
}
