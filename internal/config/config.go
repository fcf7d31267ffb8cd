// Package config loads the dispatcher's §6 configuration table from
// environment variables, following the teacher's pointer-config idiom (see
// microbatch.BatcherConfig). FromEnviron applies the one documented default
// (Threshold, when neither THRESOLD nor THRESHOLD is set); Validate applies
// no defaults, rejects a nil *Config, and reports anything invalid at
// start-up as a ConfigError.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config models the environment-derived configuration table from spec.md §6,
// plus the design-notes default for THRESOLD/THRESHOLD.
type Config struct {
	// LoadBalanceMethod is one of round_robin | shortest_queue |
	// resources_aware, case-insensitive. No default: an empty or unknown
	// value is a ConfigError.
	LoadBalanceMethod string

	// DPSize is N, the number of replicas. Must be >= 1.
	DPSize int

	// TPSize is the accelerator width per replica. Must be >= 1.
	TPSize int

	// ControllerPort is the TCP port the intake multiplexer binds.
	ControllerPort int

	// Threshold is RESOURCES_AWARE's headroom cutoff. Defaults to
	// DefaultThreshold (100) if unset.
	Threshold int64
}

// DefaultThreshold is THRESOLD's default value per spec.md §6/§9: 100.
const DefaultThreshold int64 = 100

// Env variable names, kept verbatim for behavioural compatibility with
// spec.md §6, including the misspelled THRESOLD.
const (
	EnvLoadBalanceMethod = "DISPATCHER_LOAD_BALANCE_METHOD"
	EnvDPSize            = "DISPATCHER_DP_SIZE"
	EnvTPSize            = "DISPATCHER_TP_SIZE"
	EnvControllerPort    = "DISPATCHER_CONTROLLER_PORT"
	EnvThresold          = "THRESOLD"  // misspelled upstream; retained verbatim
	EnvThresholdAlias    = "THRESHOLD" // accepted alias, per spec.md §9
)

// FromEnviron loads a Config from the process environment. Missing
// Threshold falls back to DefaultThreshold; every other field is required
// and its absence or malformity is a ConfigError.
func FromEnviron() (*Config, error) {
	cfg := &Config{
		LoadBalanceMethod: os.Getenv(EnvLoadBalanceMethod),
		Threshold:         DefaultThreshold,
	}

	var err error
	if cfg.DPSize, err = requireInt(EnvDPSize); err != nil {
		return nil, err
	}
	if cfg.TPSize, err = requireInt(EnvTPSize); err != nil {
		return nil, err
	}
	if cfg.ControllerPort, err = requireInt(EnvControllerPort); err != nil {
		return nil, err
	}

	if v, ok := lookupThreshold(); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("%s: invalid integer %q", EnvThresold, v)}
		}
		cfg.Threshold = n
	}

	return cfg, cfg.Validate()
}

// lookupThreshold prefers THRESOLD (the spec-mandated name) and falls back
// to the THRESHOLD alias, per spec.md §9's open question.
func lookupThreshold() (string, bool) {
	if v, ok := os.LookupEnv(EnvThresold); ok {
		return v, true
	}
	return os.LookupEnv(EnvThresholdAlias)
}

func requireInt(name string) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, &ConfigError{Reason: fmt.Sprintf("%s: required", name)}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Reason: fmt.Sprintf("%s: invalid integer %q", name, v)}
	}
	return n, nil
}

// Validate checks the closed-set/range invariants spec.md §4.D and §6
// require, independent of how the Config was constructed (env or a struct
// literal in tests).
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Reason: "config: nil"}
	}
	switch strings.ToUpper(strings.TrimSpace(c.LoadBalanceMethod)) {
	case "ROUND_ROBIN", "SHORTEST_QUEUE", "RESOURCES_AWARE":
	default:
		return &ConfigError{Reason: fmt.Sprintf("load_balance_method: unknown value %q", c.LoadBalanceMethod)}
	}
	if c.DPSize < 1 {
		return &ConfigError{Reason: fmt.Sprintf("dp_size: must be >= 1, got %d", c.DPSize)}
	}
	if c.TPSize < 1 {
		return &ConfigError{Reason: fmt.Sprintf("tp_size: must be >= 1, got %d", c.TPSize)}
	}
	if c.ControllerPort < 0 || c.ControllerPort > 65535 {
		return &ConfigError{Reason: fmt.Sprintf("controller_port: out of range: %d", c.ControllerPort)}
	}
	return nil
}

// ConfigError reports an invalid policy name or malformed/missing start-up
// configuration. Always fatal at start-up; see spec.md §7.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }
