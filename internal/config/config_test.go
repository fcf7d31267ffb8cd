package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvironValid(t *testing.T) {
	t.Setenv(EnvLoadBalanceMethod, "resources_aware")
	t.Setenv(EnvDPSize, "4")
	t.Setenv(EnvTPSize, "2")
	t.Setenv(EnvControllerPort, "5555")
	t.Setenv(EnvThresold, "250")

	cfg, err := FromEnviron()
	require.NoError(t, err)
	assert.Equal(t, "resources_aware", cfg.LoadBalanceMethod)
	assert.Equal(t, 4, cfg.DPSize)
	assert.Equal(t, 2, cfg.TPSize)
	assert.Equal(t, 5555, cfg.ControllerPort)
	assert.Equal(t, int64(250), cfg.Threshold)
}

func TestFromEnvironDefaultsThreshold(t *testing.T) {
	t.Setenv(EnvLoadBalanceMethod, "round_robin")
	t.Setenv(EnvDPSize, "1")
	t.Setenv(EnvTPSize, "1")
	t.Setenv(EnvControllerPort, "0")

	cfg, err := FromEnviron()
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, cfg.Threshold)
}

func TestFromEnvironThresholdAlias(t *testing.T) {
	t.Setenv(EnvLoadBalanceMethod, "round_robin")
	t.Setenv(EnvDPSize, "1")
	t.Setenv(EnvTPSize, "1")
	t.Setenv(EnvControllerPort, "0")
	t.Setenv(EnvThresholdAlias, "42")

	cfg, err := FromEnviron()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Threshold)
}

func TestFromEnvironMissingDPSize(t *testing.T) {
	t.Setenv(EnvLoadBalanceMethod, "round_robin")
	t.Setenv(EnvTPSize, "1")
	t.Setenv(EnvControllerPort, "0")

	_, err := FromEnviron()
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidateUnknownPolicy(t *testing.T) {
	cfg := &Config{LoadBalanceMethod: "bogus", DPSize: 1, TPSize: 1}
	var cfgErr *ConfigError
	assert.ErrorAs(t, cfg.Validate(), &cfgErr)
}

func TestValidateCaseInsensitivePolicy(t *testing.T) {
	cfg := &Config{LoadBalanceMethod: "Round_Robin", DPSize: 1, TPSize: 1}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsZeroDPSize(t *testing.T) {
	cfg := &Config{LoadBalanceMethod: "round_robin", DPSize: 0, TPSize: 1}
	assert.Error(t, cfg.Validate())
}
