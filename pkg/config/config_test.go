package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
)

// errAny marks a case that must fail without a sentinel to match
var errAny = errors.New("any error")

func TestConfig_Validate(t *testing.T) {
	base := func(mutate func(c *Config)) *Config {
		c := Default()
		mutate(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:   "default configuration",
			config: Default(),
		},
		{
			name:    "unknown algorithm",
			config:  base(func(c *Config) { c.Algorithm = "bully" }),
			wantErr: common.ErrUnknownAlgorithm,
		},
		{
			name:    "single process",
			config:  base(func(c *Config) { c.ProcessCount = 1 }),
			wantErr: common.ErrTooFewProcesses,
		},
		{
			name:    "scaling factor not larger than size",
			config:  base(func(c *Config) { c.ScalingFactor = 7 }),
			wantErr: common.ErrScalingFactorTooSmall,
		},
		{
			name:    "scaling factor shares a divisor",
			config:  base(func(c *Config) { c.ScalingFactor = 12 }),
			wantErr: common.ErrScalingFactorNotCoprime,
		},
		{
			name:   "coprime scaling factor",
			config: base(func(c *Config) { c.ScalingFactor = 11 }),
		},
		{
			name:    "relay ratio of one",
			config:  base(func(c *Config) { c.RelayRatio = 1 }),
			wantErr: common.ErrRelayRatio,
		},
		{
			name: "duplicate uids",
			config: base(func(c *Config) {
				c.ProcessCount = 3
				c.UIDs = []int{4, 9, 4}
			}),
			wantErr: common.ErrDuplicateUID,
		},
		{
			name: "relay rank out of range",
			config: base(func(c *Config) {
				c.Relays = []int{8}
			}),
			wantErr: common.ErrRankOutOfRange,
		},
		{
			name: "every process a relay",
			config: base(func(c *Config) {
				c.ProcessCount = 2
				c.Relays = []int{0, 1}
			}),
			wantErr: common.ErrNoInitiator,
		},
		{
			name:    "unknown transport",
			config:  base(func(c *Config) { c.Transport = "carrier-pigeon" }),
			wantErr: common.ErrUnknownTransport,
		},
		{
			name: "rpc without enough addresses",
			config: base(func(c *Config) {
				c.Transport = TransportRPC
				c.Addresses = []string{"127.0.0.1:0"}
			}),
			wantErr: errAny,
		},
		{
			name: "rpc with half a client certificate",
			config: base(func(c *Config) {
				c.Transport = TransportRPC
				c.RPC.ClientCert = "client.pem"
			}),
			wantErr: errAny,
		},
		{
			name:   "rpc on the base port",
			config: base(func(c *Config) { c.Transport = TransportRPC }),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			if tt.wantErr == errAny {
				assert.Error(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_TransportConfig(t *testing.T) {
	c := Default()
	c.ConnectTimeout = 3 * time.Second
	assert.Equal(t, 3*time.Second, c.TransportConfig().ConnectTimeout)

	c.RPC.ConnectTimeout = time.Second
	assert.Equal(t, time.Second, c.TransportConfig().ConnectTimeout)
}

func TestConfig_InitiatorAndRelayOverlap(t *testing.T) {
	c := Default()
	c.Relays = []int{2}
	c.Initiators = []int{2}
	assert.Error(t, c.Validate())
}

func TestConfig_Address(t *testing.T) {
	c := Default()
	c.BasePort = 7000
	assert.Equal(t, "127.0.0.1:7003", c.Address(3))

	c.Addresses = []string{"10.0.0.1:1", "10.0.0.2:1"}
	assert.Equal(t, "10.0.0.2:1", c.Address(1))
}

func TestGCD(t *testing.T) {
	assert.Equal(t, 1, GCD(8, 11))
	assert.Equal(t, 4, GCD(8, 12))
	assert.Equal(t, 5, GCD(5, 5))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.yaml")
	content := `
algorithm: unidirectional
process_count: 5
scaling_factor: 7
passthrough: true
relays: [1, 3]
connect_timeout: 2s
rpc:
  client_skip_verify: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, model.AlgorithmUnidirectional, cfg.Algorithm)
	assert.Equal(t, 5, cfg.ProcessCount)
	assert.Equal(t, 7, cfg.ScalingFactor)
	assert.True(t, cfg.Passthrough)
	assert.Equal(t, []int{1, 3}, cfg.Relays)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.True(t, cfg.RPC.ClientSkipVerify)
	// untouched keys keep their defaults
	assert.Equal(t, TransportMemory, cfg.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("algorithm: unidirectional\nprocess_count: 6\n"), 0o600))

	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "file only",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, model.AlgorithmUnidirectional, cfg.Algorithm)
				assert.Equal(t, 6, cfg.ProcessCount)
				assert.Equal(t, 0, cfg.ScalingFactor)
			},
		},
		{
			name: "env wins over a key in the file",
			env:  map[string]string{"RINGELECT_ALGORITHM": "doubling"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, model.AlgorithmDoubling, cfg.Algorithm)
			},
		},
		{
			name: "env sets keys missing from the file",
			env: map[string]string{
				"RINGELECT_SCALING_FACTOR":         "13",
				"RINGELECT_TRANSPORT":              "rpc",
				"RINGELECT_CALLBACK_TIMEOUT":       "250ms",
				"RINGELECT_RPC_CLIENT_SKIP_VERIFY": "true",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6, cfg.ProcessCount)
				assert.Equal(t, 13, cfg.ScalingFactor)
				assert.Equal(t, TransportRPC, cfg.Transport)
				assert.Equal(t, 250*time.Millisecond, cfg.CallBackTimeout)
				assert.True(t, cfg.RPC.ClientSkipVerify)
				// unset keys keep their defaults
				assert.Equal(t, defaultBasePort, cfg.BasePort)
				assert.NoError(t, cfg.Validate())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Default()
			require.NoError(t, Load(path, cfg))
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), Default())
	assert.Error(t, err)
}
