package config

import (
	"fmt"
	"time"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/transport/rpc"
)

const (
	// TransportMemory runs the ring over in-process channels
	TransportMemory = "memory"
	// TransportRPC runs the ring over local tcp endpoints
	TransportRPC = "rpc"

	defaultProcessCount = 8
	defaultRelayRatio   = 0.2
	defaultBasePort     = 9981
	defaultCallBack     = 5 * time.Second
	defaultConnect      = 5 * time.Second
)

// Config represents the election config
type Config struct {
	// Algorithm is the election protocol run by every process
	Algorithm model.Algorithm `json:"algorithm" mapstructure:"algorithm"`
	// ProcessCount is the number of processes in the ring
	ProcessCount int `json:"process_count" mapstructure:"process_count"`
	// ScalingFactor derives uids as ((rank+1)*factor) mod N. Zero draws random uids.
	ScalingFactor int `json:"scaling_factor,omitempty" mapstructure:"scaling_factor"`
	// Passthrough enables the relay variant: a single initiator and randomly drawn relays
	Passthrough bool `json:"passthrough,omitempty" mapstructure:"passthrough"`
	// RelayRatio is the probability that a process is drawn as a relay
	RelayRatio float64 `json:"relay_ratio,omitempty" mapstructure:"relay_ratio"`
	// Seed feeds the uid and relay draws
	Seed int64 `json:"seed,omitempty" mapstructure:"seed"`
	// Verbose makes every participant report its local counts
	Verbose bool `json:"verbose,omitempty" mapstructure:"verbose"`

	// UIDs overrides uid assignment, indexed by rank
	UIDs []int `json:"uids,omitempty" mapstructure:"uids"`
	// Relays overrides the relay draw with an explicit rank list
	Relays []int `json:"relays,omitempty" mapstructure:"relays"`
	// Initiators overrides initiator selection with an explicit rank list
	Initiators []int `json:"initiators,omitempty" mapstructure:"initiators"`

	// Transport is either memory or rpc
	Transport string `json:"transport,omitempty" mapstructure:"transport"`
	// Addresses lists the rpc listen address of every rank
	Addresses []string `json:"addresses,omitempty" mapstructure:"addresses"`
	// BasePort is used to build localhost addresses when Addresses is empty
	BasePort int `json:"base_port,omitempty" mapstructure:"base_port"`
	// ConnectTimeout represents the timeout duration for a transport connection
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
	// RPC holds the tls material of the rpc endpoints
	RPC rpc.Config `json:"rpc,omitempty" mapstructure:"rpc"`

	// MetricsAddress serves prometheus metrics when set
	MetricsAddress string `json:"metrics_address,omitempty" mapstructure:"metrics_address"`
	// CallBackTimeout bounds every state callback
	CallBackTimeout time.Duration `json:"callback_timeout,omitempty" mapstructure:"callback_timeout"`
}

// Default returns a config for an eight process doubling ring in memory.
func Default() *Config {
	return &Config{
		Algorithm:       model.AlgorithmDoubling,
		ProcessCount:    defaultProcessCount,
		RelayRatio:      defaultRelayRatio,
		Seed:            time.Now().UnixNano(),
		Transport:       TransportMemory,
		BasePort:        defaultBasePort,
		ConnectTimeout:  defaultConnect,
		CallBackTimeout: defaultCallBack,
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if !c.Algorithm.Valid() {
		return fmt.Errorf("%w: %q", common.ErrUnknownAlgorithm, c.Algorithm)
	}
	if c.ProcessCount < 2 {
		return fmt.Errorf("%w: got %d", common.ErrTooFewProcesses, c.ProcessCount)
	}
	if c.ScalingFactor != 0 {
		if c.ScalingFactor <= c.ProcessCount {
			return fmt.Errorf("%w: %d <= %d", common.ErrScalingFactorTooSmall, c.ScalingFactor, c.ProcessCount)
		}
		if GCD(c.ProcessCount, c.ScalingFactor) != 1 {
			return fmt.Errorf("%w: gcd(%d, %d) = %d", common.ErrScalingFactorNotCoprime,
				c.ProcessCount, c.ScalingFactor, GCD(c.ProcessCount, c.ScalingFactor))
		}
	}
	if c.RelayRatio < 0 || c.RelayRatio >= 1 {
		return fmt.Errorf("%w: %v", common.ErrRelayRatio, c.RelayRatio)
	}

	if len(c.UIDs) > 0 {
		if len(c.UIDs) != c.ProcessCount {
			return fmt.Errorf("got %d uids for %d processes", len(c.UIDs), c.ProcessCount)
		}
		seen := make(map[int]int, len(c.UIDs))
		for rank, uid := range c.UIDs {
			if other, ok := seen[uid]; ok {
				return fmt.Errorf("%w: %d at ranks %d and %d", common.ErrDuplicateUID, uid, other, rank)
			}
			seen[uid] = rank
		}
	}
	if err := c.checkRanks("relay", c.Relays); err != nil {
		return err
	}
	if err := c.checkRanks("initiator", c.Initiators); err != nil {
		return err
	}
	if len(c.Relays) >= c.ProcessCount {
		return fmt.Errorf("%w: every process is a relay", common.ErrNoInitiator)
	}
	for _, r := range c.Initiators {
		for _, relay := range c.Relays {
			if r == relay {
				return fmt.Errorf("rank %d is both initiator and relay", r)
			}
		}
	}

	switch c.Transport {
	case "", TransportMemory:
	case TransportRPC:
		if len(c.Addresses) > 0 && len(c.Addresses) != c.ProcessCount {
			return fmt.Errorf("got %d addresses for %d processes", len(c.Addresses), c.ProcessCount)
		}
		if len(c.Addresses) == 0 && (c.BasePort <= 0 || c.BasePort+c.ProcessCount > 65535) {
			return fmt.Errorf("base port %d cannot hold %d processes", c.BasePort, c.ProcessCount)
		}
		if err := c.RPC.Validate(); err != nil {
			return fmt.Errorf("rpc: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", common.ErrUnknownTransport, c.Transport)
	}
	return nil
}

// TransportConfig returns the rpc endpoint settings, falling back to
// ConnectTimeout when the rpc section sets none.
func (c *Config) TransportConfig() *rpc.Config {
	cfg := c.RPC
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}
	return &cfg
}

// Address returns the rpc listen address of rank.
func (c *Config) Address(rank int) string {
	if len(c.Addresses) > 0 {
		return c.Addresses[rank]
	}
	return fmt.Sprintf("127.0.0.1:%d", c.BasePort+rank)
}

func (c *Config) checkRanks(kind string, ranks []int) error {
	seen := make(map[int]struct{}, len(ranks))
	for _, r := range ranks {
		if r < 0 || r >= c.ProcessCount {
			return fmt.Errorf("%w: %s rank %d", common.ErrRankOutOfRange, kind, r)
		}
		if _, ok := seen[r]; ok {
			return fmt.Errorf("%s rank %d listed twice", kind, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// GCD returns the greatest common divisor of two positive integers.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
