package consensus

import (
	"fmt"
	"strings"
	"time"
)

type Type uint8

const (
	// PBFT is the trust threshold check only
	PBFT Type = iota + 1
	// CRDT merges replicated state without the threshold check
	CRDT
	// Hybrid runs the threshold check and merges state only when it passes
	Hybrid
)

const (
	DefaultSafetyThreshold = 0.7
	DefaultTimeout         = 100 * time.Millisecond
)

func (t Type) String() string {
	switch t {
	case PBFT:
		return "pbft"
	case CRDT:
		return "crdt"
	case Hybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("consensus_type(%d)", uint8(t))
	}
}

// ParseType is the inverse of Type.String, used by the CLI flags.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "pbft":
		return PBFT, nil
	case "crdt":
		return CRDT, nil
	case "hybrid", "":
		return Hybrid, nil
	default:
		return 0, fmt.Errorf("unknown consensus type %q", s)
	}
}

type (
	/*
	Config of the consensus manager.

	SafetyThreshold is the static trust a node must have to count as trusted
	in the threshold check. Timeout is the time budget of one consensus round,
	manager itself does no blocking work so it is applied by the caller.
	*/
	Config struct {
		Type            Type
		SafetyThreshold float64
		Timeout         time.Duration
	}

	Option func(c *Config)
)

func WithType(t Type) Option {
	return func(c *Config) {
		c.Type = t
	}
}

func WithSafetyThreshold(threshold float64) Option {
	return func(c *Config) {
		c.SafetyThreshold = threshold
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

func LoadConf(opts []Option) (*Config, error) {
	conf := &Config{
		Type:            Hybrid,
		SafetyThreshold: DefaultSafetyThreshold,
		Timeout:         DefaultTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(conf)
	}

	if conf.Type < PBFT || conf.Type > Hybrid {
		return nil, fmt.Errorf("invalid consensus type %s", conf.Type)
	}
	if !(conf.SafetyThreshold >= 0 && conf.SafetyThreshold <= 1) {
		return nil, fmt.Errorf("invalid safety threshold %v, must be in range [0, 1]", conf.SafetyThreshold)
	}
	if conf.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %s, must be positive", conf.Timeout)
	}
	return conf, nil
}
