package orchestrator

import (
	"fmt"

	"github.com/iort-labs/qtrust/types"
)

const (
	DefaultParticipationThreshold = 0.4
	DefaultMinQuorum              = 3
	DefaultSuccessQuality         = 0.5
	// sample size of the Byzantine check in the performance metrics
	DefaultPerformanceSample = 10
)

type (
	// RoundStore persists the outcome of the rounds and propagated trust.
	RoundStore interface {
		SaveRound(res *types.RoundResult) error
		LastRound() (*types.RoundResult, error)
		SaveTrustSnapshot(topologyVersion uint64, nodes []*types.Node) error
	}

	/*
	Config of the round orchestrator.

	Nodes with quantum trust above ParticipationThreshold are eligible for a
	round, round is attempted only when at least MinQuorum nodes are eligible
	and it succeeds when its quality is above SuccessQuality.
	*/
	Config struct {
		ParticipationThreshold float64
		MinQuorum              int
		SuccessQuality         float64
		PerformanceSample      int
		store                  RoundStore
	}

	Option func(c *Config)
)

func WithParticipationThreshold(threshold float64) Option {
	return func(c *Config) {
		c.ParticipationThreshold = threshold
	}
}

func WithMinQuorum(n int) Option {
	return func(c *Config) {
		c.MinQuorum = n
	}
}

func WithSuccessQuality(q float64) Option {
	return func(c *Config) {
		c.SuccessQuality = q
	}
}

func WithPerformanceSample(n int) Option {
	return func(c *Config) {
		c.PerformanceSample = n
	}
}

/*
WithRoundStore makes the orchestrator persist every round result and the
trust snapshot after every propagation. Round numbering continues from the
last round in the store.
*/
func WithRoundStore(s RoundStore) Option {
	return func(c *Config) {
		c.store = s
	}
}

func LoadConf(opts []Option) (*Config, error) {
	conf := &Config{
		ParticipationThreshold: DefaultParticipationThreshold,
		MinQuorum:              DefaultMinQuorum,
		SuccessQuality:         DefaultSuccessQuality,
		PerformanceSample:      DefaultPerformanceSample,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(conf)
	}

	if !(conf.ParticipationThreshold >= 0 && conf.ParticipationThreshold <= 1) {
		return nil, fmt.Errorf("invalid participation threshold %v, must be in range [0, 1]", conf.ParticipationThreshold)
	}
	if conf.MinQuorum < 1 {
		return nil, fmt.Errorf("invalid minimum quorum %d, must be at least 1", conf.MinQuorum)
	}
	if !(conf.SuccessQuality >= 0 && conf.SuccessQuality <= 1) {
		return nil, fmt.Errorf("invalid success quality %v, must be in range [0, 1]", conf.SuccessQuality)
	}
	if conf.PerformanceSample < 1 {
		return nil, fmt.Errorf("invalid performance sample size %d, must be at least 1", conf.PerformanceSample)
	}
	return conf, nil
}
