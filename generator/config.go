package generator

import (
	"fmt"

	"github.com/iort-labs/qtrust/types"
)

const (
	DefaultAreaSize           = 500.0
	DefaultSafetyCriticalProb = 0.5
)

type (
	// Range is the closed interval uniform samples are drawn from.
	Range struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	}

	/*
	TypeParams describes how nodes of one type are sampled: Probability is the
	relative frequency of the type, trust is drawn from Beta(TrustAlpha, TrustBeta).
	*/
	TypeParams struct {
		Type        types.NodeType
		Probability float64
		Compute     Range
		Latency     Range
		TrustAlpha  float64
		TrustBeta   float64
	}

	Config struct {
		Nodes              int
		Seed               uint64
		AreaSize           float64
		SafetyCriticalProb float64
		AdversarialRatio   float64
		Types              []TypeParams
	}

	Option func(c *Config)
)

// DefaultTypes returns the parameter table of the IoRT node types.
func DefaultTypes() []TypeParams {
	return []TypeParams{
		{Type: types.Robot, Probability: 0.4, Compute: Range{200, 800}, Latency: Range{1, 15}, TrustAlpha: 3, TrustBeta: 2},
		{Type: types.EdgeSensor, Probability: 0.3, Compute: Range{20, 100}, Latency: Range{3, 25}, TrustAlpha: 4, TrustBeta: 2},
		{Type: types.EdgeComputer, Probability: 0.2, Compute: Range{800, 2000}, Latency: Range{2, 12}, TrustAlpha: 5, TrustBeta: 1},
		{Type: types.Cloud, Probability: 0.1, Compute: Range{2000, 10000}, Latency: Range{30, 150}, TrustAlpha: 6, TrustBeta: 1},
	}
}

func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

func WithAreaSize(size float64) Option {
	return func(c *Config) {
		c.AreaSize = size
	}
}

func WithSafetyCriticalProb(p float64) Option {
	return func(c *Config) {
		c.SafetyCriticalProb = p
	}
}

// WithAdversarialRatio sets the share of nodes flagged as adversarial.
func WithAdversarialRatio(ratio float64) Option {
	return func(c *Config) {
		c.AdversarialRatio = ratio
	}
}

func WithTypes(params []TypeParams) Option {
	return func(c *Config) {
		c.Types = params
	}
}

func LoadConf(nodes int, opts []Option) (*Config, error) {
	conf := &Config{
		Nodes:              nodes,
		AreaSize:           DefaultAreaSize,
		SafetyCriticalProb: DefaultSafetyCriticalProb,
		Types:              DefaultTypes(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(conf)
	}
	if err := conf.IsValid(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) IsValid() error {
	if c.Nodes < 0 {
		return fmt.Errorf("invalid node count %d", c.Nodes)
	}
	if !(c.AreaSize > 0) {
		return fmt.Errorf("invalid area size %v, must be positive", c.AreaSize)
	}
	if c.SafetyCriticalProb < 0 || c.SafetyCriticalProb > 1 {
		return fmt.Errorf("invalid safety critical probability %v, must be in [0, 1]", c.SafetyCriticalProb)
	}
	if c.AdversarialRatio < 0 || c.AdversarialRatio > 1 {
		return fmt.Errorf("invalid adversarial ratio %v, must be in [0, 1]", c.AdversarialRatio)
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("node type table is empty")
	}
	var total float64
	for _, p := range c.Types {
		if p.Probability < 0 {
			return fmt.Errorf("type %s: negative probability %v", p.Type, p.Probability)
		}
		if !(p.Compute.Min > 0) || p.Compute.Max < p.Compute.Min {
			return fmt.Errorf("type %s: invalid compute range [%v, %v]", p.Type, p.Compute.Min, p.Compute.Max)
		}
		if p.Latency.Min < 0 || p.Latency.Max < p.Latency.Min {
			return fmt.Errorf("type %s: invalid latency range [%v, %v]", p.Type, p.Latency.Min, p.Latency.Max)
		}
		if !(p.TrustAlpha > 0) || !(p.TrustBeta > 0) {
			return fmt.Errorf("type %s: beta distribution parameters must be positive", p.Type)
		}
		total += p.Probability
	}
	if !(total > 0) {
		return fmt.Errorf("node type probabilities sum to zero")
	}
	return nil
}
