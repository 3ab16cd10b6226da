package propagation

import (
	"fmt"
	"math"
	"runtime"
)

const (
	DefaultTimeStep      = 0.1
	DefaultDistanceScale = 50.0
)

type (
	/*
	Config of the trust propagation engine.

	TimeStep is the "dt" of the evolution exp(-i·H·dt), DistanceScale is the
	length over which edge weight decays by factor of e. Workers limits the
	number of goroutines used to build the weight matrix.
	*/
	Config struct {
		TimeStep      float64
		DistanceScale float64
		Workers       int
	}

	Option func(c *Config)
)

func WithTimeStep(dt float64) Option {
	return func(c *Config) {
		c.TimeStep = dt
	}
}

func WithDistanceScale(scale float64) Option {
	return func(c *Config) {
		c.DistanceScale = scale
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func LoadConf(opts []Option) (*Config, error) {
	conf := &Config{
		TimeStep:      DefaultTimeStep,
		DistanceScale: DefaultDistanceScale,
		Workers:       runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(conf)
	}

	if !(conf.TimeStep > 0) || math.IsInf(conf.TimeStep, 0) {
		return nil, fmt.Errorf("invalid time step %v, must be positive", conf.TimeStep)
	}
	if !(conf.DistanceScale > 0) || math.IsInf(conf.DistanceScale, 0) {
		return nil, fmt.Errorf("invalid distance scale %v, must be positive", conf.DistanceScale)
	}
	if conf.Workers < 1 {
		return nil, fmt.Errorf("invalid worker count %d, must be at least 1", conf.Workers)
	}
	return conf, nil
}
