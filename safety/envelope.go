package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/iort-labs/qtrust/types"
)

type (
	/*
	EnvelopeOverride is the set of envelope fields to change, nil field keeps
	the current value of the node.
	*/
	EnvelopeOverride struct {
		MaxLatency             *float64 `yaml:"maxLatency"`
		MinTrust               *float64 `yaml:"minTrust"`
		MaxComputeLoad         *float64 `yaml:"maxComputeLoad"`
		QuantumSafetyThreshold *float64 `yaml:"quantumSafetyThreshold"`
		EntanglementRequired   *float64 `yaml:"entanglementRequired"`
	}

	// EnvelopeSetter is implemented by the node registry.
	EnvelopeSetter interface {
		Node(id string) (*types.Node, error)
		ApplySafetyEnvelope(id string, env types.SafetyEnvelope) error
	}
)

/*
LoadEnvelopeOverrides reads YAML file mapping node id to envelope fields:

	node_00001:
	  maxLatency: 10
	  minTrust: 0.9
*/
func LoadEnvelopeOverrides(fileName string) (map[string]EnvelopeOverride, error) {
	b, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("reading safety envelope file: %w", err)
	}
	overrides := make(map[string]EnvelopeOverride)
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return nil, fmt.Errorf("decoding safety envelopes (%s): %w", fileName, err)
	}
	return overrides, nil
}

// Apply returns copy of env with the fields set in the override replaced.
func (o EnvelopeOverride) Apply(env types.SafetyEnvelope) types.SafetyEnvelope {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&env.MaxLatency, o.MaxLatency)
	set(&env.MinTrust, o.MinTrust)
	set(&env.MaxComputeLoad, o.MaxComputeLoad)
	set(&env.QuantumSafetyThreshold, o.QuantumSafetyThreshold)
	set(&env.EntanglementRequired, o.EntanglementRequired)
	return env
}

/*
ApplyEnvelopeOverrides updates envelopes of the nodes in "reg". Nodes are
processed in the order of their ids and the first error stops the processing.
*/
func ApplyEnvelopeOverrides(reg EnvelopeSetter, overrides map[string]EnvelopeOverride) error {
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		n, err := reg.Node(id)
		if err != nil {
			return fmt.Errorf("applying safety envelope: %w", err)
		}
		if err := reg.ApplySafetyEnvelope(id, overrides[id].Apply(n.Envelope)); err != nil {
			return fmt.Errorf("applying safety envelope of %s: %w", id, err)
		}
	}
	return nil
}
