package safety

import (
	"github.com/iort-labs/qtrust/types"
)

// MinConsensusQuality is the round quality a deployment requires on top of round success.
const MinConsensusQuality = 0.7

type (
	/*
	Scenario is a deployment profile: every safety critical node must have
	latency of at most MaxLatency and quantum trust of at least MinTrust, and
	at least SafetyCriticalRatio of the nodes must be safety critical.
	*/
	Scenario struct {
		Name                string  `json:"name" yaml:"name"`
		MaxLatency          float64 `json:"maxLatency" yaml:"maxLatency"`
		MinTrust            float64 `json:"minTrust" yaml:"minTrust"`
		SafetyCriticalRatio float64 `json:"safetyCriticalRatio" yaml:"safetyCriticalRatio"`
	}

	Requirements struct {
		Latency     bool `json:"latency"`
		Trust       bool `json:"trust"`
		SafetyRatio bool `json:"safetyRatio"`
		Consensus   bool `json:"consensus"`
	}

	Assessment struct {
		Scenario        string       `json:"scenario"`
		Feasible        bool         `json:"feasible"`
		RequirementsMet Requirements `json:"requirementsMet"`
		// OverallScore is the fraction of the requirements met.
		OverallScore float64 `json:"overallScore"`
	}
)

func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "smart_factory", MaxLatency: 20, MinTrust: 0.8, SafetyCriticalRatio: 0.8},
		{Name: "drone_swarm", MaxLatency: 10, MinTrust: 0.85, SafetyCriticalRatio: 0.9},
		{Name: "smart_city", MaxLatency: 50, MinTrust: 0.7, SafetyCriticalRatio: 0.6},
	}
}

/*
Evaluate assesses the nodes (with propagated trust) and the outcome of a
consensus round against the scenario. Latency and trust requirements hold
trivially when there are no safety critical nodes, empty network never meets
the safety ratio requirement. Nil round result fails the consensus requirement.
*/
func (s Scenario) Evaluate(nodes []*types.Node, round *types.RoundResult) Assessment {
	req := Requirements{Latency: true, Trust: true}
	critical := 0
	for _, n := range nodes {
		if !n.SafetyCritical {
			continue
		}
		critical++
		if n.NetworkLatency > s.MaxLatency {
			req.Latency = false
		}
		if n.QuantumTrustScore < s.MinTrust {
			req.Trust = false
		}
	}
	if len(nodes) > 0 {
		req.SafetyRatio = float64(critical)/float64(len(nodes)) >= s.SafetyCriticalRatio
	}
	req.Consensus = round != nil && round.Success && round.ConsensusQuality > MinConsensusQuality

	met := 0
	for _, ok := range []bool{req.Latency, req.Trust, req.SafetyRatio, req.Consensus} {
		if ok {
			met++
		}
	}
	return Assessment{
		Scenario:        s.Name,
		Feasible:        met == 4,
		RequirementsMet: req,
		OverallScore:    float64(met) / 4,
	}
}
