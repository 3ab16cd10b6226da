/*
Package safety checks nodes against their safety envelopes and evaluates
whether a network is fit for a deployment scenario.
*/
package safety

import (
	"fmt"

	"github.com/iort-labs/qtrust/types"
)

// Rule names reported in Violation.Rule.
const (
	RuleLatency       = "latency"
	RuleTrust         = "trust"
	RuleQuantumSafety = "quantum_safety"
)

type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Message }

/*
Verify checks the node against its own safety envelope and returns the
violated constraints, nil when the node is within the envelope.
*/
func Verify(n *types.Node) []Violation {
	return VerifyEnvelope(n, n.Envelope)
}

// VerifyEnvelope checks the node against "env" instead of the node's envelope.
func VerifyEnvelope(n *types.Node, env types.SafetyEnvelope) []Violation {
	var vs []Violation
	if n.NetworkLatency > env.MaxLatency {
		vs = append(vs, Violation{
			Rule:    RuleLatency,
			Message: fmt.Sprintf("latency violation: %.1f > %v", n.NetworkLatency, env.MaxLatency),
		})
	}
	if n.QuantumTrustScore < env.MinTrust {
		vs = append(vs, Violation{
			Rule:    RuleTrust,
			Message: fmt.Sprintf("trust violation: %.3f < %v", n.QuantumTrustScore, env.MinTrust),
		})
	}
	if n.QuantumTrustScore < env.QuantumSafetyThreshold {
		vs = append(vs, Violation{
			Rule:    RuleQuantumSafety,
			Message: "quantum trust below safety threshold",
		})
	}
	return vs
}

// VerifyAll returns violations of every node which has any, keyed by node id.
func VerifyAll(nodes []*types.Node) map[string][]Violation {
	res := make(map[string][]Violation)
	for _, n := range nodes {
		if vs := Verify(n); len(vs) > 0 {
			res[n.ID] = vs
		}
	}
	return res
}
