package types

import "maps"

type (
	// Proposal is the set of values a node submits for agreement, tagged with
	// the submitting node and its quantum trust at submission time.
	Proposal struct {
		NodeID       string           `json:"nodeId"`
		QuantumTrust float64          `json:"quantumTrust"`
		Values       map[string]Value `json:"values"`
	}

	// ProposalTemplate is the round input every eligible node proposes a copy of.
	ProposalTemplate map[string]Value

	/*
	RoundResult is the structured outcome of a consensus round.

	When the round could not be attempted (ie quorum not met) Success is false and
	Reason says why, the other fields are zero.
	*/
	RoundResult struct {
		Round            uint64           `json:"round"`
		RegistryVersion  uint64           `json:"registryVersion"`
		Success          bool             `json:"success"`
		Reason           string           `json:"reason,omitempty"`
		ConsensusResult  map[string]Value `json:"consensusResult,omitempty"`
		ParticipantCount int              `json:"participantCount"`
		ConsensusQuality float64          `json:"consensusQuality"`
		AvgTrust         float64          `json:"avgTrust"`
	}
)

// Reasons reported in RoundResult.Reason.
const (
	ReasonInsufficientQuorum = "InsufficientQuorum"
	ReasonLowQuality         = "LowConsensusQuality"
)

// NewProposal copies the template values into a proposal of the given node.
func (t ProposalTemplate) NewProposal(nodeID string, quantumTrust float64) Proposal {
	return Proposal{
		NodeID:       nodeID,
		QuantumTrust: quantumTrust,
		Values:       maps.Clone(map[string]Value(t)),
	}
}
