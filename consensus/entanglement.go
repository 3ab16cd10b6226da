package consensus

import (
	"fmt"
	"math"

	"github.com/iort-labs/qtrust/types"
)

/*
EntanglementConsensus is trust weighted plurality vote over the proposals.

Proposals are matched to the nodes by position: proposals[i] is the vote of
nodes[i] and its weight is nodes[i].TrustScore / Σ TrustScore (uniform weights
when the total trust is zero). When proposal carries NodeID it must be the ID
of the node at the same position.

All proposals must have the same key set and number values must be finite. For every key the value with the
greatest accumulated weight wins, on tie the value which was proposed first
wins.
*/
func (m *Manager) EntanglementConsensus(nodes []*types.Node, proposals []types.Proposal) (map[string]types.Value, error) {
	if len(proposals) != len(nodes) {
		return nil, fmt.Errorf("%w: %d proposals for %d nodes", ErrProposalCountMismatch, len(proposals), len(nodes))
	}
	result := make(map[string]types.Value)
	if len(nodes) == 0 {
		return result, nil
	}

	keys := sortedKeys(proposals[0].Values)
	for i, p := range proposals {
		if p.NodeID != "" && p.NodeID != nodes[i].ID {
			return nil, fmt.Errorf("%w: proposal %d is from %q, node is %q", ErrProposalNodeMismatch, i, p.NodeID, nodes[i].ID)
		}
		if len(p.Values) != len(keys) {
			return nil, fmt.Errorf("%w: proposal %d has %d keys, expected %d", ErrMissingProposalKey, i, len(p.Values), len(keys))
		}
		for _, k := range keys {
			v, ok := p.Values[k]
			if !ok {
				return nil, fmt.Errorf("%w: proposal %d has no key %q", ErrMissingProposalKey, i, k)
			}
			if v.Kind == types.KindNumber && (math.IsNaN(v.Num) || math.IsInf(v.Num, 0)) {
				return nil, fmt.Errorf("%w: proposal %d key %q is %v", ErrInvalidValue, i, k, v.Num)
			}
		}
	}

	weights := voteWeights(nodes)
	for _, key := range keys {
		var order []types.Value
		tally := make(map[types.Value]float64)
		for i, p := range proposals {
			v := p.Values[key]
			if _, ok := tally[v]; !ok {
				order = append(order, v)
			}
			tally[v] += weights[i]
		}

		best := order[0]
		for _, v := range order[1:] {
			if tally[v] > tally[best] {
				best = v
			}
		}
		result[key] = best
	}
	return result, nil
}

func voteWeights(nodes []*types.Node) []float64 {
	w := make([]float64, len(nodes))
	var total float64
	for _, n := range nodes {
		total += n.TrustScore
	}
	for i, n := range nodes {
		if total > 0 {
			w[i] = n.TrustScore / total
		} else {
			w[i] = 1 / float64(len(nodes))
		}
	}
	return w
}
