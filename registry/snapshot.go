package registry

import (
	"github.com/iort-labs/qtrust/types"
)

/*
Snapshot is an immutable view of the registry at given Version.
Nodes are in the registry (insertion) order.
*/
type Snapshot struct {
	Version           uint64
	TopologyVersion   uint64
	PropagatedVersion uint64

	nodes []*types.Node
}

func (s *Snapshot) Len() int { return len(s.nodes) }

/*
Nodes returns the node records of the snapshot. Callers must treat the
records as read-only, use Clone when modified copy is needed.
*/
func (s *Snapshot) Nodes() []*types.Node { return s.nodes }

// NeedsPropagation returns true when quantum trust hasn't been computed for the current topology.
func (s *Snapshot) NeedsPropagation() bool {
	return s.TopologyVersion != s.PropagatedVersion
}

func (s *Snapshot) Positions() []types.Position {
	pos := make([]types.Position, len(s.nodes))
	for i, n := range s.nodes {
		pos[i] = n.Position
	}
	return pos
}

// Trust returns the static trust scores.
func (s *Snapshot) Trust() []float64 {
	v := make([]float64, len(s.nodes))
	for i, n := range s.nodes {
		v[i] = n.TrustScore
	}
	return v
}

func (s *Snapshot) QuantumTrust() []float64 {
	v := make([]float64, len(s.nodes))
	for i, n := range s.nodes {
		v[i] = n.QuantumTrustScore
	}
	return v
}

// Filter returns nodes for which "keep" returns true, in the registry order.
func (s *Snapshot) Filter(keep func(*types.Node) bool) []*types.Node {
	var nodes []*types.Node
	for _, n := range s.nodes {
		if keep(n) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
