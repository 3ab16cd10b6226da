package registry

import (
	"fmt"
	"math"
	"sync"

	"github.com/iort-labs/qtrust/types"
)

/*
Registry is the canonical set of node records. Insertion order of the nodes
defines the order of every vector (positions, trust) handed out by snapshots.

Three counters track the state of the registry:
  - Version is incremented on every mutation;
  - TopologyVersion is incremented when the input of trust propagation changes
    (nodes added, position changed);
  - PropagatedVersion is the TopologyVersion the current quantum trust scores
    were computed for.

Readers work on immutable snapshots, mutation happens only via the explicit
"Apply*" and "Add"/"UpdatePosition" methods.
*/
type Registry struct {
	mu    sync.RWMutex
	nodes []*types.Node
	index map[string]int

	version           uint64
	topologyVersion   uint64
	propagatedVersion uint64
}

func New(nodes ...*types.Node) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	if len(nodes) == 0 {
		return r, nil
	}
	if err := r.Add(nodes...); err != nil {
		return nil, err
	}
	return r, nil
}

/*
Add appends nodes to the registry. Either all nodes are added or none (when
some node is invalid or registry already contains node with the same id).
Registry stores copies of the nodes.
*/
func (r *Registry) Add(nodes ...*types.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if err := n.IsValid(); err != nil {
			return fmt.Errorf("%w at index %d: %w", ErrInvalidNode, i, err)
		}
		if _, ok := r.index[n.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		if _, ok := seen[n.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = struct{}{}
	}

	for _, n := range nodes {
		c := n.Clone()
		c.TrustScore = types.ClampTrust(c.TrustScore)
		c.QuantumTrustScore = types.ClampTrust(c.QuantumTrustScore)
		r.index[c.ID] = len(r.nodes)
		r.nodes = append(r.nodes, c)
	}
	if len(nodes) > 0 {
		r.version++
		r.topologyVersion++
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Node returns copy of the node record with given id.
func (r *Registry) Node(id string) (*types.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return r.nodes[idx].Clone(), nil
}

func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot returns deep copy of the current state of the registry.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Snapshot{
		Version:           r.version,
		TopologyVersion:   r.topologyVersion,
		PropagatedVersion: r.propagatedVersion,
		nodes:             make([]*types.Node, len(r.nodes)),
	}
	for i, n := range r.nodes {
		s.nodes[i] = n.Clone()
	}
	return s
}

/*
ApplyPropagatedTrust overwrites quantum trust of all nodes with values in
"trust" (in the registry order). The topologyVersion must be the
TopologyVersion of the snapshot the trust was computed from, ErrStaleSnapshot
is returned when the registry has changed since.

Values are clamped into [0, 1], NaN is stored as 0.
*/
func (r *Registry) ApplyPropagatedTrust(topologyVersion uint64, trust []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if topologyVersion != r.topologyVersion {
		return fmt.Errorf("%w: trust computed for topology version %d, current version is %d", ErrStaleSnapshot, topologyVersion, r.topologyVersion)
	}
	if len(trust) != len(r.nodes) {
		return fmt.Errorf("%w: got %d trust values for %d nodes", ErrDimensionMismatch, len(trust), len(r.nodes))
	}
	for i, n := range r.nodes {
		n.QuantumTrustScore = types.ClampTrust(trust[i])
	}
	r.propagatedVersion = topologyVersion
	r.version++
	return nil
}

/*
ApplyAnomalyScore stores the score produced by anomaly detector into the
behavioral profile of the node, score is clamped into [0, 1].
*/
func (r *Registry) ApplyAnomalyScore(id string, score float64) error {
	return r.update(id, false, func(n *types.Node) error {
		n.Profile.AnomalyScore = types.ClampTrust(score)
		return nil
	})
}

func (r *Registry) ApplySafetyEnvelope(id string, env types.SafetyEnvelope) error {
	return r.update(id, false, func(n *types.Node) error {
		n.Envelope = env
		return nil
	})
}

// UpdatePosition moves the node, trust has to be propagated again after that.
func (r *Registry) UpdatePosition(id string, pos types.Position) error {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) {
		return fmt.Errorf("%w: position of %s is not finite", ErrInvalidNode, id)
	}
	return r.update(id, true, func(n *types.Node) error {
		n.Position = pos
		return nil
	})
}

func (r *Registry) update(id string, topology bool, f func(n *types.Node) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if err := f(r.nodes[idx]); err != nil {
		return err
	}
	r.version++
	if topology {
		r.topologyVersion++
	}
	return nil
}
