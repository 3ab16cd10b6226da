package consensus

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/iort-labs/qtrust/logger"
	"github.com/iort-labs/qtrust/types"
)

type (
	// Manager evaluates trust weighted agreement and merges replicated state.
	Manager struct {
		conf *Config
		log  *slog.Logger
	}

	// Result is the outcome of the procedure selected by Config.Type.
	Result struct {
		Success     bool                  `json:"success"`
		Type        string                `json:"consensusType"`
		AvgTrust    float64               `json:"avgTrust"`
		MergedState types.ReplicatedState `json:"mergedState,omitempty"`
	}
)

func NewManager(log *slog.Logger, opts ...Option) (*Manager, error) {
	conf, err := LoadConf(opts)
	if err != nil {
		return nil, fmt.Errorf("loading consensus config: %w", err)
	}
	if log == nil {
		log = logger.NOP()
	}
	return &Manager{
		conf: conf,
		log:  log.With(logger.Module("consensus")),
	}, nil
}

func (m *Manager) Config() Config { return *m.conf }

/*
ByzantineThresholdCheck passes when at least 2/3 of the nodes have static
trust of at least SafetyThreshold. Second return value is the mean static
trust of the nodes. Empty node list never passes.
*/
func (m *Manager) ByzantineThresholdCheck(nodes []*types.Node) (passed bool, avgTrust float64) {
	n := len(nodes)
	if n == 0 {
		return false, 0
	}
	var total float64
	trusted := 0
	for _, node := range nodes {
		total += node.TrustScore
		if node.TrustScore >= m.conf.SafetyThreshold {
			trusted++
		}
	}
	// trusted >= ceil(2n/3) in integer arithmetic
	return 3*trusted >= 2*n, total / float64(n)
}

/*
CRDTMerge merges local states as last-writer-wins register per key: the
entry with the greatest timestamp wins. When timestamps are equal entry of
the node with greater NodeID wins, between the entries of the same node the
one seen first is kept.
*/
func (m *Manager) CRDTMerge(states []*types.LocalState) types.ReplicatedState {
	merged := make(types.ReplicatedState)
	owner := make(map[string]string)
	for _, s := range states {
		if s == nil {
			continue
		}
		for key, e := range s.Entries {
			cur, ok := merged[key]
			if !ok || e.Timestamp > cur.Timestamp || (e.Timestamp == cur.Timestamp && s.NodeID > owner[key]) {
				merged[key] = e
				owner[key] = s.NodeID
			}
		}
	}
	return merged
}

/*
HybridConsensus runs the threshold check and only when it passes merges the
local states. Failed check is reported as unsuccessful result, there is no
retry.
*/
func (m *Manager) HybridConsensus(nodes []*types.Node, states []*types.LocalState) Result {
	passed, avgTrust := m.ByzantineThresholdCheck(nodes)
	if !passed {
		m.log.Debug(fmt.Sprintf("threshold check failed with %d nodes, avg trust %.3f", len(nodes), avgTrust))
		return Result{Type: Hybrid.String(), AvgTrust: avgTrust}
	}
	return Result{
		Success:     true,
		Type:        Hybrid.String(),
		AvgTrust:    avgTrust,
		MergedState: m.CRDTMerge(states),
	}
}

// Run executes the procedure selected by the Type of the configuration.
func (m *Manager) Run(nodes []*types.Node, states []*types.LocalState) Result {
	switch m.conf.Type {
	case PBFT:
		passed, avgTrust := m.ByzantineThresholdCheck(nodes)
		return Result{Success: passed, Type: PBFT.String(), AvgTrust: avgTrust}
	case CRDT:
		_, avgTrust := m.ByzantineThresholdCheck(nodes)
		return Result{Success: true, Type: CRDT.String(), AvgTrust: avgTrust, MergedState: m.CRDTMerge(states)}
	default:
		return m.HybridConsensus(nodes, states)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
