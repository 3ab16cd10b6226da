package orchestrator

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/iort-labs/qtrust/types"
)

// PerformanceMetrics summarizes the current state of the network.
type PerformanceMetrics struct {
	AvgLatency      float64 `json:"avgLatency"`
	AvgQuantumTrust float64 `json:"avgQuantumTrust"`
	AvgCompute      float64 `json:"avgCompute"`
	// ByzantineTolerance is the outcome of the threshold check of a random sample of the nodes.
	ByzantineTolerance bool `json:"byzantineTolerance"`
	SampleSize         int  `json:"sampleSize"`
	// SafetyScore is the mean quantum trust of the safety critical nodes.
	SafetyScore         float64 `json:"safetyScore"`
	NetworkSize         int     `json:"networkSize"`
	SafetyCriticalCount int     `json:"safetyCriticalCount"`
}

/*
MeasurePerformance computes metrics of the registry, propagating trust first
when needed. Sample of the Byzantine check is drawn without replacement from
a source seeded with "seed".
*/
func (o *Orchestrator) MeasurePerformance(ctx context.Context, seed uint64) (*PerformanceMetrics, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap, err := o.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	nodes := snap.Nodes()
	pm := &PerformanceMetrics{NetworkSize: len(nodes)}
	if len(nodes) == 0 {
		return pm, nil
	}

	var critical float64
	for _, n := range nodes {
		pm.AvgLatency += n.NetworkLatency
		pm.AvgQuantumTrust += n.QuantumTrustScore
		pm.AvgCompute += n.ComputeCapacity
		if n.SafetyCritical {
			pm.SafetyCriticalCount++
			critical += n.QuantumTrustScore
		}
	}
	total := float64(len(nodes))
	pm.AvgLatency /= total
	pm.AvgQuantumTrust /= total
	pm.AvgCompute /= total
	if pm.SafetyCriticalCount > 0 {
		pm.SafetyScore = critical / float64(pm.SafetyCriticalCount)
	}

	idx := make([]int, min(o.conf.PerformanceSample, len(nodes)))
	sampleuv.WithoutReplacement(idx, len(nodes), rand.NewPCG(seed, seed>>1|1))
	sample := make([]*types.Node, len(idx))
	for i, k := range idx {
		sample[i] = nodes[k]
	}
	pm.SampleSize = len(sample)
	pm.ByzantineTolerance, _ = o.cm.ByzantineThresholdCheck(sample)
	return pm, nil
}
