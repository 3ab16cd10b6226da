/*
Package generator builds synthetic IoRT networks. All randomness comes from
an explicitly seeded source so the same configuration always produces the
same network.
*/
package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/iort-labs/qtrust/types"
)

// pcg stream selector, keeps the generator sequence apart from other users of the same seed
const streamID = 0x71747275

// NodeID returns the id of the i-th generated node.
func NodeID(i int) string {
	return fmt.Sprintf("node_%05d", i)
}

/*
Generate returns "nodes" node records sampled according to the options.
Adversarial nodes (AdversarialRatio of the total, rounded) are picked without
replacement after all the nodes have been sampled.
*/
func Generate(nodes int, opts ...Option) ([]*types.Node, error) {
	conf, err := LoadConf(nodes, opts)
	if err != nil {
		return nil, fmt.Errorf("loading generator config: %w", err)
	}
	src := rand.NewPCG(conf.Seed, streamID)

	weights := make([]float64, len(conf.Types))
	for i, p := range conf.Types {
		weights[i] = p.Probability
	}
	typeDist := distuv.NewCategorical(weights, src)
	unit := distuv.Uniform{Min: 0, Max: 1, Src: src}
	area := distuv.Uniform{Min: 0, Max: conf.AreaSize, Src: src}

	result := make([]*types.Node, conf.Nodes)
	for i := range result {
		p := conf.Types[int(typeDist.Rand())]
		compute := distuv.Uniform{Min: p.Compute.Min, Max: p.Compute.Max, Src: src}.Rand()
		latency := distuv.Uniform{Min: p.Latency.Min, Max: p.Latency.Max, Src: src}.Rand()
		trust := distuv.Beta{Alpha: p.TrustAlpha, Beta: p.TrustBeta, Src: src}.Rand()
		pos := types.Position{X: area.Rand(), Y: area.Rand()}
		critical := unit.Rand() < conf.SafetyCriticalProb

		result[i] = types.NewNode(NodeID(i), p.Type, compute, latency, pos, trust, types.WithSafetyCritical(critical))
	}

	if k := int(math.Round(conf.AdversarialRatio * float64(conf.Nodes))); k > 0 {
		idx := make([]int, k)
		sampleuv.WithoutReplacement(idx, conf.Nodes, src)
		for _, i := range idx {
			result[i].IsAdversarial = true
		}
	}
	return result, nil
}
