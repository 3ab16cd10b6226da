package propagation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/iort-labs/qtrust/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func randomNetwork(seed uint64, n int, trustLow, trustHigh float64) ([]*types.Node, []types.Position, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	nodes := make([]*types.Node, n)
	positions := make([]types.Position, n)
	trust := make([]float64, n)
	for i := range nodes {
		positions[i] = types.Position{X: rng.Float64() * 500, Y: rng.Float64() * 500}
		trust[i] = trustLow + rng.Float64()*(trustHigh-trustLow)
		nodes[i] = types.NewNode(fmt.Sprintf("node_%05d", i), types.Robot, 500, 10, positions[i], trust[i])
	}
	return nodes, positions, trust
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func sum(v []float64) (s float64) {
	for _, x := range v {
		s += x
	}
	return s
}

/*
expected computes the propagated trust using eigendecomposition of the
symmetric generator: exp(-iA)·v = Q·exp(-iΛ)·Qᵀ·v
*/
func expected(t *testing.T, conf Config, positions []types.Position, trust []float64) []float64 {
	t.Helper()
	n := len(trust)
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		var degree float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := math.Hypot(positions[i].X-positions[j].X, positions[i].Y-positions[j].Y)
			w := trust[i] * trust[j] * math.Exp(-d/conf.DistanceScale)
			degree += w
			if j > i {
				a.SetSym(i, j, -w*conf.TimeStep)
			}
		}
		a.SetSym(i, i, degree*conf.TimeStep)
	}

	var es mat.EigenSym
	require.True(t, es.Factorize(a, true))
	lambda := es.Values(nil)
	var q mat.Dense
	es.VectorsTo(&q)

	v := mat.NewVecDense(n, append([]float64(nil), trust...))
	v.ScaleVec(1/mat.Norm(v, 2), v)
	var c mat.VecDense
	c.MulVec(q.T(), v)

	cosC := mat.NewVecDense(n, nil)
	sinC := mat.NewVecDense(n, nil)
	for k := 0; k < n; k++ {
		cosC.SetVec(k, math.Cos(lambda[k])*c.AtVec(k))
		sinC.SetVec(k, -math.Sin(lambda[k])*c.AtVec(k))
	}
	var re, im mat.VecDense
	re.MulVec(&q, cosC)
	im.MulVec(&q, sinC)

	prob := make([]float64, n)
	for i := range prob {
		prob[i] = re.AtVec(i)*re.AtVec(i) + im.AtVec(i)*im.AtVec(i)
	}
	total, mass := sum(prob), sum(trust)
	for i := range prob {
		prob[i] = min(max(prob[i]*mass/total, 0), 1)
	}
	return prob
}

func TestLoadConf(t *testing.T) {
	conf, err := LoadConf(nil)
	require.NoError(t, err)
	require.EqualValues(t, 0.1, conf.TimeStep)
	require.EqualValues(t, 50, conf.DistanceScale)
	require.GreaterOrEqual(t, conf.Workers, 1)

	conf, err = LoadConf([]Option{nil, WithTimeStep(0.2), WithDistanceScale(10), WithWorkers(3)})
	require.NoError(t, err)
	require.Equal(t, &Config{TimeStep: 0.2, DistanceScale: 10, Workers: 3}, conf)

	var cases = []struct {
		opt    Option
		errMsg string
	}{
		{WithTimeStep(0), "invalid time step 0, must be positive"},
		{WithTimeStep(math.NaN()), "invalid time step NaN, must be positive"},
		{WithTimeStep(math.Inf(1)), "invalid time step +Inf, must be positive"},
		{WithDistanceScale(-1), "invalid distance scale -1, must be positive"},
		{WithWorkers(0), "invalid worker count 0, must be at least 1"},
	}
	for _, tc := range cases {
		conf, err := LoadConf([]Option{tc.opt})
		require.EqualError(t, err, tc.errMsg)
		require.Nil(t, conf)
	}

	e, err := New(WithWorkers(-1))
	require.ErrorContains(t, err, "loading propagation config")
	require.Nil(t, e)
}

func TestPropagate_InvalidInput(t *testing.T) {
	e := newEngine(t)
	nodes, positions, trust := randomNetwork(1, 4, 0.5, 0.6)

	_, err := e.Propagate(context.Background(), nodes, positions[:3], trust)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = e.Propagate(context.Background(), nodes, positions, trust[:3])
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = e.Propagate(context.Background(), nodes[:3], positions, trust)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPropagate_EdgeCases(t *testing.T) {
	e := newEngine(t)

	t.Run("empty network", func(t *testing.T) {
		v, err := e.Propagate(context.Background(), nil, nil, nil)
		require.NoError(t, err)
		require.NotNil(t, v)
		require.Empty(t, v)
	})

	t.Run("single node keeps its trust", func(t *testing.T) {
		nodes, positions, _ := randomNetwork(2, 1, 0, 1)
		v, err := e.Propagate(context.Background(), nodes, positions, []float64{0.7})
		require.NoError(t, err)
		require.Len(t, v, 1)
		require.InDelta(t, 0.7, v[0], 1e-12)
	})

	t.Run("zero trust", func(t *testing.T) {
		nodes, positions, _ := randomNetwork(3, 5, 0, 1)
		v, err := e.Propagate(context.Background(), nodes, positions, make([]float64, 5))
		require.NoError(t, err)
		require.Equal(t, make([]float64, 5), v)
	})

	t.Run("uniform trust is stationary", func(t *testing.T) {
		// uniform vector is in the kernel of the Laplacian
		nodes, positions, _ := randomNetwork(4, 12, 0, 1)
		trust := make([]float64, len(nodes))
		for i := range trust {
			trust[i] = 0.8
		}
		v, err := e.Propagate(context.Background(), nodes, positions, trust)
		require.NoError(t, err)
		require.InDeltaSlice(t, trust, v, 1e-9)
	})

	t.Run("result is clipped", func(t *testing.T) {
		// nodes far apart do not exchange trust, all the mass of the high trust
		// nodes concentrates on them
		nodes, _, _ := randomNetwork(5, 3, 0, 1)
		positions := []types.Position{{X: 0}, {X: 1e6}, {X: 2e6}}
		v, err := e.Propagate(context.Background(), nodes, positions, []float64{1, 1, 0.1})
		require.NoError(t, err)
		for _, x := range v {
			require.GreaterOrEqual(t, x, 0.0)
			require.LessOrEqual(t, x, 1.0)
		}
		require.EqualValues(t, 1, v[0])
		require.EqualValues(t, 1, v[1])
	})
}

func TestPropagate_Divergence(t *testing.T) {
	e := newEngine(t)
	nodes, positions, trust := randomNetwork(6, 4, 0.5, 0.6)

	pos := append([]types.Position(nil), positions...)
	pos[2].X = math.NaN()
	v, err := e.Propagate(context.Background(), nodes, pos, trust)
	require.ErrorIs(t, err, ErrPropagationDivergence)
	require.Nil(t, v)

	big := []float64{1e200, 1e200, 1e200, 1e200}
	v, err = e.Propagate(context.Background(), nodes, positions, big)
	require.ErrorIs(t, err, ErrPropagationDivergence)
	require.Nil(t, v)

	tr := append([]float64(nil), trust...)
	tr[0] = math.Inf(1)
	v, err = e.Propagate(context.Background(), nodes, positions, tr)
	require.ErrorIs(t, err, ErrPropagationDivergence)
	require.Nil(t, v)
}

func TestPropagate_Cancelled(t *testing.T) {
	e := newEngine(t)
	nodes, positions, trust := randomNetwork(7, 8, 0.5, 0.6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, err := e.Propagate(ctx, nodes, positions, trust)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, v)
}

func TestPropagate_Properties(t *testing.T) {
	e := newEngine(t)
	for seed := uint64(10); seed < 20; seed++ {
		n := 1 + int(seed%7)*6
		nodes, positions, trust := randomNetwork(seed, n, 0.5, 0.6)
		v, err := e.Propagate(context.Background(), nodes, positions, trust)
		require.NoError(t, err)
		require.Len(t, v, n)
		for _, x := range v {
			require.GreaterOrEqual(t, x, 0.0)
			require.LessOrEqual(t, x, 1.0)
		}
		// trust in [0.5, 0.6] never gets clipped so mass is preserved
		require.InDelta(t, sum(trust), sum(v), 1e-9, "seed %d", seed)

		again, err := e.Propagate(context.Background(), nodes, positions, trust)
		require.NoError(t, err)
		require.Equal(t, v, again, "seed %d", seed)
	}
}

func TestPropagate_WorkerCountInvariance(t *testing.T) {
	nodes, positions, trust := randomNetwork(42, 40, 0.3, 1)
	single, err := newEngine(t, WithWorkers(1)).Propagate(context.Background(), nodes, positions, trust)
	require.NoError(t, err)
	for _, w := range []int{2, 3, 8, 64} {
		v, err := newEngine(t, WithWorkers(w)).Propagate(context.Background(), nodes, positions, trust)
		require.NoError(t, err)
		require.Equal(t, single, v, "workers %d", w)
	}
}

func TestPropagate_MatchesEigendecomposition(t *testing.T) {
	var cases = []struct {
		name string
		opts []Option
		seed uint64
		n    int
	}{
		{name: "default", seed: 100, n: 25},
		{name: "dense cluster", seed: 101, n: 30, opts: []Option{WithDistanceScale(500)}},
		{name: "long time step", seed: 102, n: 15, opts: []Option{WithTimeStep(2)}},
		{name: "two nodes", seed: 103, n: 2, opts: []Option{WithDistanceScale(1000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t, tc.opts...)
			nodes, positions, trust := randomNetwork(tc.seed, tc.n, 0.2, 1)
			v, err := e.Propagate(context.Background(), nodes, positions, trust)
			require.NoError(t, err)
			require.InDeltaSlice(t, expected(t, e.Config(), positions, trust), v, 1e-9)
		})
	}
}

func TestPropagate_TrustFlowsBetweenNeighbours(t *testing.T) {
	e := newEngine(t, WithTimeStep(1))
	nodes, _, _ := randomNetwork(8, 2, 0, 1)
	positions := []types.Position{{X: 0, Y: 0}, {X: 10, Y: 0}}
	v, err := e.Propagate(context.Background(), nodes, positions, []float64{0.6, 0.3})
	require.NoError(t, err)
	require.InDelta(t, 0.9, v[0]+v[1], 1e-12)
	// two node Laplacian has eigenvalues 0 and 2w, projections of the
	// normalized trust (a, b) to the eigenvectors multiply to (a²-b²)/(2(a²+b²))
	theta := 2 * 0.6 * 0.3 * math.Exp(-10.0/50)
	c1c2 := (0.36 - 0.09) / (2 * (0.36 + 0.09))
	require.InDelta(t, 0.9*(1+2*c1c2*math.Cos(theta))/2, v[0], 1e-12)
}
