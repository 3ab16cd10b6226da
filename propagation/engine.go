package propagation

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/iort-labs/qtrust/types"
)

/*
Engine recomputes propagated ("quantum") trust of the nodes from their
positions and static trust.

The trust graph is complete, weight of the edge i-j is

	W[i][j] = t[i]·t[j]·exp(-dist(i,j)/DistanceScale)

and H = D - W (D being the diagonal degree matrix) is the Laplacian of it.
The normalized trust vector is evolved with U = exp(-i·H·dt), squared
magnitudes of the amplitudes are rescaled so that the total trust is
preserved and clipped into [0, 1].

Cost of the computation is O(n³), it should be done only when the topology
or the trust changes.
*/
type Engine struct {
	conf *Config
}

func New(opts ...Option) (*Engine, error) {
	conf, err := LoadConf(opts)
	if err != nil {
		return nil, fmt.Errorf("loading propagation config: %w", err)
	}
	return &Engine{conf: conf}, nil
}

func (e *Engine) Config() Config { return *e.conf }

/*
Propagate returns the propagated trust of the nodes, positions[i] and trust[i]
must be the position and static trust of nodes[i].

Result has the same length as nodes, for empty input empty slice is returned
and when all the trust is zero the result is all zeros. ErrPropagationDivergence
is returned when some intermediate value is not finite.
*/
func (e *Engine) Propagate(ctx context.Context, nodes []*types.Node, positions []types.Position, trust []float64) ([]float64, error) {
	n := len(nodes)
	if len(positions) != n || len(trust) != n {
		return nil, fmt.Errorf("%w: %d nodes, %d positions, %d trust values", ErrDimensionMismatch, n, len(positions), len(trust))
	}
	if n == 0 {
		return []float64{}, nil
	}

	var mass, norm2 float64
	for _, t := range trust {
		mass += t
		norm2 += t * t
	}
	if !isFinite(mass) || !isFinite(norm2) {
		return nil, fmt.Errorf("%w: total trust is not finite", ErrPropagationDivergence)
	}
	if norm2 == 0 {
		return make([]float64, n), nil
	}

	gen, err := e.generator(ctx, positions, trust)
	if err != nil {
		return nil, err
	}

	u, err := evolution(gen, n)
	if err != nil {
		return nil, err
	}

	// state is real so only the left half of the embedding is needed
	norm := math.Sqrt(norm2)
	state := mat.NewVecDense(n, nil)
	for i, t := range trust {
		state.SetVec(i, t/norm)
	}
	var re, im mat.VecDense
	re.MulVec(u.Slice(0, n, 0, n), state)
	im.MulVec(u.Slice(n, 2*n, 0, n), state)

	prob := make([]float64, n)
	var total float64
	for i := range prob {
		r, c := re.AtVec(i), im.AtVec(i)
		prob[i] = r*r + c*c
		total += prob[i]
	}
	if !isFinite(total) || total == 0 {
		return nil, fmt.Errorf("%w: total probability is %v", ErrPropagationDivergence, total)
	}

	for i, p := range prob {
		v := p * mass / total
		if !isFinite(v) {
			return nil, fmt.Errorf("%w: trust of node %d is not finite", ErrPropagationDivergence, i)
		}
		prob[i] = min(max(v, 0), 1)
	}
	return prob, nil
}

/*
generator builds A = H·dt in row-major order. Rows are computed in parallel,
every row is owned by single goroutine and summed in the same order so the
result doesn't depend on the number of workers.
*/
func (e *Engine) generator(ctx context.Context, positions []types.Position, trust []float64) ([]float64, error) {
	n := len(positions)
	a := make([]float64, n*n)
	dt, scale := e.conf.TimeStep, e.conf.DistanceScale

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.conf.Workers)
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := a[i*n : (i+1)*n]
			var degree float64
			for j := range n {
				if i == j {
					continue
				}
				d := math.Hypot(positions[i].X-positions[j].X, positions[i].Y-positions[j].Y)
				w := trust[i] * trust[j] * math.Exp(-d/scale)
				if !isFinite(w) {
					return fmt.Errorf("%w: weight of edge %d-%d is %v", ErrPropagationDivergence, i, j, w)
				}
				degree += w
				row[j] = -w * dt
			}
			row[i] = degree * dt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building weight matrix: %w", err)
	}
	return a, nil
}

/*
evolution computes U = exp(-i·A) for real symmetric A using the real
embedding of the complex matrix -i·A

	M = | 0  A |    exp(M) = | Re U  -Im U |
	    |-A  0 |             | Im U   Re U |

Dense.Exp uses Padé approximation with scaling and squaring.
*/
func evolution(a []float64, n int) (*mat.Dense, error) {
	m := mat.NewDense(2*n, 2*n, nil)
	for i := range n {
		for j := range n {
			v := a[i*n+j]
			m.Set(i, n+j, v)
			m.Set(n+i, j, -v)
		}
	}

	var u mat.Dense
	u.Exp(m)
	for _, v := range u.RawMatrix().Data {
		if !isFinite(v) {
			return nil, fmt.Errorf("%w: matrix exponential is not finite", ErrPropagationDivergence)
		}
	}
	return &u, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
