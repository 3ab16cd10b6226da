/*
Package orchestrator drives trust propagation and consensus rounds over the
node registry.
*/
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/iort-labs/qtrust/consensus"
	"github.com/iort-labs/qtrust/logger"
	"github.com/iort-labs/qtrust/observability"
	"github.com/iort-labs/qtrust/registry"
	"github.com/iort-labs/qtrust/types"
)

type (
	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Tracer(name string, opts ...trace.TracerOption) trace.Tracer
		Logger() *slog.Logger
	}

	Propagator interface {
		Propagate(ctx context.Context, nodes []*types.Node, positions []types.Position, trust []float64) ([]float64, error)
	}

	/*
	Orchestrator owns the registry: it is the single writer of the propagated
	trust and runs consensus rounds against immutable snapshots of the registry.

	Propagation and rounds are serialized, round never sees registry state
	changing under it.
	*/
	Orchestrator struct {
		conf   *Config
		reg    *registry.Registry
		engine Propagator
		cm     *consensus.Manager

		mu    sync.Mutex
		round uint64 // number of the last round

		log    *slog.Logger
		tracer trace.Tracer

		roundCnt metric.Int64Counter
		quality  metric.Float64Histogram
		propCnt  metric.Int64Counter
		propDur  metric.Float64Histogram
	}
)

func New(reg *registry.Registry, engine Propagator, cm *consensus.Manager, observe Observability, opts ...Option) (*Orchestrator, error) {
	if reg == nil {
		return nil, errors.New("node registry is nil")
	}
	if engine == nil {
		return nil, errors.New("propagation engine is nil")
	}
	if cm == nil {
		return nil, errors.New("consensus manager is nil")
	}
	conf, err := LoadConf(opts)
	if err != nil {
		return nil, fmt.Errorf("loading orchestrator config: %w", err)
	}

	o := &Orchestrator{
		conf:   conf,
		reg:    reg,
		engine: engine,
		cm:     cm,
		log:    observe.Logger().With(logger.Module("orchestrator")),
		tracer: observe.Tracer("orchestrator"),
	}
	if err := o.initMetrics(observe); err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	if conf.store != nil {
		last, err := conf.store.LastRound()
		if err != nil {
			return nil, fmt.Errorf("loading last round: %w", err)
		}
		if last != nil {
			o.round = last.Round
		}
	}
	return o, nil
}

func (o *Orchestrator) initMetrics(observe Observability) (err error) {
	m := observe.Meter("orchestrator")

	if o.roundCnt, err = m.Int64Counter("round", metric.WithDescription("Number of consensus rounds, status attribute is the outcome of the round")); err != nil {
		return fmt.Errorf("creating round counter: %w", err)
	}
	if o.quality, err = m.Float64Histogram("round.quality", metric.WithDescription("Consensus quality of the attempted rounds")); err != nil {
		return fmt.Errorf("creating round quality histogram: %w", err)
	}
	if o.propCnt, err = m.Int64Counter("propagation", metric.WithDescription("Number of trust propagations")); err != nil {
		return fmt.Errorf("creating propagation counter: %w", err)
	}
	if o.propDur, err = m.Float64Histogram("propagation.duration",
		metric.WithDescription("How long it took to propagate trust"),
		metric.WithUnit("s")); err != nil {
		return fmt.Errorf("creating propagation duration histogram: %w", err)
	}
	return nil
}

func (o *Orchestrator) Config() Config { return *o.conf }

// Round returns the number of the last round run (or loaded from the store).
func (o *Orchestrator) Round() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.round
}

// Setup propagates trust unless the registry already has it for its current topology.
func (o *Orchestrator) Setup(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if snap := o.reg.Snapshot(); !snap.NeedsPropagation() {
		return nil
	}
	_, err := o.propagate(ctx)
	return err
}

// Propagate recomputes the quantum trust of all the nodes in the registry.
func (o *Orchestrator) Propagate(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.propagate(ctx)
	return err
}

/*
propagate computes trust from a snapshot and writes it back to the registry,
returns snapshot of the registry after the write. Caller must hold the lock.
*/
func (o *Orchestrator) propagate(ctx context.Context) (_ *registry.Snapshot, rErr error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Propagate")
	defer func(start time.Time) {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		o.propCnt.Add(ctx, 1, metric.WithAttributes(observability.ErrStatus(rErr)))
		o.propDur.Record(ctx, time.Since(start).Seconds())
		span.End()
	}(time.Now())

	snap := o.reg.Snapshot()
	span.SetAttributes(observability.NodeCount(snap.Len()))
	trust, err := o.engine.Propagate(ctx, snap.Nodes(), snap.Positions(), snap.Trust())
	if err != nil {
		return nil, fmt.Errorf("propagating trust: %w", err)
	}
	if err := o.reg.ApplyPropagatedTrust(snap.TopologyVersion, trust); err != nil {
		return nil, fmt.Errorf("storing propagated trust: %w", err)
	}

	snap = o.reg.Snapshot()
	if o.conf.store != nil {
		if err := o.conf.store.SaveTrustSnapshot(snap.TopologyVersion, snap.Nodes()); err != nil {
			return nil, fmt.Errorf("persisting trust snapshot: %w", err)
		}
	}
	o.log.DebugContext(ctx, fmt.Sprintf("propagated trust of %d nodes", snap.Len()), logger.Version(snap.Version))
	return snap, nil
}

/*
snapshot returns registry snapshot with up to date quantum trust, propagating
when the topology has changed since the last propagation.
*/
func (o *Orchestrator) snapshot(ctx context.Context) (*registry.Snapshot, error) {
	snap := o.reg.Snapshot()
	if !snap.NeedsPropagation() {
		return snap, nil
	}
	o.log.DebugContext(ctx, fmt.Sprintf("topology version %d is ahead of propagated version %d", snap.TopologyVersion, snap.PropagatedVersion))
	return o.propagate(ctx)
}

/*
RunRound runs one consensus round: every node with quantum trust above the
participation threshold proposes a copy of the template and the proposals
are settled by trust weighted vote.

Round which could not be attempted or didn't reach the quality bar is
reported as unsuccessful result, error is returned only when the round
couldn't be run (propagation failure, invalid template, persistence error).
*/
func (o *Orchestrator) RunRound(ctx context.Context, template types.ProposalTemplate) (_ *types.RoundResult, rErr error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	round := o.round + 1
	ctx, span := o.tracer.Start(ctx, "Orchestrator.RunRound", trace.WithAttributes(observability.Round(round)))
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	snap, err := o.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cm.Config().Timeout)
	defer cancel()
	res, err := o.evaluateRound(ctx, snap, template)
	if err != nil {
		o.roundCnt.Add(ctx, 1, metric.WithAttributes(observability.ErrStatus(err)))
		return nil, fmt.Errorf("round %d: %w", round, err)
	}
	res.Round = round
	res.RegistryVersion = snap.Version

	if o.conf.store != nil {
		if err := o.conf.store.SaveRound(res); err != nil {
			return nil, fmt.Errorf("persisting round %d: %w", round, err)
		}
	}
	o.round = round

	status := "success"
	if !res.Success {
		status = res.Reason
	}
	span.SetAttributes(observability.Status(status), observability.NodeCount(res.ParticipantCount))
	o.roundCnt.Add(ctx, 1, metric.WithAttributes(observability.Status(status)))
	if res.ParticipantCount > 0 {
		o.quality.Record(ctx, res.ConsensusQuality)
	}
	o.log.InfoContext(ctx, fmt.Sprintf("round %s: %d participants, quality %.3f", status, res.ParticipantCount, res.ConsensusQuality), logger.Round(round))
	return res, nil
}

func (o *Orchestrator) evaluateRound(ctx context.Context, snap *registry.Snapshot, template types.ProposalTemplate) (*types.RoundResult, error) {
	eligible := snap.Filter(func(n *types.Node) bool {
		return n.QuantumTrustScore > o.conf.ParticipationThreshold
	})
	if len(eligible) < o.conf.MinQuorum {
		return &types.RoundResult{Reason: types.ReasonInsufficientQuorum}, nil
	}

	proposals := make([]types.Proposal, len(eligible))
	var total float64
	for i, n := range eligible {
		proposals[i] = template.NewProposal(n.ID, n.QuantumTrustScore)
		total += n.QuantumTrustScore
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := o.cm.EntanglementConsensus(eligible, proposals)
	if err != nil {
		return nil, fmt.Errorf("entanglement consensus: %w", err)
	}

	avgTrust := total / float64(len(eligible))
	res := &types.RoundResult{
		ConsensusResult:  result,
		ParticipantCount: len(eligible),
		ConsensusQuality: avgTrust * float64(len(eligible)) / float64(snap.Len()),
		AvgTrust:         avgTrust,
	}
	res.Success = res.ConsensusQuality > o.conf.SuccessQuality
	if !res.Success {
		res.Reason = types.ReasonLowQuality
	}
	return res, nil
}

/*
Coordinate runs the procedure configured for the consensus manager (hybrid by
default) over all the nodes of the registry, merging "states" when the
threshold check passes.
*/
func (o *Orchestrator) Coordinate(ctx context.Context, states []*types.LocalState) (_ consensus.Result, rErr error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Coordinate",
		trace.WithAttributes(observability.ConsensusType(o.cm.Config().Type.String())))
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	snap, err := o.snapshot(ctx)
	if err != nil {
		return consensus.Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.cm.Config().Timeout)
	defer cancel()
	res := o.cm.Run(snap.Nodes(), states)
	if err := ctx.Err(); err != nil {
		return consensus.Result{}, fmt.Errorf("coordinating state: %w", err)
	}
	span.SetAttributes(observability.NodeCount(snap.Len()), observability.Status(strconv.FormatBool(res.Success)))
	return res, nil
}
