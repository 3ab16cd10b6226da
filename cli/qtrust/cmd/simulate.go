package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iort-labs/qtrust/orchestrator"
	"github.com/iort-labs/qtrust/types"
)

type (
	simulateConfig struct {
		Base    *baseConfiguration
		Network networkFlags
		Rounds  int
	}

	SimulationReport struct {
		NetworkScale         int                              `json:"networkScale"`
		AdversarialCount     int                              `json:"adversarialCount"`
		PerformanceMetrics   *orchestrator.PerformanceMetrics `json:"performanceMetrics"`
		ConsensusSuccessRate float64                          `json:"consensusSuccessRate"`
		// ConsensusQuality is the mean quality of the successful rounds.
		ConsensusQuality float64              `json:"consensusQuality"`
		Rounds           []*types.RoundResult `json:"rounds"`
	}
)

func newSimulateCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &simulateConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "simulate",
		Short: "Generates a network, propagates trust and runs consensus rounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd, config)
		},
	}
	config.Network.addNetworkFlags(cmd)
	cmd.Flags().IntVar(&config.Rounds, "rounds", 10, "number of consensus rounds to run")
	return cmd
}

func runSimulation(ctx context.Context, cmd *cobra.Command, config *simulateConfig) (rErr error) {
	if config.Rounds < 0 {
		return fmt.Errorf("invalid number of rounds %d", config.Rounds)
	}
	nw, err := buildNetwork(config.Base, &config.Network)
	if err != nil {
		return err
	}
	defer func() { rErr = errors.Join(rErr, nw.close()) }()

	if err := nw.orch.Setup(ctx); err != nil {
		return fmt.Errorf("propagating trust: %w", err)
	}
	pm, err := nw.orch.MeasurePerformance(ctx, config.Network.Seed)
	if err != nil {
		return fmt.Errorf("measuring performance: %w", err)
	}

	report := &SimulationReport{
		NetworkScale:       nw.reg.Len(),
		PerformanceMetrics: pm,
		Rounds:             make([]*types.RoundResult, 0, config.Rounds),
	}
	for _, n := range nw.reg.Snapshot().Nodes() {
		if n.IsAdversarial {
			report.AdversarialCount++
		}
	}

	successful := 0
	for i := range config.Rounds {
		res, err := nw.orch.RunRound(ctx, types.ProposalTemplate{"experiment": types.StringValue(fmt.Sprintf("round_%d", i))})
		if err != nil {
			return err
		}
		report.Rounds = append(report.Rounds, res)
		if res.Success {
			successful++
			report.ConsensusQuality += res.ConsensusQuality
		}
	}
	if config.Rounds > 0 {
		report.ConsensusSuccessRate = float64(successful) / float64(config.Rounds)
	}
	if successful > 0 {
		report.ConsensusQuality /= float64(successful)
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
