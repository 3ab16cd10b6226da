package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iort-labs/qtrust/safety"
	"github.com/iort-labs/qtrust/types"
)

type (
	scenariosConfig struct {
		Base    *baseConfiguration
		Network networkFlags
	}

	ScenarioReport struct {
		Scenarios         map[string]safety.Assessment `json:"scenarios"`
		FeasibleScenarios int                          `json:"feasibleScenarios"`
		TotalScenarios    int                          `json:"totalScenarios"`
		// EnvelopeViolations is the number of nodes out of their safety envelope.
		EnvelopeViolations int `json:"envelopeViolations"`
	}
)

func newScenariosCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &scenariosConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "scenarios",
		Short: "Evaluates feasibility of the deployment scenarios on a generated network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), cmd, config)
		},
	}
	config.Network.addNetworkFlags(cmd)
	return cmd
}

func runScenarios(ctx context.Context, cmd *cobra.Command, config *scenariosConfig) (rErr error) {
	nw, err := buildNetwork(config.Base, &config.Network)
	if err != nil {
		return err
	}
	defer func() { rErr = errors.Join(rErr, nw.close()) }()

	if err := nw.orch.Setup(ctx); err != nil {
		return fmt.Errorf("propagating trust: %w", err)
	}
	nodes := nw.reg.Snapshot().Nodes()

	scenarios := safety.DefaultScenarios()
	report := &ScenarioReport{
		Scenarios:          make(map[string]safety.Assessment, len(scenarios)),
		TotalScenarios:     len(scenarios),
		EnvelopeViolations: len(safety.VerifyAll(nodes)),
	}
	for _, s := range scenarios {
		res, err := nw.orch.RunRound(ctx, types.ProposalTemplate{"scenario": types.StringValue(s.Name)})
		if err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		a := s.Evaluate(nodes, res)
		report.Scenarios[s.Name] = a
		if a.Feasible {
			report.FeasibleScenarios++
		}
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
