package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iort-labs/qtrust/consensus"
	"github.com/iort-labs/qtrust/types"
)

type coordinateConfig struct {
	Base          *baseConfiguration
	Network       networkFlags
	ConsensusType string
	StatesFile    string
}

func newCoordinateCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &coordinateConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "coordinate",
		Short: "Runs the selected consensus procedure over the generated network and merges the local states",
		Long: `Runs the selected consensus procedure over the generated network.

Local states are read from JSON file holding an array of {"nodeId", "entries"}
objects, the merged state is part of the printed result when the procedure
succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinate(cmd.Context(), cmd, config)
		},
	}
	config.Network.addNetworkFlags(cmd)
	cmd.Flags().StringVar(&config.ConsensusType, "consensus", consensus.Hybrid.String(), "consensus procedure, one of: pbft, crdt, hybrid")
	cmd.Flags().StringVar(&config.StatesFile, "states", "", "JSON file with the local states of the nodes, relative to $QT_HOME unless absolute")
	return cmd
}

func runCoordinate(ctx context.Context, cmd *cobra.Command, config *coordinateConfig) (rErr error) {
	ct, err := consensus.ParseType(config.ConsensusType)
	if err != nil {
		return err
	}
	var states []*types.LocalState
	if config.StatesFile != "" {
		if states, err = loadStates(config.Base.pathInHome(config.StatesFile)); err != nil {
			return err
		}
	}

	nw, err := buildNetwork(config.Base, &config.Network, consensus.WithType(ct))
	if err != nil {
		return err
	}
	defer func() { rErr = errors.Join(rErr, nw.close()) }()

	if err := nw.orch.Setup(ctx); err != nil {
		return fmt.Errorf("propagating trust: %w", err)
	}
	res, err := nw.orch.Coordinate(ctx, states)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func loadStates(fileName string) ([]*types.LocalState, error) {
	b, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("reading local states file: %w", err)
	}
	var states []*types.LocalState
	if err := json.Unmarshal(b, &states); err != nil {
		return nil, fmt.Errorf("decoding local states (%s): %w", fileName, err)
	}
	for i, s := range states {
		if s == nil || s.NodeID == "" {
			return nil, fmt.Errorf("local state %d has no node id", i)
		}
	}
	return states, nil
}
