package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/iort-labs/qtrust/consensus"
	"github.com/iort-labs/qtrust/generator"
	"github.com/iort-labs/qtrust/keyvaluedb/boltdb"
	"github.com/iort-labs/qtrust/orchestrator"
	"github.com/iort-labs/qtrust/propagation"
	"github.com/iort-labs/qtrust/registry"
	"github.com/iort-labs/qtrust/safety"
	"github.com/iort-labs/qtrust/store"
)

type (
	// networkFlags are the flags shared by the commands which generate a network.
	networkFlags struct {
		Nodes            int
		Seed             uint64
		AdversarialRatio float64
		Workers          int
		EnvelopesFile    string
		DBFile           string
	}

	network struct {
		reg   *registry.Registry
		orch  *orchestrator.Orchestrator
		store *store.RoundStore
		close func() error
	}
)

const (
	defaultNodeCount = 300

	flagNameNodes            = "nodes"
	flagNameSeed             = "seed"
	flagNameAdversarialRatio = "adversarial-ratio"
	flagNameWorkers          = "workers"
	flagNameEnvelopes        = "envelopes"
	flagNameDB               = "db"
)

func (f *networkFlags) addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Nodes, flagNameNodes, defaultNodeCount, "number of nodes to generate")
	cmd.Flags().Uint64Var(&f.Seed, flagNameSeed, 1, "seed of the network generator")
	cmd.Flags().Float64Var(&f.AdversarialRatio, flagNameAdversarialRatio, 0, "share of the nodes flagged as adversarial")
	cmd.Flags().IntVar(&f.Workers, flagNameWorkers, runtime.GOMAXPROCS(0), "number of workers used by trust propagation")
	cmd.Flags().StringVar(&f.EnvelopesFile, flagNameEnvelopes, "", "YAML file with safety envelope overrides, relative to $QT_HOME unless absolute")
	cmd.Flags().StringVar(&f.DBFile, flagNameDB, "", "bolt database file for round results, relative to $QT_HOME unless absolute. Results are not persisted when not set.")
}

/*
buildNetwork generates the nodes, applies safety envelope overrides and
wires the orchestrator. Trust is not propagated yet.
*/
func buildNetwork(config *baseConfiguration, flags *networkFlags, cmOpts ...consensus.Option) (_ *network, rErr error) {
	nodes, err := generator.Generate(flags.Nodes,
		generator.WithSeed(flags.Seed),
		generator.WithAdversarialRatio(flags.AdversarialRatio))
	if err != nil {
		return nil, fmt.Errorf("generating network: %w", err)
	}
	reg, err := registry.New(nodes...)
	if err != nil {
		return nil, fmt.Errorf("creating node registry: %w", err)
	}

	if flags.EnvelopesFile != "" {
		overrides, err := safety.LoadEnvelopeOverrides(config.pathInHome(flags.EnvelopesFile))
		if err != nil {
			return nil, err
		}
		if err := safety.ApplyEnvelopeOverrides(reg, overrides); err != nil {
			return nil, err
		}
	}

	engine, err := propagation.New(propagation.WithWorkers(flags.Workers))
	if err != nil {
		return nil, err
	}
	cm, err := consensus.NewManager(config.observe.Logger(), cmOpts...)
	if err != nil {
		return nil, err
	}

	nw := &network{reg: reg, close: func() error { return nil }}
	var opts []orchestrator.Option
	if flags.DBFile != "" {
		dbFile := config.pathInHome(flags.DBFile)
		if err := os.MkdirAll(filepath.Dir(dbFile), 0700); err != nil {
			return nil, fmt.Errorf("creating directory for database: %w", err)
		}
		db, err := boltdb.New(dbFile)
		if err != nil {
			return nil, err
		}
		defer func() {
			if rErr != nil {
				rErr = errors.Join(rErr, db.Close())
			}
		}()
		if nw.store, err = store.NewRoundStore(db); err != nil {
			return nil, err
		}
		nw.close = db.Close
		opts = append(opts, orchestrator.WithRoundStore(nw.store))
	}

	if nw.orch, err = orchestrator.New(reg, engine, cm, config.observe, opts...); err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return nw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
