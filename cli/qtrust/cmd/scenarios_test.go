package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iort-labs/qtrust/registry"
	"github.com/iort-labs/qtrust/safety"
)

func Test_Scenarios(t *testing.T) {
	t.Run("report", func(t *testing.T) {
		out, err := execute(t, "scenarios", "--home", t.TempDir(), "--nodes", "30", "--seed", "3")
		require.NoError(t, err)
		report := &ScenarioReport{}
		require.NoError(t, json.Unmarshal(out.Bytes(), report))
		require.Equal(t, 3, report.TotalScenarios)
		require.Len(t, report.Scenarios, 3)
		feasible := 0
		for _, s := range safety.DefaultScenarios() {
			a, ok := report.Scenarios[s.Name]
			require.True(t, ok, "missing scenario %s", s.Name)
			require.Equal(t, s.Name, a.Scenario)
			require.GreaterOrEqual(t, a.OverallScore, 0.0)
			require.LessOrEqual(t, a.OverallScore, 1.0)
			if a.Feasible {
				feasible++
			}
		}
		require.Equal(t, feasible, report.FeasibleScenarios)
	})

	t.Run("envelope overrides", func(t *testing.T) {
		homeDir := t.TempDir()
		// generated latency is at least 1 so these nodes violate their envelopes
		envelopes := "node_00000:\n  maxLatency: 0\nnode_00001:\n  maxLatency: 0\n"
		require.NoError(t, os.WriteFile(filepath.Join(homeDir, "envelopes.yaml"), []byte(envelopes), 0600))

		out, err := execute(t, "scenarios", "--home", homeDir, "--nodes", "10", "--envelopes", "envelopes.yaml",
			"--log-level", "warn")
		require.NoError(t, err)
		report := &ScenarioReport{}
		require.NoError(t, json.Unmarshal(out.Bytes(), report))
		require.GreaterOrEqual(t, report.EnvelopeViolations, 2)
	})

	t.Run("envelope of unknown node", func(t *testing.T) {
		homeDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(homeDir, "envelopes.yaml"), []byte("node_99999:\n  minTrust: 0.9\n"), 0600))
		_, err := execute(t, "scenarios", "--home", homeDir, "--nodes", "10", "--envelopes", "envelopes.yaml")
		require.ErrorIs(t, err, registry.ErrUnknownNode)
	})
}
