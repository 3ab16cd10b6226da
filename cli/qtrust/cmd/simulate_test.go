package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iort-labs/qtrust/keyvaluedb/boltdb"
	"github.com/iort-labs/qtrust/store"
	testlogger "github.com/iort-labs/qtrust/testutils/logger"
)

// execute runs the CLI with given arguments and returns what was written to stdout.
func execute(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	app := New(testlogger.LoggerBuilder(t))
	out := &bytes.Buffer{}
	app.baseCmd.SetOut(out)
	app.baseCmd.SetArgs(args)
	return out, app.Execute(context.Background())
}

func simulate(t *testing.T, args ...string) *SimulationReport {
	t.Helper()
	out, err := execute(t, append([]string{"simulate"}, args...)...)
	require.NoError(t, err)
	report := &SimulationReport{}
	require.NoError(t, json.Unmarshal(out.Bytes(), report))
	return report
}

func Test_Simulate(t *testing.T) {
	t.Run("report", func(t *testing.T) {
		report := simulate(t, "--home", t.TempDir(), "--nodes", "20", "--rounds", "3", "--seed", "5", "--adversarial-ratio", "0.1")
		require.Equal(t, 20, report.NetworkScale)
		require.Equal(t, 2, report.AdversarialCount)
		require.Len(t, report.Rounds, 3)
		successful := 0
		for i, r := range report.Rounds {
			require.EqualValues(t, i+1, r.Round)
			if r.Success {
				successful++
			}
		}
		require.InDelta(t, float64(successful)/3, report.ConsensusSuccessRate, 1e-12)
		require.NotNil(t, report.PerformanceMetrics)
		require.Equal(t, 20, report.PerformanceMetrics.NetworkSize)
		require.Equal(t, 10, report.PerformanceMetrics.SampleSize)
	})

	t.Run("same seed same report", func(t *testing.T) {
		a := simulate(t, "--home", t.TempDir(), "--nodes", "15", "--rounds", "2", "--seed", "9", "--workers", "1")
		b := simulate(t, "--home", t.TempDir(), "--nodes", "15", "--rounds", "2", "--seed", "9", "--workers", "3")
		require.Equal(t, a, b)
	})

	t.Run("rounds are persisted", func(t *testing.T) {
		homeDir := t.TempDir()
		report := simulate(t, "--home", homeDir, "--nodes", "10", "--rounds", "2", "--db", "data/rounds.db")
		require.EqualValues(t, 2, report.Rounds[1].Round)
		// numbering continues from the database
		report = simulate(t, "--home", homeDir, "--nodes", "10", "--rounds", "2", "--db", "data/rounds.db")
		require.EqualValues(t, 3, report.Rounds[0].Round)
		require.EqualValues(t, 4, report.Rounds[1].Round)

		db, err := boltdb.New(filepath.Join(homeDir, "data", "rounds.db"))
		require.NoError(t, err)
		defer db.Close()
		rs, err := store.NewRoundStore(db)
		require.NoError(t, err)
		last, err := rs.LastRound()
		require.NoError(t, err)
		require.Equal(t, report.Rounds[1], last)
	})

	t.Run("flags from environment", func(t *testing.T) {
		t.Setenv("QT_NODES", "12")
		t.Setenv("QT_ADVERSARIAL_RATIO", "0.5")
		report := simulate(t, "--home", t.TempDir(), "--rounds", "1")
		require.Equal(t, 12, report.NetworkScale)
		require.Equal(t, 6, report.AdversarialCount)
	})

	t.Run("flags from config file", func(t *testing.T) {
		homeDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultConfigFile), []byte("nodes=8\nrounds=2\n"), 0600))
		report := simulate(t, "--home", homeDir)
		require.Equal(t, 8, report.NetworkScale)
		require.Len(t, report.Rounds, 2)

		// command line flag overrides the config file
		report = simulate(t, "--home", homeDir, "--nodes", "6")
		require.Equal(t, 6, report.NetworkScale)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := execute(t, "simulate", "--home", t.TempDir(), "--rounds", "-1")
		require.EqualError(t, err, "invalid number of rounds -1")

		_, err = execute(t, "simulate", "--home", t.TempDir(), "--adversarial-ratio", "2")
		require.ErrorContains(t, err, "invalid adversarial ratio 2, must be in [0, 1]")

		_, err = execute(t, "simulate", "--home", t.TempDir(), "--workers", "0")
		require.ErrorContains(t, err, "invalid worker count 0, must be at least 1")
	})
}

func Test_BaseConfiguration(t *testing.T) {
	t.Run("unsupported metrics exporter", func(t *testing.T) {
		_, err := execute(t, "simulate", "--home", t.TempDir(), "--metrics", "foo")
		require.ErrorContains(t, err, `unsupported metrics exporter "foo"`)
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		_, err := execute(t, "simulate", "--home", t.TempDir(), "--nodes", "5", "--rounds", "1", "--metrics", "prometheus", "--metrics-addr", "127.0.0.1:0")
		require.NoError(t, err)

		_, err = execute(t, "simulate", "--home", t.TempDir(), "--metrics-addr", "127.0.0.1:0")
		require.ErrorContains(t, err, "metrics endpoint requires the prometheus exporter")
	})

	t.Run("logger config file not found", func(t *testing.T) {
		_, err := execute(t, "simulate", "--home", t.TempDir(), "--logger-config", "nope.yaml")
		require.ErrorContains(t, err, "initializing logger: reading logger configuration file")
	})

	t.Run("logger config file", func(t *testing.T) {
		homeDir := t.TempDir()
		logFile := filepath.Join(homeDir, "qtrust.log")
		cfg := "defaultLevel: debug\nformat: json\noutputPath: " + logFile + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultLoggerConfigFile), []byte(cfg), 0600))

		// use the real logger factory to see that the file is used
		app := New(nil)
		app.baseCmd.SetOut(&bytes.Buffer{})
		app.baseCmd.SetArgs([]string{"simulate", "--home", homeDir, "--nodes", "5", "--rounds", "1"})
		require.NoError(t, app.Execute(context.Background()))

		b, err := os.ReadFile(logFile)
		require.NoError(t, err)
		require.Contains(t, string(b), `"module":"orchestrator"`)
	})

	t.Run("home from environment", func(t *testing.T) {
		homeDir := t.TempDir()
		t.Setenv("QT_HOME", homeDir)
		app := New(testlogger.LoggerBuilder(t))
		app.baseCmd.SetOut(&bytes.Buffer{})
		app.baseCmd.SetArgs([]string{"simulate", "--nodes", "5", "--rounds", "1", "--db", "rounds.db"})
		require.NoError(t, app.Execute(context.Background()))
		require.Equal(t, homeDir, app.baseConfig.HomeDir)
		require.Equal(t, filepath.Join(homeDir, defaultConfigFile), app.baseConfig.CfgFile)
		require.FileExists(t, filepath.Join(homeDir, "rounds.db"))
	})
}
