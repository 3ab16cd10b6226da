package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iort-labs/qtrust/registry"
	"github.com/iort-labs/qtrust/types"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "envelopes.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(content), 0600))
	return fn
}

func TestLoadEnvelopeOverrides(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		res, err := LoadEnvelopeOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorContains(t, err, "reading safety envelope file:")
		require.Nil(t, res)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		res, err := LoadEnvelopeOverrides(writeFile(t, "node_1: [1, 2"))
		require.ErrorContains(t, err, "decoding safety envelopes")
		require.Nil(t, res)
	})

	t.Run("success", func(t *testing.T) {
		res, err := LoadEnvelopeOverrides(writeFile(t, "node_1:\n  maxLatency: 10\n  minTrust: 0.9\nnode_2:\n  entanglementRequired: 0.1\n"))
		require.NoError(t, err)
		require.Len(t, res, 2)

		env := res["node_1"].Apply(types.DefaultSafetyEnvelope())
		exp := types.DefaultSafetyEnvelope()
		exp.MaxLatency = 10
		exp.MinTrust = 0.9
		require.Equal(t, exp, env)

		env = res["node_2"].Apply(types.DefaultSafetyEnvelope())
		exp = types.DefaultSafetyEnvelope()
		exp.EntanglementRequired = 0.1
		require.Equal(t, exp, env)
	})
}

func TestApplyEnvelopeOverrides(t *testing.T) {
	reg, err := registry.New(
		types.NewNode("node_1", types.Robot, 500, 15, types.Position{}, 0.9),
		types.NewNode("node_2", types.Robot, 500, 15, types.Position{}, 0.9),
	)
	require.NoError(t, err)

	maxLatency := 10.0
	require.NoError(t, ApplyEnvelopeOverrides(reg, map[string]EnvelopeOverride{"node_1": {MaxLatency: &maxLatency}}))

	n, err := reg.Node("node_1")
	require.NoError(t, err)
	require.EqualValues(t, 10, n.Envelope.MaxLatency)
	require.EqualValues(t, types.DefaultSafetyEnvelope().MinTrust, n.Envelope.MinTrust)
	// latency 15 now violates the envelope
	require.Len(t, Verify(n), 1)

	n, err = reg.Node("node_2")
	require.NoError(t, err)
	require.Equal(t, types.DefaultSafetyEnvelope(), n.Envelope)

	err = ApplyEnvelopeOverrides(reg, map[string]EnvelopeOverride{"node_9": {MaxLatency: &maxLatency}})
	require.ErrorIs(t, err, registry.ErrUnknownNode)
}
