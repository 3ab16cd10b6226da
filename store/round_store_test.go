package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iort-labs/qtrust/keyvaluedb"
	"github.com/iort-labs/qtrust/keyvaluedb/boltdb"
	"github.com/iort-labs/qtrust/keyvaluedb/memorydb"
	"github.com/iort-labs/qtrust/types"
)

func backends(t *testing.T) map[string]func(t *testing.T) keyvaluedb.KeyValueDB {
	return map[string]func(t *testing.T) keyvaluedb.KeyValueDB{
		"memorydb": func(t *testing.T) keyvaluedb.KeyValueDB {
			db, err := memorydb.New()
			require.NoError(t, err)
			return db
		},
		"boltdb": func(t *testing.T) keyvaluedb.KeyValueDB {
			db, err := boltdb.New(filepath.Join(t.TempDir(), "rounds.db"))
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, db.Close()) })
			return db
		},
	}
}

func roundResult(round uint64, success bool) *types.RoundResult {
	return &types.RoundResult{
		Round:            round,
		RegistryVersion:  round + 10,
		Success:          success,
		ConsensusResult:  map[string]types.Value{"decision": types.StringValue("go"), "speed": types.NumberValue(2.5), "armed": types.BoolValue(false)},
		ParticipantCount: 7,
		ConsensusQuality: 0.625,
		AvgTrust:         0.75,
	}
}

func TestNewRoundStore(t *testing.T) {
	s, err := NewRoundStore(nil)
	require.EqualError(t, err, "storage is nil")
	require.Nil(t, s)

	db, err := memorydb.New()
	require.NoError(t, err)
	s, err = NewRoundStore(db)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestRoundStore_Rounds(t *testing.T) {
	for name, newDB := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s, err := NewRoundStore(newDB(t))
			require.NoError(t, err)

			// empty store
			res, err := s.LoadRound(1)
			require.NoError(t, err)
			require.Nil(t, res)
			res, err = s.LastRound()
			require.NoError(t, err)
			require.Nil(t, res)
			rounds, err := s.Rounds(0)
			require.NoError(t, err)
			require.Empty(t, rounds)

			require.EqualError(t, s.SaveRound(nil), "round result is nil")

			for r := uint64(1); r <= 3; r++ {
				require.NoError(t, s.SaveRound(roundResult(r, r != 2)))
			}
			res, err = s.LoadRound(2)
			require.NoError(t, err)
			require.Equal(t, roundResult(2, false), res)

			res, err = s.LastRound()
			require.NoError(t, err)
			require.Equal(t, roundResult(3, true), res)

			// saving older round doesn't move last round pointer
			failed := &types.RoundResult{Round: 1, Reason: types.ReasonInsufficientQuorum}
			require.NoError(t, s.SaveRound(failed))
			res, err = s.LastRound()
			require.NoError(t, err)
			require.EqualValues(t, 3, res.Round)
			res, err = s.LoadRound(1)
			require.NoError(t, err)
			require.Equal(t, failed, res)

			// trust snapshots do not show up in rounds listing
			require.NoError(t, s.SaveTrustSnapshot(1, nil))
			rounds, err = s.Rounds(2)
			require.NoError(t, err)
			require.Len(t, rounds, 2)
			require.EqualValues(t, 2, rounds[0].Round)
			require.EqualValues(t, 3, rounds[1].Round)
		})
	}
}

func TestRoundStore_TrustSnapshot(t *testing.T) {
	nodes := make([]*types.Node, 4)
	for i := range nodes {
		nodes[i] = types.NewNode(fmt.Sprintf("node_%05d", i), types.Cloud, 3000, 40, types.Position{X: float64(i)}, 0.6+float64(i)*0.1)
		nodes[i].QuantumTrustScore = 0.123456789 * float64(i)
		nodes[i].Profile.AnomalyScore = 0.01 * float64(i)
	}

	for name, newDB := range backends(t) {
		t.Run(name, func(t *testing.T) {
			db := newDB(t)
			s, err := NewRoundStore(db)
			require.NoError(t, err)

			snap, err := s.LoadTrustSnapshot(5)
			require.NoError(t, err)
			require.Nil(t, snap)

			require.NoError(t, s.SaveTrustSnapshot(5, nodes))
			snap, err = s.LoadTrustSnapshot(5)
			require.NoError(t, err)
			require.NotNil(t, snap)
			require.EqualValues(t, 5, snap.TopologyVersion)
			require.Len(t, snap.Records, len(nodes))
			for i, rec := range snap.Records {
				require.Equal(t, nodes[i].ID, rec.NodeID)
				require.Equal(t, nodes[i].QuantumTrustScore, rec.QuantumTrustScore)
				require.Equal(t, nodes[i].TrustScore, rec.TrustScore)
				require.Equal(t, nodes[i].Profile.AnomalyScore, rec.AnomalyScore)
				require.EqualValues(t, 5, rec.TopologyVersion)
				require.Len(t, rec.Shares, shareCount)
				require.Len(t, rec.Hash, 128)
			}

			// tamper with the stored data
			snap.Records[2].QuantumTrustScore = 1
			require.NoError(t, db.Write(keyvaluedb.Key(trustPrefix, 5), snap))
			_, err = s.LoadTrustSnapshot(5)
			require.ErrorIs(t, err, ErrCorruptRecord)
			require.ErrorContains(t, err, "record 2 of trust snapshot 5")
		})
	}
}

func TestTrustRecord_Verify(t *testing.T) {
	n := types.NewNode("node_00001", types.Robot, 300, 4, types.Position{}, 0.8)
	rec, err := newTrustRecord(3, n)
	require.NoError(t, err)
	require.NoError(t, rec.Verify())

	// losing one share is fine
	rec.Shares = rec.Shares[1:]
	require.NoError(t, rec.Verify())

	// corrupting another one is not
	rec.Shares[0].Pattern[1] = 2
	require.ErrorIs(t, rec.Verify(), ErrCorruptRecord)

	rec, err = newTrustRecord(3, n)
	require.NoError(t, err)
	rec.Hash = "ab"
	require.ErrorIs(t, rec.Verify(), ErrCorruptRecord)
}

func TestRoundStore_WriteError(t *testing.T) {
	db, err := memorydb.New()
	require.NoError(t, err)
	s, err := NewRoundStore(db)
	require.NoError(t, err)

	expErr := errors.New("disk full")
	db.MockWriteError(expErr)
	require.ErrorIs(t, s.SaveRound(roundResult(1, true)), expErr)
	require.ErrorIs(t, s.SaveTrustSnapshot(1, nil), expErr)
	db.MockWriteError(nil)

	res, err := s.LastRound()
	require.NoError(t, err)
	require.Nil(t, res)
}
