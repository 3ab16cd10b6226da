/*
Package kvtest contains the behavior tests every keyvaluedb backend must pass.
*/
package kvtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iort-labs/qtrust/keyvaluedb"
)

type trustRecord struct {
	Round uint64    `json:"round"`
	Nodes []string  `json:"nodes"`
	Trust []float64 `json:"trust"`
}

// Run executes the test suite on DBs created by newDB, every test gets a fresh empty DB.
func Run(t *testing.T, newDB func(t *testing.T) keyvaluedb.KeyValueDB) {
	t.Run("point access", func(t *testing.T) { testPointAccess(t, newDB(t)) })
	t.Run("invalid input", func(t *testing.T) { testInvalidInput(t, newDB(t)) })
	t.Run("iterator", func(t *testing.T) { testIterator(t, newDB(t)) })
	t.Run("transaction", func(t *testing.T) { testTransaction(t, newDB(t)) })
}

func requireEmpty(t *testing.T, db keyvaluedb.KeyValueDB, exp bool) {
	t.Helper()
	empty, err := keyvaluedb.IsEmpty(db)
	require.NoError(t, err)
	require.Equal(t, exp, empty)
}

func testPointAccess(t *testing.T, db keyvaluedb.KeyValueDB) {
	requireEmpty(t, db, true)

	rec := trustRecord{Round: 3, Nodes: []string{"node_00001", "node_00002"}, Trust: []float64{0.25, 0.5}}
	key := keyvaluedb.Key("trust_", 3)
	require.NoError(t, db.Write(key, &rec))
	requireEmpty(t, db, false)

	var got trustRecord
	found, err := db.Read(key, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)

	found, err = db.Read(keyvaluedb.Key("trust_", 4), &got)
	require.NoError(t, err)
	require.False(t, found)

	// stored value doesn't fit into the target
	var n uint64
	found, err = db.Read(key, &n)
	require.ErrorContains(t, err, "decoding value of")
	require.True(t, found)

	// overwrite
	rec.Round = 5
	require.NoError(t, db.Write(key, rec))
	_, err = db.Read(key, &got)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.Round)

	require.NoError(t, db.Delete(key))
	requireEmpty(t, db, true)
	require.NoError(t, db.Delete(key), "deleting missing key")
}

func testInvalidInput(t *testing.T, db keyvaluedb.KeyValueDB) {
	var rec *trustRecord
	require.Error(t, db.Write([]byte("trust"), rec))
	require.Error(t, db.Write([]byte("trust"), nil))
	require.Error(t, db.Write(nil, 1))
	require.Error(t, db.Write([]byte{}, 1))
	require.ErrorContains(t, db.Write([]byte("channel"), make(chan int)), "encoding value of")
	require.Error(t, db.Delete(nil))

	found, err := db.Read(nil, &trustRecord{})
	require.Error(t, err)
	require.False(t, found)
	found, err = db.Read([]byte("trust"), rec)
	require.Error(t, err)
	require.False(t, found)
	requireEmpty(t, db, true)
}

func testIterator(t *testing.T, db keyvaluedb.KeyValueDB) {
	it := db.First()
	require.False(t, it.Valid())
	require.Nil(t, it.Key())
	require.ErrorIs(t, it.Value(&trustRecord{}), keyvaluedb.ErrIteratorInvalid)
	require.NoError(t, it.Close())
	require.NoError(t, it.Close(), "second close")

	for _, r := range []uint64{7, 1, 256, 3} {
		require.NoError(t, db.Write(keyvaluedb.Key("round_", r), trustRecord{Round: r}))
	}
	// key with other prefix sorts after the rounds
	require.NoError(t, db.Write([]byte("trust_"), trustRecord{}))

	collect := func(it keyvaluedb.Iterator, step func()) []uint64 {
		defer func() { require.NoError(t, it.Close()) }()
		var rounds []uint64
		for ; it.Valid(); step() {
			r, ok := keyvaluedb.KeyNumber("round_", it.Key())
			if !ok {
				continue
			}
			var rec trustRecord
			require.NoError(t, it.Value(&rec))
			require.Equal(t, r, rec.Round)
			rounds = append(rounds, r)
		}
		return rounds
	}

	it = db.First()
	require.Equal(t, []uint64{1, 3, 7, 256}, collect(it, it.Next))
	it = db.Last()
	require.Equal(t, "trust_", string(it.Key()))
	require.Equal(t, []uint64{256, 7, 3, 1}, collect(it, it.Prev))
	it = db.Find(keyvaluedb.Key("round_", 4))
	require.Equal(t, []uint64{7, 256}, collect(it, it.Next))
	it = db.Find(keyvaluedb.Key("round_", 7))
	require.Equal(t, []uint64{7, 256}, collect(it, it.Next))

	it = db.Find([]byte("x"))
	require.False(t, it.Valid())
	require.NoError(t, it.Close())

	// invalid iterator stays invalid
	it = db.First()
	it.Prev()
	require.False(t, it.Valid())
	it.Next()
	require.False(t, it.Valid())
	require.NoError(t, it.Close())
}

func testTransaction(t *testing.T, db keyvaluedb.KeyValueDB) {
	require.NoError(t, db.Write([]byte("a"), "1"))

	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("b"), "2"))
	require.NoError(t, tx.Delete([]byte("a")))
	var s string
	found, err := tx.Read([]byte("b"), &s)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2", s)
	found, err = tx.Read([]byte("a"), &s)
	require.NoError(t, err)
	require.False(t, found, "deleted inside transaction")
	require.NoError(t, tx.Commit())

	found, err = db.Read([]byte("a"), &s)
	require.NoError(t, err)
	require.False(t, found)
	found, err = db.Read([]byte("b"), &s)
	require.NoError(t, err)
	require.True(t, found)

	// finished transaction can't be used
	_, err = tx.Read([]byte("b"), &s)
	require.ErrorContains(t, err, "already finished")
	require.ErrorContains(t, tx.Write([]byte("b"), "3"), "already finished")
	require.ErrorContains(t, tx.Delete([]byte("b")), "already finished")
	require.ErrorContains(t, tx.Commit(), "already finished")
	require.ErrorContains(t, tx.Rollback(), "already finished")

	tx, err = db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("c"), "3"))
	require.Error(t, tx.Write(nil, "3"))
	require.NoError(t, tx.Rollback())
	found, err = db.Read([]byte("c"), &s)
	require.NoError(t, err)
	require.False(t, found)
}
