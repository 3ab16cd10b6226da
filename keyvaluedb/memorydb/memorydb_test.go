package memorydb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iort-labs/qtrust/keyvaluedb"
	"github.com/iort-labs/qtrust/keyvaluedb/kvtest"
)

func TestMemoryDB(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) keyvaluedb.KeyValueDB {
		db, err := New()
		require.NoError(t, err)
		return db
	})
}

func TestMemoryDB_CBOR(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) keyvaluedb.KeyValueDB {
		db, err := New(WithCodec(keyvaluedb.CBOR))
		require.NoError(t, err)
		return db
	})
}

func TestNew_InvalidCodec(t *testing.T) {
	db, err := New(WithCodec(keyvaluedb.Codec{Name: "half", Marshal: keyvaluedb.JSON.Marshal}))
	require.ErrorContains(t, err, "codec must have both marshal and unmarshal func")
	require.Nil(t, db)
}

func TestMemoryDB_Empty(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	require.True(t, db.Empty())
	require.NoError(t, db.Write([]byte("k"), 1))
	require.False(t, db.Empty())

	empty, err := keyvaluedb.IsEmpty(nil)
	require.EqualError(t, err, "db is nil")
	require.True(t, empty)
}

func TestMemoryDB_MockWriteError(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	expErr := errors.New("disk full")
	db.MockWriteError(expErr)

	require.ErrorIs(t, db.Write([]byte("a"), 1), expErr)
	require.ErrorIs(t, db.Delete([]byte("a")), expErr)
	tx, err := db.StartTx()
	require.NoError(t, err)
	require.ErrorIs(t, tx.Write([]byte("a"), 1), expErr)
	require.NoError(t, tx.Delete([]byte("a")))
	require.ErrorIs(t, tx.Commit(), expErr)

	db.MockWriteError(nil)
	require.NoError(t, db.Write([]byte("a"), 1))
	require.False(t, db.Empty())
}

func TestMemoryDB_IteratorIsSnapshot(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	require.NoError(t, db.Write([]byte("a"), 1))
	require.NoError(t, db.Write([]byte("c"), 3))

	it := db.First()
	defer it.Close()
	require.NoError(t, db.Write([]byte("b"), 2))
	require.NoError(t, db.Delete([]byte("c")))

	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"a", "c"}, keys)
}
