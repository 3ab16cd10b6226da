package boltdb

import (
	bolt "go.etcd.io/bbolt"

	"github.com/iort-labs/qtrust/keyvaluedb"
)

/*
cursorIterator keeps a read-only transaction open until Close is called. An
unclosed iterator blocks the remapping of the DB file and so eventually the
writers too.
*/
type cursorIterator struct {
	tx    *bolt.Tx
	c     *bolt.Cursor
	codec keyvaluedb.Codec
	key   []byte
	data  []byte
}

// cursor opens iterator and positions it with the "move" func. When read
// transaction can't be started invalid iterator is returned.
func (db *BoltDB) cursor(move func(c *bolt.Cursor) ([]byte, []byte)) *cursorIterator {
	tx, err := db.db.Begin(false)
	if err != nil {
		return &cursorIterator{}
	}
	it := &cursorIterator{tx: tx, c: tx.Bucket(db.bucket).Cursor(), codec: db.codec}
	it.key, it.data = move(it.c)
	return it
}

func (it *cursorIterator) Next() {
	if it.Valid() {
		it.key, it.data = it.c.Next()
	}
}

func (it *cursorIterator) Prev() {
	if it.Valid() {
		it.key, it.data = it.c.Prev()
	}
}

func (it *cursorIterator) Valid() bool {
	return it.key != nil
}

func (it *cursorIterator) Key() []byte {
	return it.key
}

func (it *cursorIterator) Value(v any) error {
	if !it.Valid() {
		return keyvaluedb.ErrIteratorInvalid
	}
	return it.codec.Decode(it.key, it.data, v)
}

func (it *cursorIterator) Close() error {
	it.key, it.data, it.c = nil, nil, nil
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx = nil
	return tx.Rollback()
}
