package boltdb

import (
	"errors"

	bolt "go.etcd.io/bbolt"
)

var errTxClosed = errors.New("bolt transaction is already finished")

// boltTx wraps read-write Bolt transaction. Bolt allows only one at a time,
// StartTx blocks until the previous one is finished.
type boltTx struct {
	tx *bolt.Tx
	b  bucket
}

func (t *boltTx) Read(key []byte, v any) (bool, error) {
	if t.tx == nil {
		return false, errTxClosed
	}
	return t.b.read(key, v)
}

func (t *boltTx) Write(key []byte, v any) error {
	if t.tx == nil {
		return errTxClosed
	}
	return t.b.write(key, v)
}

func (t *boltTx) Delete(key []byte) error {
	if t.tx == nil {
		return errTxClosed
	}
	return t.b.delete(key)
}

func (t *boltTx) Commit() error {
	return t.finish((*bolt.Tx).Commit)
}

func (t *boltTx) Rollback() error {
	return t.finish((*bolt.Tx).Rollback)
}

func (t *boltTx) finish(f func(*bolt.Tx) error) error {
	if t.tx == nil {
		return errTxClosed
	}
	tx := t.tx
	t.tx, t.b = nil, bucket{}
	return f(tx)
}
