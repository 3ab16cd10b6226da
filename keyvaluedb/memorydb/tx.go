package memorydb

import (
	"errors"

	"github.com/iort-labs/qtrust/keyvaluedb"
)

var errTxClosed = errors.New("memory db transaction is already finished")

/*
memTx collects the changes and applies them to the DB on Commit. Reads see
the pending changes of the transaction on top of the committed entries.
*/
type memTx struct {
	db *MemoryDB
	// nil value marks deleted key
	changes map[string][]byte
}

func (tx *memTx) Read(key []byte, value any) (bool, error) {
	if tx.changes == nil {
		return false, errTxClosed
	}
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return false, err
	}
	data, ok := tx.changes[string(key)]
	if !ok {
		return tx.db.Read(key, value)
	}
	if data == nil {
		return false, nil
	}
	return true, tx.db.codec.Decode(key, data, value)
}

func (tx *memTx) Write(key []byte, value any) error {
	if tx.changes == nil {
		return errTxClosed
	}
	data, err := tx.db.codec.Encode(key, value)
	if err != nil {
		return err
	}
	if err := tx.db.mockedWriteErr(); err != nil {
		return err
	}
	tx.changes[string(key)] = data
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	if tx.changes == nil {
		return errTxClosed
	}
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	tx.changes[string(key)] = nil
	return nil
}

func (tx *memTx) Commit() error {
	if tx.changes == nil {
		return errTxClosed
	}
	defer tx.finish()
	return tx.db.apply(tx.changes)
}

func (tx *memTx) Rollback() error {
	if tx.changes == nil {
		return errTxClosed
	}
	tx.finish()
	return nil
}

func (tx *memTx) finish() {
	tx.changes = nil
	tx.db.txActive.Unlock()
}
