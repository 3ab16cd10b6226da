/*
Package memorydb is the in-process keyvaluedb backend used by tests and by
short living simulations which do not need the results to survive a restart.
*/
package memorydb

import (
	"fmt"
	"sync"

	"github.com/iort-labs/qtrust/keyvaluedb"
)

type (
	MemoryDB struct {
		mu       sync.RWMutex
		entries  map[string][]byte
		codec    keyvaluedb.Codec
		writeErr error
		// txActive is held by the open read-write transaction
		txActive sync.Mutex
	}

	Option func(*MemoryDB)
)

// WithCodec replaces the default JSON encoding of the values.
func WithCodec(c keyvaluedb.Codec) Option {
	return func(db *MemoryDB) {
		db.codec = c
	}
}

func New(opts ...Option) (*MemoryDB, error) {
	db := &MemoryDB{
		entries: make(map[string][]byte),
		codec:   keyvaluedb.JSON,
	}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.codec.IsValid(); err != nil {
		return nil, fmt.Errorf("memory db: %w", err)
	}
	return db, nil
}

// Empty returns true when no keys are stored.
func (db *MemoryDB) Empty() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.entries) == 0
}

func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return false, err
	}
	db.mu.RLock()
	data, ok := db.entries[string(key)]
	db.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, db.codec.Decode(key, data, value)
}

func (db *MemoryDB) Write(key []byte, value any) error {
	data, err := db.codec.Encode(key, value)
	if err != nil {
		return err
	}
	return db.apply(map[string][]byte{string(key): data})
}

func (db *MemoryDB) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	return db.apply(map[string][]byte{string(key): nil})
}

/*
apply stores all the changes under single lock, nil value means the key is to
be deleted.
*/
func (db *MemoryDB) apply(changes map[string][]byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.writeErr != nil {
		return db.writeErr
	}
	for k, v := range changes {
		if v == nil {
			delete(db.entries, k)
		} else {
			db.entries[k] = v
		}
	}
	return nil
}

func (db *MemoryDB) First() keyvaluedb.Iterator {
	return db.snapshot().first()
}

func (db *MemoryDB) Last() keyvaluedb.Iterator {
	return db.snapshot().last()
}

func (db *MemoryDB) Find(key []byte) keyvaluedb.Iterator {
	return db.snapshot().seek(key)
}

func (db *MemoryDB) StartTx() (keyvaluedb.DBTransaction, error) {
	db.txActive.Lock()
	return &memTx{db: db, changes: make(map[string][]byte)}, nil
}

/*
MockWriteError makes all subsequent writes (including transaction commits)
fail with err, use nil to reset. Meant for testing the error paths of stores.
*/
func (db *MemoryDB) MockWriteError(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.writeErr = err
}

func (db *MemoryDB) mockedWriteErr() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writeErr
}
