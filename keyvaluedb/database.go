/*
Package keyvaluedb defines the storage contract the qtrust stores are written
against. Keys are raw bytes ordered binary-alphabetically, values are Go values
encoded with the Codec of the backend.

Backends live in sub-packages: memorydb keeps everything in process memory and
boltdb persists into a single Bolt file.
*/
package keyvaluedb

import "errors"

type (
	Reader interface {
		// Read decodes the value stored under key into value. Returns false
		// (and no error) when the key does not exist.
		Read(key []byte, value any) (bool, error)
	}

	Writer interface {
		Write(key []byte, value any) error
		// Delete of missing key is not an error.
		Delete(key []byte) error
	}

	// ReadWriter is the point access part of both the DB and the transaction.
	ReadWriter interface {
		Reader
		Writer
	}

	/*
	DBTransaction groups writes so that they are applied all or nothing.
	Every transaction must be finished with either Commit or Rollback, a
	finished transaction returns error from all methods.
	*/
	DBTransaction interface {
		ReadWriter
		Commit() error
		Rollback() error
	}

	/*
	Iterator walks the keys in binary-alphabetical order. It becomes invalid
	when moved past either end and stays invalid after that.

	Iterator may hold backend resources (ie read transaction of the Bolt DB)
	so it must always be released with Close, Close is idempotent.
	*/
	Iterator interface {
		Next()
		Prev()
		Valid() bool
		// Key of the current item, nil when the iterator is not valid.
		Key() []byte
		// Value decodes the current item into v.
		Value(v any) error
		Close() error
	}

	Iterable interface {
		// First positions the iterator on the smallest key.
		First() Iterator
		// Last positions the iterator on the greatest key.
		Last() Iterator
		// Find positions the iterator on the first key >= key.
		Find(key []byte) Iterator
	}

	KeyValueDB interface {
		ReadWriter
		Iterable
		// StartTx begins read-write transaction. Only one may be active at
		// a time, the backend may block until the previous one is finished.
		StartTx() (DBTransaction, error)
	}
)

// ErrIteratorInvalid is returned by Iterator.Value when the iterator is not positioned on an item.
var ErrIteratorInvalid = errors.New("iterator invalid")

// IsEmpty reports whether db holds no keys.
func IsEmpty(db Iterable) (_ bool, rErr error) {
	if db == nil {
		return true, errors.New("db is nil")
	}
	it := db.First()
	defer func() { rErr = errors.Join(rErr, it.Close()) }()
	return !it.Valid(), nil
}
