/*
Package boltdb is the persistent keyvaluedb backend, all the data is kept in
single bucket of a Bolt DB file.
*/
package boltdb

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/iort-labs/qtrust/keyvaluedb"
)

const (
	DefaultBucket      = "qtrust"
	defaultOpenTimeout = 3 * time.Second
)

type (
	BoltDB struct {
		db     *bolt.DB
		bucket []byte
		codec  keyvaluedb.Codec
	}

	options struct {
		bucket  string
		codec   keyvaluedb.Codec
		timeout time.Duration
	}

	Option func(*options)
)

// WithBucket selects the bucket the DB works in, it is created when missing.
func WithBucket(name string) Option {
	return func(o *options) {
		o.bucket = name
	}
}

// WithCodec replaces the default CBOR encoding of the values.
func WithCodec(c keyvaluedb.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithOpenTimeout sets how long to wait for the file lock held by another process.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// New opens the DB file, the file is created when it doesn't exist.
func New(dbFile string, opts ...Option) (*BoltDB, error) {
	o := options{bucket: DefaultBucket, codec: keyvaluedb.CBOR, timeout: defaultOpenTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bucket == "" {
		return nil, errors.New("bucket name is empty")
	}
	if err := o.codec.IsValid(); err != nil {
		return nil, err
	}

	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: o.timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	s := &BoltDB{db: db, bucket: []byte(o.bucket), codec: o.codec}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		return nil, errors.Join(fmt.Errorf("create bucket %q: %w", o.bucket, err), db.Close())
	}
	return s, nil
}

func (db *BoltDB) Path() string {
	return db.db.Path()
}

func (db *BoltDB) Read(key []byte, v any) (found bool, err error) {
	err = db.db.View(func(tx *bolt.Tx) error {
		found, err = db.bucketOf(tx).read(key, v)
		return err
	})
	return found, err
}

func (db *BoltDB) Write(key []byte, v any) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return db.bucketOf(tx).write(key, v)
	})
}

func (db *BoltDB) Delete(key []byte) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return db.bucketOf(tx).delete(key)
	})
}

func (db *BoltDB) First() keyvaluedb.Iterator {
	return db.cursor(func(c *bolt.Cursor) ([]byte, []byte) { return c.First() })
}

func (db *BoltDB) Last() keyvaluedb.Iterator {
	return db.cursor(func(c *bolt.Cursor) ([]byte, []byte) { return c.Last() })
}

func (db *BoltDB) Find(key []byte) keyvaluedb.Iterator {
	return db.cursor(func(c *bolt.Cursor) ([]byte, []byte) { return c.Seek(key) })
}

func (db *BoltDB) StartTx() (keyvaluedb.DBTransaction, error) {
	tx, err := db.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("starting bolt transaction: %w", err)
	}
	return &boltTx{tx: tx, b: db.bucketOf(tx)}, nil
}

func (db *BoltDB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

func (db *BoltDB) bucketOf(tx *bolt.Tx) bucket {
	return bucket{b: tx.Bucket(db.bucket), codec: db.codec}
}

// bucket is the codec aware access to the Bolt bucket shared by the DB and the transactions.
type bucket struct {
	b     *bolt.Bucket
	codec keyvaluedb.Codec
}

func (b bucket) read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	data := b.b.Get(key)
	if data == nil {
		return false, nil
	}
	return true, b.codec.Decode(key, data, v)
}

func (b bucket) write(key []byte, v any) error {
	data, err := b.codec.Encode(key, v)
	if err != nil {
		return err
	}
	if err := b.b.Put(key, data); err != nil {
		return fmt.Errorf("storing %x: %w", key, err)
	}
	return nil
}

func (b bucket) delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	return b.b.Delete(key)
}
