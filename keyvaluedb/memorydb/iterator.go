package memorydb

import (
	"bytes"
	"slices"
	"strings"

	"github.com/iort-labs/qtrust/keyvaluedb"
)

type item struct {
	key  string
	data []byte
}

// snapshotIterator walks a sorted copy of the entries taken when it was created.
type snapshotIterator struct {
	items []item
	pos   int
	codec keyvaluedb.Codec
}

func (db *MemoryDB) snapshot() *snapshotIterator {
	db.mu.RLock()
	defer db.mu.RUnlock()
	items := make([]item, 0, len(db.entries))
	for k, v := range db.entries {
		items = append(items, item{key: k, data: v})
	}
	slices.SortFunc(items, func(a, b item) int { return strings.Compare(a.key, b.key) })
	return &snapshotIterator{items: items, pos: -1, codec: db.codec}
}

func (it *snapshotIterator) first() *snapshotIterator {
	return it.moveTo(0)
}

func (it *snapshotIterator) last() *snapshotIterator {
	return it.moveTo(len(it.items) - 1)
}

func (it *snapshotIterator) seek(key []byte) *snapshotIterator {
	idx, _ := slices.BinarySearchFunc(it.items, key, func(a item, k []byte) int {
		return bytes.Compare([]byte(a.key), k)
	})
	return it.moveTo(idx)
}

func (it *snapshotIterator) moveTo(idx int) *snapshotIterator {
	it.pos = -1
	if idx >= 0 && idx < len(it.items) {
		it.pos = idx
	}
	return it
}

func (it *snapshotIterator) Next() {
	if it.Valid() {
		it.moveTo(it.pos + 1)
	}
}

func (it *snapshotIterator) Prev() {
	if it.Valid() {
		it.moveTo(it.pos - 1)
	}
}

func (it *snapshotIterator) Valid() bool {
	return it.pos >= 0
}

func (it *snapshotIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return []byte(it.items[it.pos].key)
}

func (it *snapshotIterator) Value(v any) error {
	if !it.Valid() {
		return keyvaluedb.ErrIteratorInvalid
	}
	cur := it.items[it.pos]
	return it.codec.Decode([]byte(cur.key), cur.data, v)
}

func (it *snapshotIterator) Close() error {
	it.items, it.pos = nil, -1
	return nil
}
