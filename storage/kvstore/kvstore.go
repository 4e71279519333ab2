// Package kvstore is the durable MVCC key-value store the snapshot
// iterator merges against: a narrow ordered-byte-range interface plus a
// Badger-backed implementation and an in-memory one for tests and
// ephemeral databases. Key encoding lives in the concept layer; this
// package only sees raw bytes.
package kvstore

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"
	"github.com/typedb/typedb-sub006/typeerr"
)

// KV is the minimum ordered key-value API the snapshot merge (storage/
// snapshot) needs from the durable store: a sequence number for MVCC reads,
// a range cursor, and a read-write transaction.
type KV interface {
	// View runs f against a read-only snapshot at the store's current
	// committed sequence.
	View(f func(tx ReadTx) error) error
	// Update runs f against a read-write transaction; f's writes are
	// committed atomically iff f returns nil.
	Update(f func(tx WriteTx) error) error
	// BeginRead opens a long-lived read transaction for pull-based query
	// iteration, where the callback-scoped View does not fit. The caller
	// must Discard it.
	BeginRead() SnapshotTx
	// Sequence reports the latest committed MVCC sequence number.
	Sequence() uint64
	Close() error
}

// SnapshotTx is a ReadTx the caller owns and releases explicitly.
type SnapshotTx interface {
	ReadTx
	Discard()
}

// ReadTx exposes ordered range scans over committed, visible key-value
// pairs.
type ReadTx interface {
	// NewCursor opens a cursor over [start, end). A nil end means
	// unbounded (scan to the end of the keyspace).
	NewCursor(start, end []byte) Cursor
	Get(key []byte) (value []byte, found bool, err error)
}

// WriteTx additionally allows mutation, buffered until the enclosing
// Update's f returns.
type WriteTx interface {
	ReadTx
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Cursor is a forward-only, seekable iterator over a key range — the
// storage side of the snapshot merge.
type Cursor interface {
	// Next advances to the next key in range, returning false once
	// exhausted. The first call positions at the first key >= the
	// cursor's start bound.
	Next() bool
	Key() []byte
	Value() []byte
	// Seek fast-forwards to the first key >= target, never regressing.
	Seek(target []byte)
	// Err reports the first read failure encountered while iterating.
	Err() error
	Close()
}

// BadgerKV adapts a *badger.DB to KV.
type BadgerKV struct {
	db *badger.DB
}

// Open creates/opens a Badger-backed KV store at path, tuned for
// read-heavy workloads: large block/index caches, conflict detection off
// since the engine's own snapshot layer — not Badger's — arbitrates
// write-write conflicts at commit.
func Open(path string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.MemTableSize = 128 << 20
	opts.BlockCacheSize = 256 << 20
	opts.IndexCacheSize = 100 << 20
	opts.DetectConflicts = false
	opts.NumCompactors = 4
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, typeerr.MVCCRead(err)
	}
	return &BadgerKV{db: db}, nil
}

func (k *BadgerKV) View(f func(tx ReadTx) error) error {
	return k.db.View(func(txn *badger.Txn) error {
		return f(&badgerTx{txn: txn})
	})
}

func (k *BadgerKV) Update(f func(tx WriteTx) error) error {
	return k.db.Update(func(txn *badger.Txn) error {
		return f(&badgerTx{txn: txn})
	})
}

func (k *BadgerKV) BeginRead() SnapshotTx {
	return &badgerSnapshotTx{badgerTx{txn: k.db.NewTransaction(false)}}
}

func (k *BadgerKV) Sequence() uint64 { return k.db.MaxVersion() }

func (k *BadgerKV) Close() error { return k.db.Close() }

type badgerSnapshotTx struct {
	badgerTx
}

func (t *badgerSnapshotTx) Discard() { t.txn.Discard() }

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) Get(key []byte) ([]byte, bool, error) {
	item, err := t.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, typeerr.MVCCRead(err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, typeerr.MVCCRead(err)
	}
	return val, true, nil
}

func (t *badgerTx) Set(key, value []byte) error {
	if err := t.txn.Set(key, value); err != nil {
		return typeerr.MVCCRead(err)
	}
	return nil
}

func (t *badgerTx) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
		return typeerr.MVCCRead(err)
	}
	return nil
}

func (t *badgerTx) NewCursor(start, end []byte) Cursor {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1000
	opts.PrefetchValues = true
	it := t.txn.NewIterator(opts)
	return &badgerCursor{it: it, start: start, end: end}
}

// badgerCursor lazily seeks to start on the first Next(), then walks
// forward, stopping once it passes end.
type badgerCursor struct {
	it      *badger.Iterator
	start   []byte
	end     []byte
	started bool
	err     error
}

func (c *badgerCursor) Next() bool {
	if !c.started {
		c.it.Seek(c.start)
		c.started = true
	} else {
		c.it.Next()
	}
	if !c.it.Valid() {
		return false
	}
	if c.end != nil && bytes.Compare(c.it.Item().Key(), c.end) >= 0 {
		return false
	}
	return true
}

func (c *badgerCursor) Key() []byte {
	return append([]byte(nil), c.it.Item().Key()...)
}

func (c *badgerCursor) Value() []byte {
	val, err := c.it.Item().ValueCopy(nil)
	if err != nil {
		c.err = err
		return nil
	}
	return val
}

func (c *badgerCursor) Err() error { return c.err }

func (c *badgerCursor) Seek(target []byte) {
	// Defer the actual it.Seek to the next Next() call: update start and
	// clear started so Next() re-seeks instead of advancing past target.
	// A target below the current key (or, before the first Next, below
	// the start bound) is raised to it, so the cursor never moves back.
	if !c.started {
		if bytes.Compare(target, c.start) > 0 {
			c.start = target
		}
		return
	}
	if c.it.Valid() && bytes.Compare(target, c.it.Item().Key()) < 0 {
		target = c.it.Item().KeyCopy(nil)
	}
	c.start = target
	c.started = false
}

func (c *badgerCursor) Close() { c.it.Close() }
