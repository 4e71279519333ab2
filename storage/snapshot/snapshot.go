// Package snapshot exposes a transaction's read-set as one sorted,
// key-ordered view: (committed MVCC state visible at the snapshot's
// sequence) ∪ (in-transaction writes) − (in-transaction deletes).
//
// The write buffer is an ordered btree overlay merged against the durable
// store's cursor during iteration; reads never see a buffered delete and
// always prefer a buffered put over the committed value under the same key.
package snapshot

import (
	"github.com/typedb/typedb-sub006/storage/kvstore"
)

// Snapshot is a cheap handle over an immutable committed view plus, for
// write transactions, a private in-memory write buffer. Read-only
// snapshots share the view; the writable one is held by a single
// transaction.
type Snapshot struct {
	tx     kvstore.SnapshotTx
	buffer *WriteBuffer
	seq    uint64
}

// NewRead opens a read-only snapshot over tx.
func NewRead(tx kvstore.SnapshotTx, seq uint64) *Snapshot {
	return &Snapshot{tx: tx, seq: seq}
}

// NewWrite opens a writable snapshot: reads merge the committed view with
// the snapshot's own buffered puts and deletes.
func NewWrite(tx kvstore.SnapshotTx, seq uint64) *Snapshot {
	return &Snapshot{tx: tx, buffer: NewWriteBuffer(), seq: seq}
}

func (s *Snapshot) Sequence() uint64 { return s.seq }

func (s *Snapshot) Writable() bool { return s.buffer != nil }

// Buffer returns the snapshot's write buffer, nil for read snapshots.
func (s *Snapshot) Buffer() *WriteBuffer { return s.buffer }

func (s *Snapshot) Put(key, value []byte) {
	s.buffer.Put(key, value)
}

func (s *Snapshot) Delete(key []byte) {
	s.buffer.Delete(key)
}

// Get reads key through the buffer first: a buffered put wins, a buffered
// delete hides the committed value, otherwise the committed view answers.
func (s *Snapshot) Get(key []byte) ([]byte, bool, error) {
	if s.buffer != nil {
		if v, buffered, deleted := s.buffer.Get(key); buffered {
			if deleted {
				return nil, false, nil
			}
			return v, true, nil
		}
	}
	if s.tx == nil {
		return nil, false, nil
	}
	return s.tx.Get(key)
}

// IterateRange opens a merged iterator over r. Yields are strictly
// increasing keys; each is committed-and-visible or a buffered put, never
// a buffered delete.
func (s *Snapshot) IterateRange(r KeyRange) *Iterator {
	start, end := r.bounds()
	it := &Iterator{rng: r}
	if s.tx != nil {
		it.store = &peekCursor{c: s.tx.NewCursor(start, end)}
	}
	if s.buffer != nil {
		it.buf = newBufferCursor(s.buffer, start, end)
	}
	return it
}

// Writer receives a snapshot's buffered mutations at commit time.
// kvstore.WriteTx satisfies it.
type Writer interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// WriteInto replays the buffer into w in key order: the commit path runs
// this inside the store's own atomic update.
func (s *Snapshot) WriteInto(w Writer) error {
	if s.buffer == nil {
		return nil
	}
	var err error
	s.buffer.Ascend(func(key, value []byte, deleted bool) bool {
		if deleted {
			err = w.Delete(key)
		} else {
			err = w.Set(key, value)
		}
		return err == nil
	})
	return err
}

// Close releases the snapshot's committed view. The buffer, if any, is
// simply dropped; uncommitted writes do not survive the snapshot.
func (s *Snapshot) Close() {
	if s.tx != nil {
		s.tx.Discard()
		s.tx = nil
	}
}
