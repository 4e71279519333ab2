package kvstore

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// MemoryKV is an ordered in-memory KV, used by tests and by ephemeral
// databases that never touch disk. It mirrors the Badger adapter's
// semantics (half-open cursor ranges, lazy first seek) over a btree.
type MemoryKV struct {
	mu   sync.RWMutex
	tree *btree.BTree
	seq  uint64
}

type memEntry struct {
	key   []byte
	value []byte
}

func (e *memEntry) Less(other btree.Item) bool {
	return bytes.Compare(e.key, other.(*memEntry).key) < 0
}

func OpenMemory() *MemoryKV {
	return &MemoryKV{tree: btree.New(32)}
}

func (m *MemoryKV) View(f func(tx ReadTx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return f(&memTx{kv: m})
}

func (m *MemoryKV) Update(f func(tx WriteTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := &memWriteTx{memTx: memTx{kv: m}}
	if err := f(staged); err != nil {
		return err
	}
	for _, op := range staged.ops {
		if op.delete {
			m.tree.Delete(&memEntry{key: op.key})
		} else {
			m.tree.ReplaceOrInsert(&memEntry{key: op.key, value: op.value})
		}
	}
	m.seq++
	return nil
}

// BeginRead clones the tree so the returned view is stable against later
// commits, matching the MVCC read the durable store provides.
func (m *MemoryKV) BeginRead() SnapshotTx {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &memSnapshotTx{memTx{kv: &MemoryKV{tree: m.tree.Clone(), seq: m.seq}}}
}

func (m *MemoryKV) Sequence() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

func (m *MemoryKV) Close() error { return nil }

type memTx struct {
	kv *MemoryKV
}

func (t *memTx) Get(key []byte) ([]byte, bool, error) {
	item := t.kv.tree.Get(&memEntry{key: key})
	if item == nil {
		return nil, false, nil
	}
	return item.(*memEntry).value, true, nil
}

func (t *memTx) NewCursor(start, end []byte) Cursor {
	var entries []*memEntry
	collect := func(item btree.Item) bool {
		e := item.(*memEntry)
		if end != nil && bytes.Compare(e.key, end) >= 0 {
			return false
		}
		entries = append(entries, e)
		return true
	}
	if start == nil {
		t.kv.tree.Ascend(collect)
	} else {
		t.kv.tree.AscendGreaterOrEqual(&memEntry{key: start}, collect)
	}
	return &memCursor{entries: entries, pos: -1}
}

type memSnapshotTx struct {
	memTx
}

func (t *memSnapshotTx) Discard() {}

type memWriteTx struct {
	memTx
	ops []memOp
}

type memOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Get sees the transaction's own staged writes, last-wins, before the
// committed tree — matching Badger's read-your-writes transactions.
func (t *memWriteTx) Get(key []byte) ([]byte, bool, error) {
	for i := len(t.ops) - 1; i >= 0; i-- {
		if bytes.Equal(t.ops[i].key, key) {
			if t.ops[i].delete {
				return nil, false, nil
			}
			return t.ops[i].value, true, nil
		}
	}
	return t.memTx.Get(key)
}

func (t *memWriteTx) Set(key, value []byte) error {
	t.ops = append(t.ops, memOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (t *memWriteTx) Delete(key []byte) error {
	t.ops = append(t.ops, memOp{key: append([]byte(nil), key...), delete: true})
	return nil
}

type memCursor struct {
	entries []*memEntry
	pos     int
}

func (c *memCursor) Next() bool {
	c.pos++
	return c.pos < len(c.entries)
}

func (c *memCursor) Key() []byte   { return c.entries[c.pos].key }
func (c *memCursor) Value() []byte { return c.entries[c.pos].value }

func (c *memCursor) Seek(target []byte) {
	next := c.pos
	if next < 0 {
		next = 0
	}
	for next < len(c.entries) && bytes.Compare(c.entries[next].key, target) < 0 {
		next++
	}
	c.pos = next - 1
}

func (c *memCursor) Err() error { return nil }
func (c *memCursor) Close()     {}
