package snapshot

import (
	"bytes"

	"github.com/google/btree"
)

// opKind distinguishes a buffered put from a buffered (tombstoned) delete.
type opKind uint8

const (
	opPut opKind = iota
	opDelete
)

type bufferEntry struct {
	key   []byte
	value []byte
	kind  opKind
}

func (e *bufferEntry) Less(other btree.Item) bool {
	return bytes.Compare(e.key, other.(*bufferEntry).key) < 0
}

// WriteBuffer is the ordered in-memory map of pending puts/deletes for
// one write transaction. Not safe for concurrent use — owned by a single
// transaction.
type WriteBuffer struct {
	tree *btree.BTree
}

func NewWriteBuffer() *WriteBuffer {
	return &WriteBuffer{tree: btree.New(32)}
}

func (b *WriteBuffer) Put(key, value []byte) {
	b.tree.ReplaceOrInsert(&bufferEntry{key: append([]byte(nil), key...), value: append([]byte(nil), value...), kind: opPut})
}

func (b *WriteBuffer) Delete(key []byte) {
	b.tree.ReplaceOrInsert(&bufferEntry{key: append([]byte(nil), key...), kind: opDelete})
}

// Get reports the buffered state of key, if any: (value, true, false) for a
// put, (nil, true, true) for a tombstoned delete, (nil, false, false) if
// key carries no pending write.
func (b *WriteBuffer) Get(key []byte) (value []byte, buffered bool, deleted bool) {
	item := b.tree.Get(&bufferEntry{key: key})
	if item == nil {
		return nil, false, false
	}
	e := item.(*bufferEntry)
	return e.value, true, e.kind == opDelete
}

func (b *WriteBuffer) Len() int { return b.tree.Len() }

// bufferCursor walks a WriteBuffer's entries in [start, end) order,
// including tombstoned deletes — the merge loop in mergedCursor decides
// whether to surface or skip each one.
type bufferCursor struct {
	entries []*bufferEntry
	pos     int
}

func newBufferCursor(buf *WriteBuffer, start, end []byte) *bufferCursor {
	var entries []*bufferEntry
	collect := func(item btree.Item) bool {
		entries = append(entries, item.(*bufferEntry))
		return true
	}
	if upper := rangeUpperBound(end); upper != nil {
		buf.tree.AscendRange(&bufferEntry{key: start}, upper, collect)
	} else {
		buf.tree.AscendGreaterOrEqual(&bufferEntry{key: start}, collect)
	}
	return &bufferCursor{entries: entries, pos: -1}
}

// rangeUpperBound returns end itself as AscendRange's exclusive pivot,
// which gives the half-open [start, end) walk, or nil when end is nil.
// AscendRange does not accept a nil pivot, so newBufferCursor walks an
// unbounded range with AscendGreaterOrEqual instead.
func rangeUpperBound(end []byte) btree.Item {
	if end == nil {
		return nil
	}
	return &bufferEntry{key: end}
}

func (c *bufferCursor) peek() (*bufferEntry, bool) {
	next := c.pos + 1
	if next >= len(c.entries) {
		return nil, false
	}
	return c.entries[next], true
}

func (c *bufferCursor) advance() { c.pos++ }

func (c *bufferCursor) seek(target []byte) {
	// Linear from the current position is fine: seeks during a merge
	// move forward only, and buffers are small relative to the
	// underlying store.
	for {
		e, ok := c.peek()
		if !ok || bytes.Compare(e.key, target) >= 0 {
			return
		}
		c.advance()
	}
}

// Ascend walks every buffered entry in key order, deletes included,
// stopping early when f returns false.
func (b *WriteBuffer) Ascend(f func(key, value []byte, deleted bool) bool) {
	b.tree.Ascend(func(item btree.Item) bool {
		e := item.(*bufferEntry)
		return f(e.key, e.value, e.kind == opDelete)
	})
}
