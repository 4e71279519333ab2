package snapshot

import (
	"bytes"

	"github.com/typedb/typedb-sub006/storage/kvstore"
	"github.com/typedb/typedb-sub006/typeerr"
)

// peekCursor adds single-item lookahead to a store cursor so the merge
// loop can compare heads without consuming them.
type peekCursor struct {
	c      kvstore.Cursor
	key    []byte
	value  []byte
	valid  bool
	primed bool
}

func (p *peekCursor) peek() ([]byte, []byte, bool) {
	if !p.primed {
		p.step()
	}
	return p.key, p.value, p.valid
}

func (p *peekCursor) advance() {
	if !p.primed {
		p.step()
	}
	p.step()
}

func (p *peekCursor) step() {
	p.valid = p.c.Next()
	if p.valid {
		p.key = p.c.Key()
		p.value = p.c.Value()
	} else {
		p.key, p.value = nil, nil
	}
	p.primed = true
}

func (p *peekCursor) seek(target []byte) {
	p.c.Seek(target)
	p.primed = false
}

func (p *peekCursor) err() error { return p.c.Err() }

func (p *peekCursor) close() { p.c.Close() }

// Iterator is the merged view over one range: a three-state merge of the
// store cursor and the write-buffer cursor. Keys yield strictly
// increasing; buffered deletes are consumed silently and buffered puts
// shadow committed values under the same key.
type Iterator struct {
	rng   KeyRange
	store *peekCursor
	buf   *bufferCursor

	curKey   []byte
	curValue []byte
	err      error
}

// Next advances to the next merged yield. A store error stops the current
// advance and is reported by Err; the iterator itself stays well-formed
// and may be re-seeked past the failure.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		var bEntry *bufferEntry
		bOK := false
		if it.buf != nil {
			for {
				e, ok := it.buf.peek()
				if ok && it.rng.skipStart(e.key) {
					it.buf.advance()
					continue
				}
				bEntry, bOK = e, ok
				break
			}
		}

		var sKey, sValue []byte
		sOK := false
		if it.store != nil {
			for {
				k, v, ok := it.store.peek()
				if ok && it.rng.skipStart(k) {
					it.store.advance()
					continue
				}
				sKey, sValue, sOK = k, v, ok
				break
			}
			if e := it.store.err(); e != nil {
				it.err = typeerr.MVCCRead(e)
				return false
			}
		}

		switch {
		case !bOK && !sOK:
			it.curKey, it.curValue = nil, nil
			return false

		case !bOK:
			it.curKey, it.curValue = sKey, sValue
			it.store.advance()
			return true

		case !sOK:
			it.buf.advance()
			if bEntry.kind == opDelete {
				continue
			}
			it.curKey, it.curValue = bEntry.key, bEntry.value
			return true

		default:
			switch bytes.Compare(bEntry.key, sKey) {
			case -1:
				it.buf.advance()
				if bEntry.kind == opDelete {
					continue
				}
				it.curKey, it.curValue = bEntry.key, bEntry.value
				return true
			case 0:
				it.buf.advance()
				it.store.advance()
				if bEntry.kind == opDelete {
					continue
				}
				it.curKey, it.curValue = bEntry.key, bEntry.value
				return true
			default:
				it.curKey, it.curValue = sKey, sValue
				it.store.advance()
				return true
			}
		}
	}
}

func (it *Iterator) Key() []byte   { return it.curKey }
func (it *Iterator) Value() []byte { return it.curValue }

// Err reports the first store failure surfaced by Next, nil otherwise.
func (it *Iterator) Err() error { return it.err }

// Seek fast-forwards both cursors so the next yield is the first key
// >= target. Seeking never regresses: a target at or before the current
// position leaves the iterator where it is. Seek also clears a previous
// error, letting the caller resume past a failed read.
func (it *Iterator) Seek(target []byte) {
	if it.curKey != nil && bytes.Compare(target, it.curKey) <= 0 {
		return
	}
	it.err = nil
	if it.store != nil {
		it.store.seek(target)
	}
	if it.buf != nil {
		it.buf.seek(target)
	}
}

func (it *Iterator) Close() {
	if it.store != nil {
		it.store.close()
	}
}
