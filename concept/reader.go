package concept

import (
	"encoding/binary"

	"github.com/typedb/typedb-sub006/storage/snapshot"
	"github.com/typedb/typedb-sub006/typeerr"
)

// Reader exposes the range-scan operations the executor drives against a
// snapshot: attribute scans, has/links edge scans in both directions, and
// per-instance bound scans. Every operation returns a lazy sorted Range.
type Reader struct {
	snap *snapshot.Snapshot
}

func NewReader(snap *snapshot.Snapshot) *Reader { return &Reader{snap: snap} }

func (r *Reader) Snapshot() *snapshot.Snapshot { return r.snap }

// ObjectsIn streams every instance of exactly t, ordered by instance id.
func (r *Reader) ObjectsIn(t Type) Range {
	return r.scan(snapshot.PrefixRange(ThingTypePrefix(t)), decodeObjectVertex)
}

// ObjectsInAny streams instances across the given types in key order;
// the type list must be sorted.
func (r *Reader) ObjectsInAny(types []Type) Range {
	return r.multiScan(types, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(ThingTypePrefix(t))
	}, decodeObjectVertex)
}

// HasExists reports whether the has edge (owner, attr) is present.
func (r *Reader) HasExists(owner, attr ThingID) (bool, error) {
	_, found, err := r.snap.Get(EncodeHasEdge(owner, attr))
	return found, err
}

// LinksExists reports whether the links edge (relation, player, role) is
// present.
func (r *Reader) LinksExists(relation, player ThingID, role Type) (bool, error) {
	_, found, err := r.snap.Get(EncodeLinksEdge(relation, player, role))
	return found, err
}

// AttributesInRange streams attribute instances of exactly t, optionally
// bounded (inclusive) by lo/hi. Bounds only narrow the scan for value
// types whose local-id order matches value order (boolean, integer,
// double, date); hash-keyed types (decimal, datetime, duration, string,
// struct) scan the whole type and rely on the caller's filter.
func (r *Reader) AttributesInRange(t Type, lo, hi *Value) Range {
	prefix := ThingTypePrefix(t)
	rng := snapshot.PrefixRange(prefix)
	if orderableLocalID(t, lo, hi) {
		start := append([]byte(nil), prefix...)
		if lo != nil {
			start = appendUint64(start, AttributeLocalID(*lo))
		}
		end := append([]byte(nil), prefix...)
		if hi != nil {
			end = appendUint64(end, AttributeLocalID(*hi)+1)
			rng = snapshot.BoundedRange(start, end)
		} else {
			rng = snapshot.KeyRange{StartBytes: start, Start: snapshot.StartInclusive, EndBytes: prefix, End: snapshot.EndPrefixInclusive}
		}
	}
	return r.scan(rng, decodeObjectVertex)
}

func orderableLocalID(t Type, lo, hi *Value) bool {
	if lo == nil && hi == nil {
		return false
	}
	var vt ValueType
	if lo != nil {
		vt = lo.Type
	} else {
		vt = hi.Type
	}
	switch vt {
	case ValueTypeBoolean, ValueTypeInteger, ValueTypeDouble, ValueTypeDate:
		return true
	default:
		return false
	}
}

// Has streams has edges forward, ordered by owner, across the given owner
// types (which must be sorted by key order).
func (r *Reader) Has(ownerTypes []Type) Range {
	return r.multiScan(ownerTypes, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(edgeTypePrefix(PrefixEdgeHas, t))
	}, decodeHasEdgeTuple)
}

// HasReverse streams has edges attribute-first, ordered by attribute.
func (r *Reader) HasReverse(attrTypes []Type) Range {
	return r.multiScan(attrTypes, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(edgeTypePrefix(PrefixEdgeHasReverse, t))
	}, decodeHasEdgeTuple)
}

// HasByOwner streams one owner instance's has edges, ordered by attribute
// vertex, optionally restricted to the given attribute types.
func (r *Reader) HasByOwner(owner ThingID, attrTypes []Type) Range {
	prefix := append([]byte{byte(PrefixEdgeHas)}, EncodeThingVertex(owner)...)
	if len(attrTypes) == 0 {
		return r.scan(snapshot.PrefixRange(prefix), decodeHasEdgeTuple)
	}
	return r.multiScan(attrTypes, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(append(append([]byte(nil), prefix...), ThingTypePrefix(t)...))
	}, decodeHasEdgeTuple)
}

// HasReverseByAttribute streams one attribute instance's owners, ordered
// by owner vertex.
func (r *Reader) HasReverseByAttribute(attr ThingID, ownerTypes []Type) Range {
	prefix := append([]byte{byte(PrefixEdgeHasReverse)}, EncodeThingVertex(attr)...)
	if len(ownerTypes) == 0 {
		return r.scan(snapshot.PrefixRange(prefix), decodeHasEdgeTuple)
	}
	return r.multiScan(ownerTypes, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(append(append([]byte(nil), prefix...), ThingTypePrefix(t)...))
	}, decodeHasEdgeTuple)
}

// Links streams links edges forward, ordered by relation.
func (r *Reader) Links(relationTypes []Type) Range {
	return r.multiScan(relationTypes, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(edgeTypePrefix(PrefixEdgeLinks, t))
	}, decodeLinksEdgeTuple)
}

// LinksReverse streams links edges player-first, ordered by player.
func (r *Reader) LinksReverse(playerTypes []Type) Range {
	return r.multiScan(playerTypes, func(t Type) snapshot.KeyRange {
		return snapshot.PrefixRange(edgeTypePrefix(PrefixEdgeLinksReverse, t))
	}, decodeLinksEdgeTuple)
}

// LinksByRelation streams one relation instance's links edges.
func (r *Reader) LinksByRelation(relation ThingID) Range {
	prefix := append([]byte{byte(PrefixEdgeLinks)}, EncodeThingVertex(relation)...)
	return r.scan(snapshot.PrefixRange(prefix), decodeLinksEdgeTuple)
}

// LinksByPlayer streams one player instance's links edges, via the
// reverse index.
func (r *Reader) LinksByPlayer(player ThingID) Range {
	prefix := append([]byte{byte(PrefixEdgeLinksReverse)}, EncodeThingVertex(player)...)
	return r.scan(snapshot.PrefixRange(prefix), decodeLinksEdgeTuple)
}

// LinksByRelationAndPlayer streams the role types linking one (relation,
// player) pair.
func (r *Reader) LinksByRelationAndPlayer(relation, player ThingID) Range {
	prefix := append([]byte{byte(PrefixEdgeLinks)}, EncodeThingVertex(relation)...)
	prefix = append(prefix, EncodeThingVertex(player)...)
	return r.scan(snapshot.PrefixRange(prefix), decodeLinksEdgeTuple)
}

// GetAttributeValue reads one attribute instance's stored value.
func (r *Reader) GetAttributeValue(attr ThingID) (Value, bool, error) {
	raw, found, err := r.snap.Get(EncodeThingVertex(attr))
	if err != nil {
		return Value{}, false, err
	}
	if !found || len(raw) == 0 {
		return Value{}, found, nil
	}
	v, _, err := Decode(raw)
	if err != nil {
		return Value{}, true, err
	}
	return v, true, nil
}

// Exists reports whether an instance vertex is present in the snapshot.
func (r *Reader) Exists(id ThingID) (bool, error) {
	_, found, err := r.snap.Get(EncodeThingVertex(id))
	return found, err
}

func edgeTypePrefix(edge PrefixID, t Type) []byte {
	return append([]byte{byte(edge)}, ThingTypePrefix(t)...)
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func (r *Reader) scan(rng snapshot.KeyRange, decode func(k, v []byte) (Tuple, bool)) Range {
	return &kvRange{it: r.snap.IterateRange(rng), decode: decode}
}

func (r *Reader) multiScan(types []Type, rangeOf func(Type) snapshot.KeyRange, decode func(k, v []byte) (Tuple, bool)) Range {
	m := &multiRange{}
	for _, t := range types {
		t := t
		m.open = append(m.open, func() *kvRange {
			return &kvRange{it: r.snap.IterateRange(rangeOf(t)), decode: decode}
		})
	}
	return m
}

func decodeObjectVertex(k, v []byte) (Tuple, bool) {
	id, ok := DecodeThingVertex(k)
	if !ok {
		return Tuple{}, false
	}
	tup := Tuple{Owner: id}
	if id.Kind == KindAttribute && len(v) > 0 {
		if val, _, err := Decode(v); err == nil {
			tup.Value = val
		}
	}
	return tup, true
}

func decodeHasEdgeTuple(k, v []byte) (Tuple, bool) {
	owner, attr, ok := DecodeHasEdge(k)
	if !ok {
		return Tuple{}, false
	}
	tup := Tuple{Owner: owner, Attr: attr}
	if len(v) > 0 {
		if val, _, err := Decode(v); err == nil {
			tup.Value = val
		}
	}
	return tup, true
}

func decodeLinksEdgeTuple(k, _ []byte) (Tuple, bool) {
	rel, player, role, ok := DecodeLinksEdge(k)
	if !ok {
		return Tuple{}, false
	}
	return Tuple{Relation: rel, Player: player, Role: role}, true
}

// kvRange adapts a snapshot iterator plus a key decoder into a Range.
type kvRange struct {
	it     *snapshot.Iterator
	decode func(k, v []byte) (Tuple, bool)
	cur    Tuple
	err    error
}

func (r *kvRange) Next() bool {
	if r.err != nil {
		return false
	}
	for r.it.Next() {
		if tup, ok := r.decode(r.it.Key(), r.it.Value()); ok {
			r.cur = tup
			return true
		}
	}
	if e := r.it.Err(); e != nil {
		r.err = typeerr.StoreReadFailed(e)
	}
	return false
}

func (r *kvRange) Tuple() Tuple { return r.cur }
func (r *kvRange) Err() error   { return r.err }
func (r *kvRange) Close() error {
	r.it.Close()
	return nil
}

// multiRange concatenates per-type sub-scans; global order holds as long
// as the type list is sorted by key order, which typeset.Set.Slice
// guarantees.
type multiRange struct {
	open []func() *kvRange
	pos  int
	cur  *kvRange
	err  error
}

func (m *multiRange) Next() bool {
	if m.err != nil {
		return false
	}
	for {
		if m.cur == nil {
			if m.pos >= len(m.open) {
				return false
			}
			m.cur = m.open[m.pos]()
			m.pos++
		}
		if m.cur.Next() {
			return true
		}
		if e := m.cur.Err(); e != nil {
			m.err = e
			return false
		}
		m.cur.Close()
		m.cur = nil
	}
}

func (m *multiRange) Tuple() Tuple { return m.cur.Tuple() }
func (m *multiRange) Err() error   { return m.err }
func (m *multiRange) Close() error {
	if m.cur != nil {
		m.cur.Close()
		m.cur = nil
	}
	return nil
}
