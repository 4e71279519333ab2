package concept

import (
	"encoding/binary"

	"github.com/typedb/typedb-sub006/storage/snapshot"
)

// Writer applies instance-level mutations to a writable snapshot: vertex
// puts with local-id allocation, has/links edges (both directions kept in
// step), and deletes with edge pruning. Validation lives above this layer;
// Writer only maintains the byte-level invariants (reverse copies, value
// payloads, id allocation).
type Writer struct {
	Reader
}

func NewWriter(snap *snapshot.Snapshot) *Writer {
	return &Writer{Reader: Reader{snap: snap}}
}

// PutObject creates a fresh entity or relation instance of type t,
// allocating the next local-id from the type's counter property.
func (w *Writer) PutObject(t Type) (ThingID, error) {
	counterKey := EncodeProperty(EncodeTypeVertex(t), InfixNextLocalID, nil)
	raw, found, err := w.snap.Get(counterKey)
	if err != nil {
		return ThingID{}, err
	}
	var next uint64
	if found && len(raw) == 8 {
		next = binary.BigEndian.Uint64(raw)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next+1)
	w.snap.Put(counterKey, buf[:])

	id := ThingID{Kind: t.Kind, TypeID: t.ID, LocalID: next}
	w.snap.Put(EncodeThingVertex(id), nil)
	return id, nil
}

// PutAttribute creates (or re-finds) the attribute instance of type t
// holding v. Equal (type, value) pairs always resolve to the same id, so
// the put is idempotent.
func (w *Writer) PutAttribute(t Type, v Value) (ThingID, error) {
	id := ThingID{Kind: KindAttribute, TypeID: t.ID, LocalID: AttributeLocalID(v)}
	w.snap.Put(EncodeThingVertex(id), v.Encode())
	return id, nil
}

// PutHas connects owner to attr, storing the attribute's encoded value on
// the forward edge so has scans yield values without a second lookup.
func (w *Writer) PutHas(owner, attr ThingID, value Value) {
	encoded := value.Encode()
	w.snap.Put(EncodeHasEdge(owner, attr), encoded)
	w.snap.Put(EncodeHasEdgeReverse(owner, attr), encoded)
}

// PutLinks connects relation to player under role, both directions.
func (w *Writer) PutLinks(relation, player ThingID, role Type) {
	w.snap.Put(EncodeLinksEdge(relation, player, role), nil)
	w.snap.Put(EncodeLinksEdgeReverse(relation, player, role), nil)
}

// DeleteHas removes both copies of a has edge.
func (w *Writer) DeleteHas(owner, attr ThingID) {
	w.snap.Delete(EncodeHasEdge(owner, attr))
	w.snap.Delete(EncodeHasEdgeReverse(owner, attr))
}

// DeleteLinks removes both copies of a links edge.
func (w *Writer) DeleteLinks(relation, player ThingID, role Type) {
	w.snap.Delete(EncodeLinksEdge(relation, player, role))
	w.snap.Delete(EncodeLinksEdgeReverse(relation, player, role))
}

// DeleteThing tombstones an instance vertex and prunes every edge that
// references it, keeping both edge directions consistent.
func (w *Writer) DeleteThing(id ThingID) error {
	switch id.Kind {
	case KindAttribute:
		owners := w.HasReverseByAttribute(id, nil)
		defer owners.Close()
		for owners.Next() {
			tup := owners.Tuple()
			w.DeleteHas(tup.Owner, tup.Attr)
		}
		if err := owners.Err(); err != nil {
			return err
		}
	default:
		has := w.HasByOwner(id, nil)
		defer has.Close()
		for has.Next() {
			tup := has.Tuple()
			w.DeleteHas(tup.Owner, tup.Attr)
		}
		if err := has.Err(); err != nil {
			return err
		}
		asPlayer := w.LinksByPlayer(id)
		defer asPlayer.Close()
		for asPlayer.Next() {
			tup := asPlayer.Tuple()
			w.DeleteLinks(tup.Relation, tup.Player, tup.Role)
		}
		if err := asPlayer.Err(); err != nil {
			return err
		}
		if id.Kind == KindRelation {
			asRel := w.LinksByRelation(id)
			defer asRel.Close()
			for asRel.Next() {
				tup := asRel.Tuple()
				w.DeleteLinks(tup.Relation, tup.Player, tup.Role)
			}
			if err := asRel.Err(); err != nil {
				return err
			}
		}
	}
	w.snap.Delete(EncodeThingVertex(id))
	return nil
}
