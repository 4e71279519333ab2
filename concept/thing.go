package concept

import "fmt"

// Thing is a typed handle over an instance: Entity, Relation, or Attribute.
// For attributes, Value is populated; for entities/relations it is zero.
type Thing struct {
	ID    ThingID
	Value Value // only meaningful when ID.Kind == KindAttribute
}

func (t Thing) String() string {
	if t.ID.Kind == KindAttribute {
		return fmt.Sprintf("attr#%d:%d=%s", t.ID.TypeID, t.ID.LocalID, t.Value.String())
	}
	return fmt.Sprintf("%s#%d:%d", t.ID.Kind, t.ID.TypeID, t.ID.LocalID)
}

// AttributeKey uniquely identifies an attribute instance by
// (type, value): two instances with equal (type, value) are the same
// instance.
type AttributeKey struct {
	TypeID TypeID
	Value  Value
}

// Tuple is a fixed-width row of instance/value components produced by a
// concept-layer range scan, before it's written into a query's row slots.
type Tuple struct {
	Owner    ThingID
	Attr     ThingID
	Relation ThingID
	Player   ThingID
	Role     Type
	Value    Value

	// TypeA/TypeB carry type-level bindings (sub, owns, plays, relates,
	// label scans), which have no instance ids.
	TypeA, TypeB Type
}

// HasEdge is an (owner, attribute) pair.
type HasEdge struct {
	Owner     ThingID
	Attribute ThingID
}

// LinksEdge is a (relation, player, role) triple.
type LinksEdge struct {
	Relation Type // the role-type's owning relation type is resolved via schema, not stored here
	Player   ThingID
	Role     Type
}

// Range is the lazy sorted tuple stream every concept-layer range-scan
// operation returns. Next is pull-based; Err is sticky once a non-nil
// error is produced, and errors terminate the stream without
// invalidating the handle.
type Range interface {
	Next() bool
	Tuple() Tuple
	Err() error
	Close() error
}

// sliceRange is the simplest Range implementation, used by in-memory tests
// and by the schema package's small enumerations (subtype lists etc.).
type sliceRange struct {
	items []Tuple
	pos   int
	err   error
}

func NewSliceRange(items []Tuple) Range { return &sliceRange{items: items, pos: -1} }

func (r *sliceRange) Next() bool {
	if r.err != nil {
		return false
	}
	r.pos++
	return r.pos < len(r.items)
}

func (r *sliceRange) Tuple() Tuple { return r.items[r.pos] }
func (r *sliceRange) Err() error   { return r.err }
func (r *sliceRange) Close() error { return nil }
