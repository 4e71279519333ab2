// Package typeset provides a compressed set<TypeID> representation for
// the type-annotation engine. A variable's permitted type set is a
// dense-ish set over a small (16-bit) universe that gets intersected and
// unioned repeatedly during fixpoint iteration — the access pattern
// roaring bitmaps are built for.
package typeset

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/typedb/typedb-sub006/concept"
)

// key packs (Kind, TypeID) into a single uint32 so one roaring.Bitmap can
// represent a mixed-kind type set (a variable's Thing category can range
// over entity, relation, and attribute types simultaneously, e.g. `$x isa
// thing`).
func key(t concept.Type) uint32 {
	return uint32(t.Kind)<<16 | uint32(t.ID)
}

func unkey(k uint32) concept.Type {
	return concept.Type{Kind: concept.Kind(k >> 16), ID: concept.TypeID(k & 0xFFFF)}
}

// Set is a mutable set<Type>, backed by a roaring bitmap.
type Set struct {
	bits *roaring.Bitmap
}

func New() *Set { return &Set{bits: roaring.New()} }

func Of(types ...concept.Type) *Set {
	s := New()
	for _, t := range types {
		s.Add(t)
	}
	return s
}

func (s *Set) Add(t concept.Type) { s.bits.Add(key(t)) }

func (s *Set) Remove(t concept.Type) { s.bits.Remove(key(t)) }

func (s *Set) Contains(t concept.Type) bool { return s.bits.Contains(key(t)) }

func (s *Set) Len() int { return int(s.bits.GetCardinality()) }

func (s *Set) IsEmpty() bool { return s.bits.IsEmpty() }

func (s *Set) Clone() *Set { return &Set{bits: s.bits.Clone()} }

// Intersect narrows s in place to s ∩ other — the operation the
// fixpoint loop performs on every propagation step.
func (s *Set) Intersect(other *Set) { s.bits.And(other.bits) }

// Union widens s in place to s ∪ other — used to merge disjunction
// branches back into the outer scope.
func (s *Set) Union(other *Set) { s.bits.Or(other.bits) }

// Equals reports set equality, used to detect fixpoint convergence.
func (s *Set) Equals(other *Set) bool { return s.bits.Equals(other.bits) }

// Slice returns the set's members in deterministic (Kind, TypeID)
// order.
func (s *Set) Slice() []concept.Type {
	out := make([]concept.Type, 0, s.Len())
	it := s.bits.Iterator()
	for it.HasNext() {
		out = append(out, unkey(it.Next()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (s *Set) ForEach(f func(concept.Type)) {
	it := s.bits.Iterator()
	for it.HasNext() {
		f(unkey(it.Next()))
	}
}
