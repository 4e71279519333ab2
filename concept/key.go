package concept

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// PrefixID identifies the object kind a key names, the first byte of
// every key. Type and thing vertices carry one prefix per kind, so the
// kind is always recoverable from the key alone.
type PrefixID byte

const (
	PrefixEntityType PrefixID = iota + 1
	PrefixRelationType
	PrefixAttributeType
	PrefixRoleType

	PrefixEntity
	PrefixRelation
	PrefixAttribute

	PrefixEdgeHas
	PrefixEdgeHasReverse
	PrefixEdgeLinks
	PrefixEdgeLinksReverse
	PrefixEdgeSub
	PrefixEdgeOwns
	PrefixEdgePlays
	PrefixEdgeRelates
	PrefixProperty
)

// TypeVertexPrefix maps a kind to its type-vertex prefix byte.
func TypeVertexPrefix(k Kind) PrefixID {
	switch k {
	case KindEntity:
		return PrefixEntityType
	case KindRelation:
		return PrefixRelationType
	case KindAttribute:
		return PrefixAttributeType
	default:
		return PrefixRoleType
	}
}

// ThingVertexPrefix maps a kind to its instance-vertex prefix byte. Roles
// have no instances; callers never ask for them.
func ThingVertexPrefix(k Kind) PrefixID {
	switch k {
	case KindEntity:
		return PrefixEntity
	case KindRelation:
		return PrefixRelation
	default:
		return PrefixAttribute
	}
}

func kindOfThingPrefix(p PrefixID) (Kind, bool) {
	switch p {
	case PrefixEntity:
		return KindEntity, true
	case PrefixRelation:
		return KindRelation, true
	case PrefixAttribute:
		return KindAttribute, true
	default:
		return 0, false
	}
}

// InfixID names a property within a vertex's property keyspace.
type InfixID uint16

const (
	InfixLabel InfixID = iota
	InfixValueType
	InfixOrdering
	InfixNextLocalID
	InfixAnnotationAbstract
	InfixAnnotationDistinct
	InfixAnnotationUnique
	InfixAnnotationKey
	InfixAnnotationIndependent
	InfixAnnotationCardinality
	InfixAnnotationRegex
	InfixAnnotationRange
	InfixAnnotationValues
	InfixAnnotationCascade
)

// EncodeTypeVertex renders PrefixID(1) || TypeID(2 BE).
func EncodeTypeVertex(t Type) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(TypeVertexPrefix(t.Kind))
	binary.BigEndian.PutUint16(buf[1:3], uint16(t.ID))
	return buf
}

// ThingID is the fixed-width instance identifier: kind prefix + type-id +
// generated local-id.
type ThingID struct {
	Kind    Kind
	TypeID  TypeID
	LocalID uint64
}

// IsZero reports whether the id is the zero value, used by row slots to
// distinguish "no instance" from a real binding.
func (id ThingID) IsZero() bool { return id == ThingID{} }

func (id ThingID) Type() Type { return Type{Kind: id.Kind, ID: id.TypeID} }

// Less orders ThingIDs identically to their encoded-key byte order.
func (id ThingID) Less(o ThingID) bool {
	if id.Kind != o.Kind {
		return ThingVertexPrefix(id.Kind) < ThingVertexPrefix(o.Kind)
	}
	if id.TypeID != o.TypeID {
		return id.TypeID < o.TypeID
	}
	return id.LocalID < o.LocalID
}

const thingVertexLen = 11

// EncodeThingVertex renders PrefixID(1) || TypeID(2 BE) || LocalID(8 BE).
func EncodeThingVertex(id ThingID) []byte {
	buf := make([]byte, thingVertexLen)
	buf[0] = byte(ThingVertexPrefix(id.Kind))
	binary.BigEndian.PutUint16(buf[1:3], uint16(id.TypeID))
	binary.BigEndian.PutUint64(buf[3:11], id.LocalID)
	return buf
}

// DecodeThingVertex is the inverse of EncodeThingVertex.
func DecodeThingVertex(b []byte) (ThingID, bool) {
	if len(b) < thingVertexLen {
		return ThingID{}, false
	}
	kind, ok := kindOfThingPrefix(PrefixID(b[0]))
	if !ok {
		return ThingID{}, false
	}
	return ThingID{
		Kind:    kind,
		TypeID:  TypeID(binary.BigEndian.Uint16(b[1:3])),
		LocalID: binary.BigEndian.Uint64(b[3:11]),
	}, true
}

// ThingTypePrefix renders the vertex prefix shared by every instance of
// one type: PrefixID(1) || TypeID(2 BE).
func ThingTypePrefix(t Type) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(ThingVertexPrefix(t.Kind))
	binary.BigEndian.PutUint16(buf[1:3], uint16(t.ID))
	return buf
}

// AttributeLocalID derives an attribute instance's local-id from its
// value, so equal (type, value) pairs always name the same instance.
// Inline orderable payloads that fit 8 bytes use an order-preserving
// transform (vertex order matches value order); everything else —
// decimals, datetimes, durations, strings, structs — hashes the encoded
// value, so those types scan in hash order and do not support
// value-range narrowing (equality lookups still work).
func AttributeLocalID(v Value) uint64 {
	switch v.Type {
	case ValueTypeBoolean:
		if v.Boolean {
			return 1
		}
		return 0
	case ValueTypeInteger:
		return uint64(v.Integer) ^ (1 << 63)
	case ValueTypeDouble:
		bits := math.Float64bits(v.Double)
		if v.Double >= 0 {
			return bits ^ (1 << 63)
		}
		return ^bits
	case ValueTypeDate:
		return uint64(uint32(v.Date) ^ (1 << 31))
	default:
		return xxhash.Sum64(v.Encode())
	}
}

// EncodeHasEdge renders PrefixID(1) || owner-vertex || attribute-vertex.
func EncodeHasEdge(owner, attribute ThingID) []byte {
	buf := make([]byte, 1+2*thingVertexLen)
	buf[0] = byte(PrefixEdgeHas)
	copy(buf[1:], EncodeThingVertex(owner))
	copy(buf[1+thingVertexLen:], EncodeThingVertex(attribute))
	return buf
}

// EncodeHasEdgeReverse stores the reverse copy under a distinct prefix
// for efficient reverse scans.
func EncodeHasEdgeReverse(owner, attribute ThingID) []byte {
	buf := make([]byte, 1+2*thingVertexLen)
	buf[0] = byte(PrefixEdgeHasReverse)
	copy(buf[1:], EncodeThingVertex(attribute))
	copy(buf[1+thingVertexLen:], EncodeThingVertex(owner))
	return buf
}

// DecodeHasEdge parses either direction's key into (owner, attribute).
func DecodeHasEdge(b []byte) (owner, attribute ThingID, ok bool) {
	if len(b) != 1+2*thingVertexLen {
		return ThingID{}, ThingID{}, false
	}
	first, ok1 := DecodeThingVertex(b[1 : 1+thingVertexLen])
	second, ok2 := DecodeThingVertex(b[1+thingVertexLen:])
	if !ok1 || !ok2 {
		return ThingID{}, ThingID{}, false
	}
	if PrefixID(b[0]) == PrefixEdgeHasReverse {
		return second, first, true
	}
	return first, second, true
}

// EncodeLinksEdge renders PrefixID(1) || relation-vertex || player-vertex
// || role-TypeID(2 BE).
func EncodeLinksEdge(relation, player ThingID, role Type) []byte {
	buf := make([]byte, 1+2*thingVertexLen+2)
	buf[0] = byte(PrefixEdgeLinks)
	copy(buf[1:], EncodeThingVertex(relation))
	copy(buf[1+thingVertexLen:], EncodeThingVertex(player))
	binary.BigEndian.PutUint16(buf[1+2*thingVertexLen:], uint16(role.ID))
	return buf
}

func EncodeLinksEdgeReverse(relation, player ThingID, role Type) []byte {
	buf := make([]byte, 1+2*thingVertexLen+2)
	buf[0] = byte(PrefixEdgeLinksReverse)
	copy(buf[1:], EncodeThingVertex(player))
	copy(buf[1+thingVertexLen:], EncodeThingVertex(relation))
	binary.BigEndian.PutUint16(buf[1+2*thingVertexLen:], uint16(role.ID))
	return buf
}

// DecodeLinksEdge parses either direction's key into (relation, player,
// role). The role's Kind is always KindRole.
func DecodeLinksEdge(b []byte) (relation, player ThingID, role Type, ok bool) {
	if len(b) != 1+2*thingVertexLen+2 {
		return ThingID{}, ThingID{}, Type{}, false
	}
	first, ok1 := DecodeThingVertex(b[1 : 1+thingVertexLen])
	second, ok2 := DecodeThingVertex(b[1+thingVertexLen : 1+2*thingVertexLen])
	if !ok1 || !ok2 {
		return ThingID{}, ThingID{}, Type{}, false
	}
	role = Type{Kind: KindRole, ID: TypeID(binary.BigEndian.Uint16(b[1+2*thingVertexLen:]))}
	if PrefixID(b[0]) == PrefixEdgeLinksReverse {
		return second, first, role, true
	}
	return first, second, role, true
}

// EncodeTypeEdge renders a type-level edge (sub, owns, plays, relates):
// PrefixID(1) || from-type-vertex || to-type-vertex.
func EncodeTypeEdge(prefix PrefixID, from, to Type) []byte {
	buf := make([]byte, 7)
	buf[0] = byte(prefix)
	copy(buf[1:4], EncodeTypeVertex(from))
	copy(buf[4:7], EncodeTypeVertex(to))
	return buf
}

// EncodeProperty renders PrefixID(1) || Vertex || InfixID(2 BE) || suffix.
func EncodeProperty(vertex []byte, infix InfixID, suffix []byte) []byte {
	buf := make([]byte, 1+len(vertex)+2+len(suffix))
	buf[0] = byte(PrefixProperty)
	copy(buf[1:], vertex)
	binary.BigEndian.PutUint16(buf[1+len(vertex):], uint16(infix))
	copy(buf[1+len(vertex)+2:], suffix)
	return buf
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
