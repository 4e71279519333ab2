package write

import (
	"regexp"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/typeerr"
)

// validateAttributeValue enforces the regex/range/values annotations on
// an attribute type before an instance is created.
func validateAttributeValue(cache *schema.Cache, t concept.Type, v concept.Value) error {
	info, ok := cache.TypeInfo(t)
	if !ok {
		return nil
	}
	for _, ann := range info.InheritedAnnots {
		switch ann.Kind {
		case schema.AnnotationRegex:
			matched, err := regexp.MatchString(ann.Pattern, v.Str)
			if err != nil || !matched {
				return typeerr.RegexViolation(info.Label.String(), ann.Pattern, v.Str)
			}
		case schema.AnnotationRange:
			if ann.HasRangeMin && sameType(v, ann.RangeMin) && concept.Compare(v, ann.RangeMin) < 0 {
				return typeerr.RangeViolation(info.Label.String(), v.String())
			}
			if ann.HasRangeMax && sameType(v, ann.RangeMax) && concept.Compare(v, ann.RangeMax) > 0 {
				return typeerr.RangeViolation(info.Label.String(), v.String())
			}
		case schema.AnnotationValues:
			allowed := false
			for _, cand := range ann.Values {
				if sameType(v, cand) && concept.Compare(v, cand) == 0 {
					allowed = true
					break
				}
			}
			if !allowed {
				return typeerr.ValuesViolation(info.Label.String(), v.String())
			}
		}
	}
	return nil
}

func sameType(a, b concept.Value) bool { return a.Type == b.Type }

// validateHas enforces the owns-edge annotations for one new has edge
// against the read-visible state plus the current write buffer:
// cardinality on the owner side, key/unique on the attribute side.
func validateHas(w *concept.Writer, cache *schema.Cache, owner concept.ThingID, attr concept.Thing) error {
	var edge *schema.OwnsEdge
	for _, e := range cache.OwnsClosure(owner.Type()) {
		if e.Attribute == attr.ID.Type() {
			e := e
			edge = &e
			break
		}
	}
	if edge == nil {
		return nil
	}

	ownerLabel := labelOf(cache, owner.Type())
	attrLabel := labelOf(cache, attr.ID.Type())

	if card, ok := schema.FindAnnotation(edge.Annotations, schema.AnnotationCardinality); ok && card.Max >= 0 {
		count, err := countHas(w, owner, attr.ID.Type())
		if err != nil {
			return err
		}
		if count+1 > card.Max {
			return typeerr.CardinalityViolation(ownerLabel, attrLabel, card.Min, card.Max, count+1)
		}
	}

	_, isKey := schema.FindAnnotation(edge.Annotations, schema.AnnotationKey)
	_, isUnique := schema.FindAnnotation(edge.Annotations, schema.AnnotationUnique)
	if isKey || isUnique {
		owners := w.HasReverseByAttribute(attr.ID, nil)
		defer owners.Close()
		for owners.Next() {
			if owners.Tuple().Owner != owner {
				return typeerr.UniquenessViolation(ownerLabel, attrLabel, attr.Value.String())
			}
		}
		if err := owners.Err(); err != nil {
			return err
		}
	}
	if isKey {
		count, err := countHas(w, owner, attr.ID.Type())
		if err != nil {
			return err
		}
		if count > 0 {
			return typeerr.CardinalityViolation(ownerLabel, attrLabel, 1, 1, count+1)
		}
	}
	return nil
}

func countHas(w *concept.Writer, owner concept.ThingID, attrType concept.Type) (int, error) {
	rng := w.HasByOwner(owner, []concept.Type{attrType})
	defer rng.Close()
	count := 0
	for rng.Next() {
		count++
	}
	return count, rng.Err()
}

func labelOf(cache *schema.Cache, t concept.Type) string {
	if l, ok := cache.Label(t); ok {
		return l.String()
	}
	return t.String()
}
