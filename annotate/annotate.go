// Package annotate implements the type-annotation engine: for a Block,
// compute a TypeAnnotations mapping every variable to its permitted type
// set and every binary constraint to its permitted type-pair relation,
// under conjunction/disjunction/negation/optional scoping. Propagation
// iterates to a fixpoint and only ever narrows.
package annotate

import (
	"sort"

	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/typeerr"
	"github.com/typedb/typedb-sub006/typeset"

	"github.com/typedb/typedb-sub006/concept"
)

// PairRelation is the bidirectional map<Type -> sorted list<Type>> a
// binary constraint's TypeAnnotations carries, e.g. for Has(O, A):
// owner-type -> permitted attribute-types.
type PairRelation struct {
	forward map[concept.Type][]concept.Type // e.g. owner -> attrs
	reverse map[concept.Type][]concept.Type // e.g. attr -> owners
}

func newPairRelation() *PairRelation {
	return &PairRelation{forward: map[concept.Type][]concept.Type{}, reverse: map[concept.Type][]concept.Type{}}
}

func (p *PairRelation) add(a, b concept.Type) {
	if !containsType(p.forward[a], b) {
		p.forward[a] = insertSorted(p.forward[a], b)
	}
	if !containsType(p.reverse[b], a) {
		p.reverse[b] = insertSorted(p.reverse[b], a)
	}
}

func (p *PairRelation) Forward(a concept.Type) []concept.Type { return p.forward[a] }
func (p *PairRelation) Reverse(b concept.Type) []concept.Type { return p.reverse[b] }

func (p *PairRelation) IsEmpty() bool { return len(p.forward) == 0 }

func containsType(s []concept.Type, t concept.Type) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}

func insertSorted(s []concept.Type, t concept.Type) []concept.Type {
	i := sort.Search(len(s), func(i int) bool { return !s[i].Less(t) })
	s = append(s, concept.Type{})
	copy(s[i+1:], s[i:])
	s[i] = t
	return s
}

// TypeAnnotations is the per-query type-inference result.
type TypeAnnotations struct {
	variableTypes map[pattern.VariableID]*typeset.Set
	pairs         map[*pattern.Constraint]*PairRelation
}

func newTypeAnnotations() *TypeAnnotations {
	return &TypeAnnotations{
		variableTypes: map[pattern.VariableID]*typeset.Set{},
		pairs:         map[*pattern.Constraint]*PairRelation{},
	}
}

func (a *TypeAnnotations) VariableTypes(v pattern.VariableID) *typeset.Set {
	s, ok := a.variableTypes[v]
	if !ok {
		s = typeset.New()
		a.variableTypes[v] = s
	}
	return s
}

func (a *TypeAnnotations) ConstraintPairs(c *pattern.Constraint) *PairRelation {
	p, ok := a.pairs[c]
	if !ok {
		p = newPairRelation()
		a.pairs[c] = p
	}
	return p
}

// Annotate computes TypeAnnotations for the whole block: seed from
// explicit type constraints, propagate through binary constraints to a
// fixpoint, union disjunction branches, then annotate negation/optional
// interiors without widening the outer scope.
func Annotate(block *pattern.Block, cache *schema.Cache) (*TypeAnnotations, error) {
	result := newTypeAnnotations()

	// Step 1+3: seed and fixpoint the root conjunction (and any nested
	// disjunction branches feeding back into it) until no set narrows
	// further.
	if err := annotateConjunction(block.Root, block, cache, result, true); err != nil {
		return nil, err
	}

	// Step 5: negation/optional interiors are annotated in a second pass,
	// seeded from the now-finalized outer result, but never feed back into it.
	if err := annotateNestedNonWidening(block.Root, block, cache, result); err != nil {
		return nil, err
	}

	return result, nil
}

// annotateConjunction seeds every variable referenced in c, then iterates
// binary-constraint propagation to a fixpoint (steps 2-3). If widenOuter is
// true, disjunction branches' unioned results are merged back into the
// caller's variable sets (step 4); negation/optional children are not
// visited here but afterwards, by annotateNestedNonWidening.
func annotateConjunction(c *pattern.Conjunction, block *pattern.Block, cache *schema.Cache, result *TypeAnnotations, widenOuter bool) error {
	// Step 1: seed.
	for _, cons := range c.Constraints {
		seedConstraint(cons, block, cache, result)
	}

	// Step 3: fixpoint.
	for {
		changed := false
		for i := range c.Constraints {
			cons := &c.Constraints[i]
			narrowed, err := propagate(cons, block, cache, result)
			if err != nil {
				return err
			}
			changed = changed || narrowed
		}
		if !changed {
			break
		}
	}

	// Step 4: disjunctions union their branches' per-variable sets back
	// into the outer scope the branches share.
	for _, n := range c.Nested {
		if n.Kind != pattern.NestedDisjunction {
			continue
		}
		union := map[pattern.VariableID]*typeset.Set{}
		for _, branch := range n.Branches {
			if err := annotateConjunction(branch, block, cache, result, true); err != nil {
				return err
			}
			for vid, set := range result.variableTypes {
				if _, already := union[vid]; !already {
					union[vid] = set.Clone()
				} else {
					union[vid].Union(set)
				}
			}
		}
		if widenOuter {
			for vid, set := range union {
				result.VariableTypes(vid).Union(set)
			}
		}
	}

	// Step 6: empty-set contradiction check over everything seeded/narrowed
	// at this scope. Value-category variables (expression and function
	// bindings, comparison operands) carry no type sets and are exempt.
	for _, cons := range c.Constraints {
		if !typeConstraining(cons.Kind) {
			continue
		}
		for _, vid := range cons.Variables() {
			set := result.VariableTypes(vid)
			if set.IsEmpty() {
				return emptySetError(block, vid, c.Constraints)
			}
		}
	}
	return nil
}

// typeConstraining reports whether a constraint kind participates in type
// narrowing, and so whether an empty set on its variables is a
// contradiction rather than simply a value-category binding.
func typeConstraining(k pattern.ConstraintKind) bool {
	switch k {
	case pattern.ConstraintComparison, pattern.ConstraintExpressionBinding,
		pattern.ConstraintFunctionCallBinding, pattern.ConstraintValue,
		pattern.ConstraintIid:
		return false
	default:
		return true
	}
}

// annotateNestedNonWidening recurses into negation/optional children,
// seeding them from the already-finalized outer result, without ever
// narrowing or widening the outer variable sets (step 5).
func annotateNestedNonWidening(c *pattern.Conjunction, block *pattern.Block, cache *schema.Cache, result *TypeAnnotations) error {
	for _, n := range c.Nested {
		if n.Kind == pattern.NestedDisjunction {
			continue // already handled by annotateConjunction itself
		}
		for _, branch := range n.Branches {
			// The inner scope shares the outer VariableID space, so interior
			// propagation changes outer sets in place; snapshot them first
			// and restore them once the interior is annotated.
			outer := make(map[pattern.VariableID]*typeset.Set, len(result.variableTypes))
			for vid, set := range result.variableTypes {
				outer[vid] = set.Clone()
			}
			if err := annotateConjunctionNoWiden(branch, block, cache, result); err != nil {
				return err
			}
			if err := annotateNestedNonWidening(branch, block, cache, result); err != nil {
				return err
			}
			for vid, set := range outer {
				result.variableTypes[vid] = set
			}
		}
	}
	return nil
}

func annotateConjunctionNoWiden(c *pattern.Conjunction, block *pattern.Block, cache *schema.Cache, result *TypeAnnotations) error {
	for _, cons := range c.Constraints {
		seedConstraint(cons, block, cache, result)
	}
	for {
		changed := false
		for i := range c.Constraints {
			cons := &c.Constraints[i]
			narrowed, err := propagate(cons, block, cache, result)
			if err != nil {
				return err
			}
			changed = changed || narrowed
		}
		if !changed {
			break
		}
	}
	for _, cons := range c.Constraints {
		if !typeConstraining(cons.Kind) {
			continue
		}
		for _, vid := range cons.Variables() {
			if result.VariableTypes(vid).IsEmpty() {
				return emptySetError(block, vid, c.Constraints)
			}
		}
	}
	return nil
}

func emptySetError(block *pattern.Block, vid pattern.VariableID, constraints []pattern.Constraint) error {
	v := block.Registry.Get(vid)
	chain := make([]string, 0, len(constraints))
	for _, c := range constraints {
		chain = append(chain, c.String())
	}
	return typeerr.EmptyTypeSet(v.String(), chain, nil)
}

// seedConstraint implements step 1: Label/Kind/Sub/Isa seed a variable's
// type set directly from schema lookups, independent of any other
// constraint in the conjunction.
func seedConstraint(c pattern.Constraint, block *pattern.Block, cache *schema.Cache, result *TypeAnnotations) {
	switch c.Kind {
	case pattern.ConstraintLabel:
		if !c.HasParam1 {
			return
		}
		v := block.Parameters.Value(c.Param1)
		if t, ok := cache.Resolve(v.Str); ok {
			result.VariableTypes(c.Var1).Add(t)
		}
	case pattern.ConstraintKindConstraint:
		// Seed with every type of the requested Kind.
		for _, ti := range allOfKind(cache, c.KindValue) {
			result.VariableTypes(c.Var1).Add(ti)
		}
	case pattern.ConstraintSub:
		// $sub sub $super: seed super's variable with super's own subtypes
		// closure isn't known yet without a concrete super type; nothing to
		// seed here until propagate() runs once super narrows.
	case pattern.ConstraintIsa:
		// $thing isa $type: no seeding beyond what Has/Links propagate;
		// if $type is already singleton (e.g. from a prior Label), isa
		// narrows $thing's category but type inference for $thing proceeds
		// via propagate().
	}
}

func allOfKind(cache *schema.Cache, k concept.Kind) []concept.Type {
	var out []concept.Type
	for _, ti := range cacheAllTypes(cache) {
		if ti.Type.Kind == k {
			out = append(out, ti.Type)
		}
	}
	return out
}

// cacheAllTypes is a small helper so annotate doesn't need a new Cache
// method purely for iteration; schema.Cache already exposes TypeInfo by
// type, so we reconstruct the full list via Subtypes of every kind root.
// In practice callers of Annotate pass a cache built by schema.Schema.Build,
// which keeps c.types private — so we expose it through a dedicated method.
func cacheAllTypes(cache *schema.Cache) []schema.TypeInfo {
	return cache.AllTypes()
}

// propagate implements step 2: narrow variable sets through binary
// constraints using schema lookups. Returns whether anything narrowed, so
// the fixpoint loop knows when to stop (step 3).
func propagate(c *pattern.Constraint, block *pattern.Block, cache *schema.Cache, result *TypeAnnotations) (bool, error) {
	switch c.Kind {
	case pattern.ConstraintHas:
		return propagateHas(c, result, cache)
	case pattern.ConstraintLinks:
		return propagateLinks(c, result, cache)
	case pattern.ConstraintSub:
		return propagateSub(c, result, cache)
	case pattern.ConstraintOwns:
		return propagateOwns(c, result, cache)
	case pattern.ConstraintPlays:
		return propagatePlays(c, result, cache)
	case pattern.ConstraintRelates:
		return propagateRelates(c, result, cache)
	case pattern.ConstraintIsa:
		return propagateIsa(c, result)
	default:
		return false, nil
	}
}

// propagateHas narrows owner/attribute variable sets to the projections of
// the transitive owns-edge relation, and records the pair relation.
func propagateHas(c *pattern.Constraint, result *TypeAnnotations, cache *schema.Cache) (bool, error) {
	ownerSet := result.VariableTypes(c.Var1)
	attrSet := result.VariableTypes(c.Var2)
	pairs := result.ConstraintPairs(c)

	allowedOwners := typeset.New()
	allowedAttrs := typeset.New()

	candidates := ownerSet.Slice()
	if ownerSet.IsEmpty() {
		// Owner unconstrained so far: derive candidate owners from every
		// type that owns *something* currently reachable by attrSet, or if
		// attrSet is also empty, from every owns edge in the schema.
		candidates = ownersOfAny(cache, attrSet)
	}
	before := ownerSet.Len() + attrSet.Len()
	for _, owner := range candidates {
		for _, edge := range cache.OwnsClosure(owner) {
			if !attrSet.IsEmpty() && !attrSet.Contains(edge.Attribute) {
				continue
			}
			allowedOwners.Add(owner)
			allowedAttrs.Add(edge.Attribute)
			pairs.add(owner, edge.Attribute)
		}
	}
	if !ownerSet.IsEmpty() {
		ownerSet.Intersect(allowedOwners)
	} else {
		ownerSet.Union(allowedOwners)
	}
	if !attrSet.IsEmpty() {
		attrSet.Intersect(allowedAttrs)
	} else {
		attrSet.Union(allowedAttrs)
	}
	after := ownerSet.Len() + attrSet.Len()
	return after != before, nil
}

func ownersOfAny(cache *schema.Cache, attrSet *typeset.Set) []concept.Type {
	seen := map[concept.Type]bool{}
	var out []concept.Type
	add := func(t concept.Type) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if attrSet.IsEmpty() {
		for _, ti := range cache.AllTypes() {
			if ti.Type.Kind == concept.KindEntity || ti.Type.Kind == concept.KindRelation {
				for _, e := range cache.OwnsClosure(ti.Type) {
					add(e.Owner)
				}
			}
		}
		return out
	}
	attrSet.ForEach(func(a concept.Type) {
		for _, e := range cache.OwnsClosureReverse(a) {
			add(e.Owner)
		}
	})
	return out
}

// propagateLinks narrows relation/player/role variable sets using the
// relates ∘ plays closure.
func propagateLinks(c *pattern.Constraint, result *TypeAnnotations, cache *schema.Cache) (bool, error) {
	relSet := result.VariableTypes(c.Var1)
	playerSet := result.VariableTypes(c.Var2)
	roleSet := result.VariableTypes(c.Var3)
	pairs := result.ConstraintPairs(c)

	relCandidates := relSet.Slice()
	if relSet.IsEmpty() {
		for _, ti := range cache.AllTypes() {
			if ti.Type.Kind == concept.KindRelation {
				relCandidates = append(relCandidates, ti.Type)
			}
		}
	}

	before := relSet.Len() + playerSet.Len() + roleSet.Len()
	allowedRel := typeset.New()
	allowedPlayer := typeset.New()
	allowedRole := typeset.New()
	for _, rel := range relCandidates {
		for _, pr := range cache.RelatesPlaysClosure(rel) {
			if !playerSet.IsEmpty() && !playerSet.Contains(pr.Player) {
				continue
			}
			if !roleSet.IsEmpty() && !roleSet.Contains(pr.Role) {
				continue
			}
			allowedRel.Add(rel)
			allowedPlayer.Add(pr.Player)
			allowedRole.Add(pr.Role)
			pairs.add(rel, pr.Role)
		}
	}
	narrowOrWiden(relSet, allowedRel)
	narrowOrWiden(playerSet, allowedPlayer)
	narrowOrWiden(roleSet, allowedRole)
	after := relSet.Len() + playerSet.Len() + roleSet.Len()
	return after != before, nil
}

func narrowOrWiden(current, allowed *typeset.Set) {
	if current.IsEmpty() {
		current.Union(allowed)
	} else {
		current.Intersect(allowed)
	}
}

func propagateSub(c *pattern.Constraint, result *TypeAnnotations, cache *schema.Cache) (bool, error) {
	subSet := result.VariableTypes(c.Var1)
	superSet := result.VariableTypes(c.Var2)
	before := subSet.Len() + superSet.Len()

	allowedSub := typeset.New()
	allowedSuper := typeset.New()
	supers := superSet.Slice()
	if superSet.IsEmpty() {
		for _, ti := range cache.AllTypes() {
			supers = append(supers, ti.Type)
		}
	}
	for _, super := range supers {
		for _, sub := range cache.Subtypes(super) {
			if !subSet.IsEmpty() && !subSet.Contains(sub) {
				continue
			}
			allowedSub.Add(sub)
			allowedSuper.Add(super)
		}
	}
	narrowOrWiden(subSet, allowedSub)
	narrowOrWiden(superSet, allowedSuper)
	after := subSet.Len() + superSet.Len()
	return after != before, nil
}

func propagateOwns(c *pattern.Constraint, result *TypeAnnotations, cache *schema.Cache) (bool, error) {
	return propagateHas(c, result, cache) // same owns-edge relation, type-level
}

func propagatePlays(c *pattern.Constraint, result *TypeAnnotations, cache *schema.Cache) (bool, error) {
	playerSet := result.VariableTypes(c.Var1)
	roleSet := result.VariableTypes(c.Var2)
	before := playerSet.Len() + roleSet.Len()
	allowedPlayer := typeset.New()
	allowedRole := typeset.New()
	for _, ti := range cache.AllTypes() {
		if ti.Type.Kind != concept.KindRelation {
			continue
		}
		for _, pr := range cache.RelatesPlaysClosure(ti.Type) {
			if !playerSet.IsEmpty() && !playerSet.Contains(pr.Player) {
				continue
			}
			if !roleSet.IsEmpty() && !roleSet.Contains(pr.Role) {
				continue
			}
			allowedPlayer.Add(pr.Player)
			allowedRole.Add(pr.Role)
		}
	}
	narrowOrWiden(playerSet, allowedPlayer)
	narrowOrWiden(roleSet, allowedRole)
	after := playerSet.Len() + roleSet.Len()
	return after != before, nil
}

func propagateRelates(c *pattern.Constraint, result *TypeAnnotations, cache *schema.Cache) (bool, error) {
	relSet := result.VariableTypes(c.Var1)
	roleSet := result.VariableTypes(c.Var2)
	before := relSet.Len() + roleSet.Len()
	allowedRel := typeset.New()
	allowedRole := typeset.New()
	rels := relSet.Slice()
	if relSet.IsEmpty() {
		for _, ti := range cache.AllTypes() {
			if ti.Type.Kind == concept.KindRelation {
				rels = append(rels, ti.Type)
			}
		}
	}
	for _, rel := range rels {
		for _, pr := range cache.RelatesPlaysClosure(rel) {
			if !roleSet.IsEmpty() && !roleSet.Contains(pr.Role) {
				continue
			}
			allowedRel.Add(rel)
			allowedRole.Add(pr.Role)
		}
	}
	narrowOrWiden(relSet, allowedRel)
	narrowOrWiden(roleSet, allowedRole)
	after := relSet.Len() + roleSet.Len()
	return after != before, nil
}

// propagateIsa narrows $thing's type set to exactly $type's set, and vice
// versa (isa is type-equality once $type narrows to a singleton set, but
// during fixpoint it's simplest to treat it as direct intersection).
func propagateIsa(c *pattern.Constraint, result *TypeAnnotations) (bool, error) {
	thingSet := result.VariableTypes(c.Var1)
	typeSet := result.VariableTypes(c.Var2)
	before := thingSet.Len() + typeSet.Len()
	if thingSet.IsEmpty() {
		thingSet.Union(typeSet)
	} else if typeSet.IsEmpty() {
		typeSet.Union(thingSet)
	} else {
		thingSet.Intersect(typeSet)
		typeSet.Intersect(thingSet)
	}
	after := thingSet.Len() + typeSet.Len()
	return after != before, nil
}
