package write

import (
	"fmt"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/typeerr"
)

// DeleteExecutable removes bound instances and edges per input row.
// Instance deletion tombstones the vertex and prunes every incident
// edge; has/links constraints in the block delete just those edges.
type DeleteExecutable struct {
	// Things are slots whose bound instance is removed entirely.
	Things []int

	// HasEdges / LinksEdges are edge-only removals.
	HasEdges   [][2]int
	LinksEdges []ConnectionInstruction
}

// CompileDelete lowers a delete block: bare deleted variables remove the
// instance; has/links constraints remove only the edge.
func CompileDelete(conj *pattern.Conjunction, deleted []pattern.VariableID, positions map[pattern.VariableID]int) (*DeleteExecutable, error) {
	x := &DeleteExecutable{}
	edgeOnly := map[pattern.VariableID]bool{}

	for i := range conj.Constraints {
		cons := &conj.Constraints[i]
		switch cons.Kind {
		case pattern.ConstraintHas:
			a, okA := positions[cons.Var1]
			b, okB := positions[cons.Var2]
			if !okA || !okB {
				return nil, fmt.Errorf("write: delete has references unbound variable")
			}
			x.HasEdges = append(x.HasEdges, [2]int{a, b})
			edgeOnly[cons.Var2] = true

		case pattern.ConstraintLinks:
			a, okA := positions[cons.Var1]
			b, okB := positions[cons.Var2]
			if !okA || !okB {
				return nil, fmt.Errorf("write: delete links references unbound variable")
			}
			conn := ConnectionInstruction{Kind: ConnectLinks, A: a, B: b}
			if slot, ok := positions[cons.Var3]; ok {
				conn.RoleSlot, conn.HasRoleSlot = slot, true
			}
			x.LinksEdges = append(x.LinksEdges, conn)
			edgeOnly[cons.Var2] = true
		}
	}

	for _, v := range deleted {
		if edgeOnly[v] {
			continue
		}
		slot, ok := positions[v]
		if !ok {
			return nil, fmt.Errorf("write: delete references unbound variable")
		}
		x.Things = append(x.Things, slot)
	}
	return x, nil
}

// Execute applies the removals for one input row. Cascade annotations on
// a deleted relation's type propagate the delete to relations left
// playerless.
func (x *DeleteExecutable) Execute(w *concept.Writer, cache *schema.Cache, in row.Row) (row.Row, error) {
	for _, e := range x.HasEdges {
		owner, attr := in.Values[e[0]], in.Values[e[1]]
		if owner.Kind != row.KindThing || attr.Kind != row.KindThing {
			return in, typeerr.DanglingReference(fmt.Sprintf("slot %d/%d", e[0], e[1]))
		}
		w.DeleteHas(owner.Thing.ID, attr.Thing.ID)
	}
	for _, e := range x.LinksEdges {
		rel, player := in.Values[e.A], in.Values[e.B]
		if rel.Kind != row.KindThing || player.Kind != row.KindThing {
			return in, typeerr.DanglingReference(fmt.Sprintf("slot %d/%d", e.A, e.B))
		}
		role := e.Role
		if e.HasRoleSlot {
			if rv := in.Values[e.RoleSlot]; rv.Kind == row.KindType {
				role = rv.Type
			}
		}
		w.DeleteLinks(rel.Thing.ID, player.Thing.ID, role)
	}
	for _, slot := range x.Things {
		v := in.Values[slot]
		if v.Kind != row.KindThing {
			return in, typeerr.DanglingReference(fmt.Sprintf("slot %d", slot))
		}
		if err := deleteWithCascade(w, cache, v.Thing.ID); err != nil {
			return in, err
		}
	}
	return in, nil
}

// deleteWithCascade removes an instance; relations that cascade and lose
// their last player are removed too.
func deleteWithCascade(w *concept.Writer, cache *schema.Cache, id concept.ThingID) error {
	var orphanCandidates []concept.ThingID
	if id.Kind != concept.KindAttribute {
		links := w.LinksByPlayer(id)
		for links.Next() {
			orphanCandidates = append(orphanCandidates, links.Tuple().Relation)
		}
		if err := links.Err(); err != nil {
			links.Close()
			return err
		}
		links.Close()
	}

	if err := w.DeleteThing(id); err != nil {
		return err
	}

	for _, rel := range orphanCandidates {
		info, ok := cache.TypeInfo(rel.Type())
		if !ok {
			continue
		}
		if _, cascade := schema.FindAnnotation(info.InheritedAnnots, schema.AnnotationCascade); !cascade {
			continue
		}
		remaining := w.LinksByRelation(rel)
		hasPlayers := remaining.Next()
		err := remaining.Err()
		remaining.Close()
		if err != nil {
			return err
		}
		if !hasPlayers {
			if err := deleteWithCascade(w, cache, rel); err != nil {
				return err
			}
		}
	}
	return nil
}
