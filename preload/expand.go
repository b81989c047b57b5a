package preload

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"relplan/schema"
)

// Fragment describes how one plan entry is fetched. Exactly one shape is
// populated: a direct entry carries the owner-side key field whose values
// drive the ids filter, a through entry carries the declared chain.
type Fragment struct {
	Relation *schema.Relation
	OwnerKey string
	Chain    []string
}

// IsThrough reports whether the fragment resolves a through-relation.
func (f Fragment) IsThrough() bool {
	return len(f.Chain) > 0
}

// Entry is one node of an expanded preload plan: the relation to load, how to
// load it, and the plan for its own nested preloads.
type Entry struct {
	Name   string
	Frag   Fragment
	Nested []Entry
}

// Expand resolves a normalized preload tree against the named schema into an
// ordered plan, one entry per tree name. A through-relation contributes its
// own entry plus an inlined entry for its first base hop carrying the rest of
// the chain (and the caller's nested subtree) as implied preloads. Entries
// from independent sources are not merged, so the same relation name may
// appear more than once at a level; each occurrence keeps its own nested
// plan.
func Expand(ctx context.Context, reg *schema.Registry, schemaName string, tree *Tree) ([]Entry, error) {
	_, span := otel.Tracer("relplan/preload").Start(ctx, "preload.expand")
	span.SetAttributes(
		attribute.String("preload.schema", schemaName),
		attribute.Int("preload.relations", tree.Len()),
	)
	defer span.End()

	entries, err := expand(reg, schemaName, tree)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return entries, nil
}

func expand(reg *schema.Registry, schemaName string, tree *Tree) ([]Entry, error) {
	if tree == nil || tree.Len() == 0 {
		return nil, nil
	}
	var entries []Entry
	for _, name := range tree.Names() {
		expanded, err := expandRelation(reg, schemaName, name, tree.Child(name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, expanded...)
	}
	return entries, nil
}

func expandRelation(reg *schema.Registry, schemaName, name string, sub *Tree) ([]Entry, error) {
	rel, err := reg.Resolve(schemaName, name)
	if err != nil {
		return nil, err
	}

	switch rel.Kind {
	case schema.KindHas, schema.KindBelongsTo:
		nested, err := expand(reg, rel.Related, sub)
		if err != nil {
			return nil, err
		}
		return []Entry{{
			Name:   name,
			Frag:   Fragment{Relation: rel, OwnerKey: rel.OwnerKey},
			Nested: nested,
		}}, nil

	case schema.KindThrough:
		nested, err := expand(reg, rel.Related, sub)
		if err != nil {
			return nil, err
		}
		self := Entry{
			Name:   name,
			Frag:   Fragment{Relation: rel, Chain: rel.Through},
			Nested: nested,
		}
		// The through entry only describes the derived fetch; loading the
		// records still requires each base hop, so the first chain element is
		// expanded alongside it with the rest of the chain as implied nested
		// preloads. An explicit preload of the same base relation stays a
		// separate entry.
		implied, err := chainTree(rel.Through[1:], sub)
		if err != nil {
			return nil, err
		}
		base, err := expandRelation(reg, schemaName, rel.Through[0], implied)
		if err != nil {
			return nil, err
		}
		return append([]Entry{self}, base...), nil

	default:
		return nil, fmt.Errorf("relation %q on schema %q: unknown kind %v", name, schemaName, rel.Kind)
	}
}

// chainTree nests the remaining chain names into a single-branch tree with
// leaf as the deepest subtree: chainTree([b, c], t) = {b: {c: t}}.
func chainTree(rest []string, leaf *Tree) (*Tree, error) {
	if len(rest) == 0 {
		if leaf == nil {
			return NewTree(), nil
		}
		return leaf.Clone(), nil
	}
	child, err := chainTree(rest[1:], leaf)
	if err != nil {
		return nil, err
	}
	out := NewTree()
	if err := out.Insert(rest[0], child); err != nil {
		return nil, err
	}
	return out, nil
}
