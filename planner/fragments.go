// Package planner compiles relations into abstract query fragments: a join
// fragment that attaches the related table to its owner, and an ids-filter
// fragment that fetches related rows for a set of owner key values. Fragments
// are squirrel builders; serializing and executing them belongs to the
// adapter.
package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relplan/internal/sqlutil"
	"relplan/schema"
)

// JoinFragment returns a fragment selecting the related schema's fields with
// the related table joined onto the owner table. For has relations the join
// condition is related.fk = owner.pk; for belongs_to it is related.pk =
// owner.fk. The owner table always drives the join, so callers can rely on
// alias ordering. Through-relations chain every hop's join in order.
func JoinFragment(reg *schema.Registry, rel *schema.Relation) (sq.SelectBuilder, error) {
	switch rel.Kind {
	case schema.KindHas, schema.KindBelongsTo:
		return directJoin(reg, rel)
	case schema.KindThrough:
		return throughJoin(reg, rel)
	default:
		return sq.SelectBuilder{}, fmt.Errorf("relation %q: unknown kind %v", rel.Name, rel.Kind)
	}
}

// IDsFilterFragment returns a fragment selecting related rows whose owner-side
// key is in ids. Nil ids are dropped and the remainder deduplicated before the
// filter is built; an empty list still yields a well-formed filter matching no
// rows. For through-relations the fragment selects only the terminal schema,
// joins back through the intermediates to the first hop's owner key, and is
// marked DISTINCT because many-cardinality hops fan out.
func IDsFilterFragment(reg *schema.Registry, rel *schema.Relation, ids []any) (sq.SelectBuilder, error) {
	ids = CompactIDs(ids)
	switch rel.Kind {
	case schema.KindHas, schema.KindBelongsTo:
		return directIDsFilter(reg, rel, ids)
	case schema.KindThrough:
		return throughIDsFilter(reg, rel, ids)
	default:
		return sq.SelectBuilder{}, fmt.Errorf("relation %q: unknown kind %v", rel.Name, rel.Kind)
	}
}

// CompactIDs drops nil ids and deduplicates the rest, preserving first-seen
// order. Unhashable values are kept as-is.
func CompactIDs(ids []any) []any {
	out := make([]any, 0, len(ids))
	seen := make(map[any]struct{}, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if hashable(id) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, id)
	}
	return out
}

func hashable(v any) bool {
	switch v.(type) {
	case []byte, []any, map[string]any:
		return false
	}
	return true
}

func directJoin(reg *schema.Registry, rel *schema.Relation) (sq.SelectBuilder, error) {
	owner, err := reg.Schema(rel.Owner)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	relatedTable, err := reg.RelatedTable(rel)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	cols, err := relatedColumns(reg, rel, relatedTable)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	return sq.Select(cols...).
		From(sqlutil.QuoteIdentifier(owner.Table)).
		Join(joinClause(rel, relatedTable, owner.Table)), nil
}

func directIDsFilter(reg *schema.Registry, rel *schema.Relation, ids []any) (sq.SelectBuilder, error) {
	relatedTable, err := reg.RelatedTable(rel)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	related, err := reg.RelatedSchema(rel)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	cols := make([]string, len(related.Fields))
	for i, f := range related.Fields {
		cols[i] = sqlutil.QuoteIdentifier(f)
	}
	return sq.Select(cols...).
		From(sqlutil.QuoteIdentifier(relatedTable)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(rel.RelatedKey): ids}), nil
}

// joinClause renders "related ON related.related_key = owner.owner_key" for a
// direct relation hop, with ownerTable naming the side already present in the
// query.
func joinClause(rel *schema.Relation, relatedTable, ownerTable string) string {
	return fmt.Sprintf("%s ON %s = %s",
		sqlutil.QuoteIdentifier(relatedTable),
		sqlutil.Qualify(relatedTable, rel.RelatedKey),
		sqlutil.Qualify(ownerTable, rel.OwnerKey),
	)
}

// relatedColumns returns the related schema's field columns qualified with the
// effective related table.
func relatedColumns(reg *schema.Registry, rel *schema.Relation, table string) ([]string, error) {
	related, err := reg.RelatedSchema(rel)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(related.Fields))
	for i, f := range related.Fields {
		cols[i] = sqlutil.Qualify(table, f)
	}
	return cols, nil
}
