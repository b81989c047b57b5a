package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relplan/internal/sqlutil"
	"relplan/schema"
)

// chainTables returns the physical table of each position along a resolved
// chain: index 0 is the owner table, index i the effective related table of
// hop i.
func chainTables(reg *schema.Registry, rel *schema.Relation) ([]string, error) {
	owner, err := reg.Schema(rel.Owner)
	if err != nil {
		return nil, err
	}
	hops := rel.Hops()
	if len(hops) == 0 {
		return nil, fmt.Errorf("through relation %q on schema %q has no resolved chain", rel.Name, rel.Owner)
	}
	tables := make([]string, len(hops)+1)
	tables[0] = owner.Table
	for i, hop := range hops {
		t, err := reg.RelatedTable(hop)
		if err != nil {
			return nil, err
		}
		tables[i+1] = t
	}
	return tables, nil
}

// throughJoin chains every hop's join from the owner outward:
// owner -> hop1 -> hop2 -> ... -> terminal.
func throughJoin(reg *schema.Registry, rel *schema.Relation) (sq.SelectBuilder, error) {
	tables, err := chainTables(reg, rel)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	hops := rel.Hops()
	final := tables[len(tables)-1]
	cols, err := relatedColumns(reg, hops[len(hops)-1], final)
	if err != nil {
		return sq.SelectBuilder{}, err
	}

	builder := sq.Select(cols...).From(sqlutil.QuoteIdentifier(tables[0]))
	for i, hop := range hops {
		builder = builder.Join(joinClause(hop, tables[i+1], tables[i]))
	}
	return builder, nil
}

// throughIDsFilter selects only the terminal schema, joined backward through
// the intermediates to the first hop's owner-side key. The result is always
// DISTINCT: a many-cardinality hop composed with another hop duplicates
// terminal rows, and when every hop is to-one the marker is a no-op.
func throughIDsFilter(reg *schema.Registry, rel *schema.Relation, ids []any) (sq.SelectBuilder, error) {
	tables, err := chainTables(reg, rel)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	hops := rel.Hops()
	final := tables[len(tables)-1]
	cols, err := relatedColumns(reg, hops[len(hops)-1], final)
	if err != nil {
		return sq.SelectBuilder{}, err
	}

	builder := sq.Select(cols...).
		Distinct().
		From(sqlutil.QuoteIdentifier(final))
	for i := len(hops) - 1; i >= 0; i-- {
		hop := hops[i]
		// Joining back toward the owner: the hop's related table is already
		// in the query, its owner-side table is the one being attached.
		builder = builder.Join(fmt.Sprintf("%s ON %s = %s",
			sqlutil.QuoteIdentifier(tables[i]),
			sqlutil.Qualify(tables[i+1], hop.RelatedKey),
			sqlutil.Qualify(tables[i], hop.OwnerKey),
		))
	}
	return builder.Where(sq.Eq{sqlutil.Qualify(tables[0], hops[0].OwnerKey): ids}), nil
}
