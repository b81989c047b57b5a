// Package exec runs planned query fragments against a database handle and
// attaches the returned rows to their owner records. It is the thin adapter
// seam between the pure planners and database/sql; everything above it stays
// free of I/O.
package exec

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relplan"
	"relplan/planner"
	"relplan/preload"
	"relplan/schema"
)

// Querier abstracts SQL execution so callers can swap in transactions or
// instrumented handles.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Row is one fetched row keyed by column name.
type Row map[string]any

// Runner executes fragments and preload plans.
type Runner struct {
	db  Querier
	reg *schema.Registry
}

// NewRunner returns a runner over the given handle and registry.
func NewRunner(db Querier, reg *schema.Registry) *Runner {
	return &Runner{db: db, reg: reg}
}

// Query serializes a fragment and returns all rows it produces.
func (r *Runner) Query(ctx context.Context, frag sq.Sqlizer) ([]Row, error) {
	query, args, err := frag.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize fragment: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Preload executes an expanded plan against a set of owner records, filling
// each record's association slots. Through entries carry no work of their
// own: their data arrives via the inlined base-relation entries the planner
// emits alongside them.
func (r *Runner) Preload(ctx context.Context, owners []*relplan.Record, plan []preload.Entry) error {
	if len(owners) == 0 {
		return nil
	}
	for _, entry := range plan {
		if entry.Frag.IsThrough() {
			continue
		}
		if err := r.preloadEntry(ctx, owners, entry); err != nil {
			return fmt.Errorf("preload %q: %w", entry.Name, err)
		}
	}
	return nil
}

func (r *Runner) preloadEntry(ctx context.Context, owners []*relplan.Record, entry preload.Entry) error {
	rel := entry.Frag.Relation

	ids := make([]any, 0, len(owners))
	for _, owner := range owners {
		ids = append(ids, owner.Get(entry.Frag.OwnerKey))
	}
	frag, err := planner.IDsFilterFragment(r.reg, rel, ids)
	if err != nil {
		return err
	}
	rows, err := r.Query(ctx, frag)
	if err != nil {
		return err
	}

	// Group fetched rows by the related-side key. Keys compare by string
	// form so driver-dependent integer widths still match.
	groups := make(map[string][]*relplan.Record)
	var children []*relplan.Record
	for _, row := range rows {
		child := relplan.NewRecord(rel.Related, row)
		children = append(children, child)
		key := fmt.Sprint(row[rel.RelatedKey])
		groups[key] = append(groups[key], child)
	}

	if len(entry.Nested) > 0 {
		if err := r.Preload(ctx, children, entry.Nested); err != nil {
			return err
		}
	}

	for _, owner := range owners {
		ownerID := owner.Get(entry.Frag.OwnerKey)
		if ownerID == nil {
			continue
		}
		matched := groups[fmt.Sprint(ownerID)]
		if rel.Cardinality == schema.One {
			if len(matched) > 0 {
				owner.SetAssoc(entry.Name, matched[0])
			} else {
				owner.SetAssoc(entry.Name, nil)
			}
			continue
		}
		if matched == nil {
			matched = []*relplan.Record{}
		}
		owner.SetAssoc(entry.Name, matched)
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
