// Package relplan resolves declared relations between schemas into abstract
// query fragments and plans nested eager loads. The root package holds the
// record-facing facade: building related records, scoping a relation query to
// a set of owner records, and checking association load state.
package relplan

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relplan/planner"
	"relplan/schema"
)

// ErrEmptyInput indicates Assoc was called with no records.
var ErrEmptyInput = errors.New("empty input")

// ErrHeterogeneousInput indicates Assoc was called with records of more than
// one schema.
var ErrHeterogeneousInput = errors.New("heterogeneous input")

// ErrNotBuildable indicates an attempt to build a record through a
// through-relation, which is derived and read-only.
var ErrNotBuildable = errors.New("not buildable")

// Record is a schema-typed value: field values plus association slots. A slot
// holds either fetched data or a NotLoaded placeholder.
type Record struct {
	Schema string
	fields map[string]any
	assocs map[string]any
}

// NewRecord returns a record of the named schema with the given field values.
func NewRecord(schemaName string, fields map[string]any) *Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Record{
		Schema: schemaName,
		fields: fields,
		assocs: make(map[string]any),
	}
}

// Get returns the value of a field, or nil when unset.
func (r *Record) Get(field string) any {
	return r.fields[field]
}

// Set assigns a field value.
func (r *Record) Set(field string, value any) {
	r.fields[field] = value
}

// Assoc returns the association slot for a relation name. Unset slots read as
// nil, which counts as loaded; use SetNotLoaded to mark a pending fetch.
func (r *Record) Assoc(name string) any {
	return r.assocs[name]
}

// SetAssoc stores fetched association data on the record.
func (r *Record) SetAssoc(name string, value any) {
	r.assocs[name] = value
}

// SetNotLoaded marks the association slot as declared but not fetched.
func (r *Record) SetNotLoaded(rel *schema.Relation) {
	r.assocs[rel.Name] = NotLoaded{Relation: rel.Name, Cardinality: rel.Cardinality}
}

// NotLoaded is the placeholder an association slot holds before its data has
// been fetched.
type NotLoaded struct {
	Relation    string
	Cardinality schema.Cardinality
}

// Loaded reports whether an association slot value holds fetched data rather
// than a NotLoaded placeholder. A nil or empty value counts as loaded.
func Loaded(value any) bool {
	switch value.(type) {
	case NotLoaded, *NotLoaded:
		return false
	}
	return true
}

// Build returns a new, unpersisted record related to owner via the named
// relation. For has relations the related-side foreign key is pre-populated
// from the owner's key; for belongs_to the related record carries no key,
// since the owner holds the foreign key. Through-relations are derived and
// fail with ErrNotBuildable.
func Build(reg *schema.Registry, owner *Record, name string) (*Record, error) {
	rel, err := reg.Resolve(owner.Schema, name)
	if err != nil {
		return nil, err
	}
	switch rel.Kind {
	case schema.KindHas:
		return NewRecord(rel.Related, map[string]any{
			rel.RelatedKey: owner.Get(rel.OwnerKey),
		}), nil
	case schema.KindBelongsTo:
		return NewRecord(rel.Related, nil), nil
	case schema.KindThrough:
		return nil, fmt.Errorf("%w: relation %q on schema %q is a through-relation and cannot be built directly", ErrNotBuildable, name, owner.Schema)
	default:
		return nil, fmt.Errorf("relation %q on schema %q: unknown kind %v", name, owner.Schema, rel.Kind)
	}
}

// Assoc returns the ids-filter fragment for the named relation, scoped to the
// non-nil owner-side key values of records. All records must share one
// schema.
func Assoc(reg *schema.Registry, records []*Record, name string) (sq.SelectBuilder, error) {
	if len(records) == 0 {
		return sq.SelectBuilder{}, fmt.Errorf("%w: assoc requires at least one record", ErrEmptyInput)
	}
	schemaName := records[0].Schema
	for _, rec := range records[1:] {
		if rec.Schema != schemaName {
			return sq.SelectBuilder{}, fmt.Errorf("%w: got schemas %q and %q", ErrHeterogeneousInput, schemaName, rec.Schema)
		}
	}

	rel, err := reg.Resolve(schemaName, name)
	if err != nil {
		return sq.SelectBuilder{}, err
	}

	ids := make([]any, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Get(rel.OwnerKey))
	}
	return planner.IDsFilterFragment(reg, rel, ids)
}

// AssocOne is Assoc for a single record.
func AssocOne(reg *schema.Registry, record *Record, name string) (sq.SelectBuilder, error) {
	return Assoc(reg, []*Record{record}, name)
}
