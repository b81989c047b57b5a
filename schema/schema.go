// Package schema models entity schemas and the named relations between them:
// direct has-one/has-many and belongs-to links, plus derived through-relations
// that traverse a chain of existing relations. Schemas are collected into an
// immutable Registry built once at startup.
package schema

import (
	"fmt"
)

// Cardinality reports whether a relation yields at most one related record or
// possibly many.
type Cardinality int

const (
	// One means the relation resolves to at most one related record.
	One Cardinality = iota + 1
	// Many means the relation resolves to zero or more related records.
	Many
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

// Kind identifies the relation variant. The set is closed: every consumer
// switches exhaustively over it so a new variant is a compile-visible change.
type Kind int

const (
	// KindHas covers has_one and has_many: the related schema holds the
	// foreign key pointing back at the owner.
	KindHas Kind = iota + 1
	// KindBelongsTo means the owner holds the foreign key pointing at the
	// related schema.
	KindBelongsTo
	// KindThrough is a derived relation expressed as a chain of existing
	// relation names.
	KindThrough
)

func (k Kind) String() string {
	switch k {
	case KindHas:
		return "has"
	case KindBelongsTo:
		return "belongs_to"
	case KindThrough:
		return "through"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Relation describes a declared, named link from one schema to another.
//
// For KindHas, OwnerKey is the owner's primary key and RelatedKey is the
// foreign key column on the related schema. For KindBelongsTo, OwnerKey is the
// foreign key column on the owner and RelatedKey is the related schema's
// primary key. For KindThrough only Through is declared; Related, RelatedKey,
// Cardinality and the flattened hop list are derived when the registry is
// built and are immutable afterwards.
type Relation struct {
	Name  string
	Kind  Kind
	Owner string

	OwnerKey   string
	Related    string
	RelatedKey string

	// RelatedTable overrides the related schema's physical table name for
	// every query fragment built from this relation.
	RelatedTable string

	Cardinality Cardinality

	// Through is the ordered chain of relation names, length >= 2. The first
	// name resolves on the owner schema, each subsequent name on the schema
	// reached by the previous hop.
	Through []string

	hops []*Relation
}

// Hops returns the flattened chain of direct relations a through-relation
// traverses. Nested through hops are inlined. It is nil for direct relations.
func (r *Relation) Hops() []*Relation {
	return r.hops
}

// IsThrough reports whether the relation is a derived through-relation.
func (r *Relation) IsThrough() bool {
	return r.Kind == KindThrough
}

// Schema declares an entity: its physical table, primary key, field set and
// relation table. Zero values for Table and PrimaryKey are filled with
// defaults (pluralized name, "id") when the registry is built.
type Schema struct {
	Name       string
	Table      string
	PrimaryKey string
	Fields     []string

	relations []*Relation
	fieldSet  map[string]struct{}
}

// New returns a schema declaration with the given name and fields.
func New(name string, fields ...string) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// WithTable overrides the schema's default physical table name.
func (s *Schema) WithTable(table string) *Schema {
	s.Table = table
	return s
}

// WithPrimaryKey overrides the schema's default primary key field.
func (s *Schema) WithPrimaryKey(field string) *Schema {
	s.PrimaryKey = field
	return s
}

// RelationOption customizes a relation declaration.
type RelationOption func(*Relation)

// ForeignKey overrides the derived foreign key field. For has relations the
// foreign key lives on the related schema; for belongs_to it lives on the
// owner.
func ForeignKey(field string) RelationOption {
	return func(r *Relation) {
		switch r.Kind {
		case KindHas:
			r.RelatedKey = field
		case KindBelongsTo:
			r.OwnerKey = field
		case KindThrough:
			// Through keys are derived from the chain; ignored.
		}
	}
}

// RelatedTable overrides the physical table the relation reads from,
// independent of the related schema's own table name.
func RelatedTable(table string) RelationOption {
	return func(r *Relation) {
		r.RelatedTable = table
	}
}

// HasOne declares a to-one relation whose foreign key lives on the related
// schema.
func (s *Schema) HasOne(name, related string, opts ...RelationOption) *Schema {
	return s.has(name, related, One, opts)
}

// HasMany declares a to-many relation whose foreign key lives on the related
// schema.
func (s *Schema) HasMany(name, related string, opts ...RelationOption) *Schema {
	return s.has(name, related, Many, opts)
}

func (s *Schema) has(name, related string, card Cardinality, opts []RelationOption) *Schema {
	rel := &Relation{
		Name:        name,
		Kind:        KindHas,
		Owner:       s.Name,
		Related:     related,
		Cardinality: card,
	}
	for _, opt := range opts {
		opt(rel)
	}
	s.relations = append(s.relations, rel)
	return s
}

// BelongsTo declares a to-one relation whose foreign key lives on the owner.
func (s *Schema) BelongsTo(name, related string, opts ...RelationOption) *Schema {
	rel := &Relation{
		Name:        name,
		Kind:        KindBelongsTo,
		Owner:       s.Name,
		Related:     related,
		Cardinality: One,
	}
	for _, opt := range opts {
		opt(rel)
	}
	s.relations = append(s.relations, rel)
	return s
}

// HasThrough declares a derived relation that traverses the named chain of
// relations, starting on this schema. The chain must have at least two
// elements; keys and cardinality are derived when the registry is built.
func (s *Schema) HasThrough(name string, chain ...string) *Schema {
	rel := &Relation{
		Name:    name,
		Kind:    KindThrough,
		Owner:   s.Name,
		Through: chain,
	}
	s.relations = append(s.relations, rel)
	return s
}

// Relations returns the schema's declared relations in declaration order.
func (s *Schema) Relations() []*Relation {
	return s.relations
}

// HasField reports whether the field is declared on the schema.
func (s *Schema) HasField(name string) bool {
	_, ok := s.fieldSet[name]
	return ok
}
