package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrRelationNotFound indicates a relation name that is not declared on the
// schema it was resolved against.
var ErrRelationNotFound = errors.New("relation not found")

// ErrSchemaNotFound indicates a schema name absent from the registry.
var ErrSchemaNotFound = errors.New("schema not found")

// Registry is the process-wide, read-only lookup table from schema name to
// schema and from (schema, relation name) to relation. It is built once by a
// Builder and safe for unsynchronized concurrent use afterwards.
type Registry struct {
	schemas map[string]*Schema
	order   []string
}

// Builder accumulates schema declarations and assembles them into a Registry.
type Builder struct {
	schemas []*Schema
}

// NewBuilder returns an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers a schema declaration. Declaration order is preserved.
func (b *Builder) Add(schemas ...*Schema) *Builder {
	b.schemas = append(b.schemas, schemas...)
	return b
}

// Build validates the declarations, fills in derived defaults (table names,
// primary keys, foreign keys) and resolves every through-relation chain. The
// returned registry is immutable; Build must complete before any concurrent
// resolution starts.
func (b *Builder) Build(ctx context.Context) (*Registry, error) {
	_, span := startSpan(ctx, "schema.registry_build",
		attribute.Int("schema.count", len(b.schemas)))
	defer span.End()

	reg := &Registry{schemas: make(map[string]*Schema, len(b.schemas))}
	for _, s := range b.schemas {
		if s.Name == "" {
			err := errors.New("schema name must not be empty")
			recordSpanError(span, err)
			return nil, err
		}
		if _, dup := reg.schemas[s.Name]; dup {
			err := fmt.Errorf("schema %q declared twice", s.Name)
			recordSpanError(span, err)
			return nil, err
		}
		applyDefaults(s)
		reg.schemas[s.Name] = s
		reg.order = append(reg.order, s.Name)
	}

	for _, name := range reg.order {
		if err := reg.linkRelations(reg.schemas[name]); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
	}

	// Chains resolve after every direct relation is linked, so a chain may
	// reference relations on schemas declared later.
	for _, name := range reg.order {
		for _, rel := range reg.schemas[name].relations {
			if rel.Kind != KindThrough {
				continue
			}
			if err := reg.resolveChain(rel, make(map[*Relation]bool)); err != nil {
				recordSpanError(span, err)
				return nil, err
			}
		}
	}

	return reg, nil
}

func applyDefaults(s *Schema) {
	if s.Table == "" {
		s.Table = DefaultTable(s.Name)
	}
	if s.PrimaryKey == "" {
		s.PrimaryKey = "id"
	}
	s.fieldSet = make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		s.fieldSet[f] = struct{}{}
	}
	if _, ok := s.fieldSet[s.PrimaryKey]; !ok {
		s.Fields = append([]string{s.PrimaryKey}, s.Fields...)
		s.fieldSet[s.PrimaryKey] = struct{}{}
	}
}

// linkRelations fills derived relation keys and validates direct relations
// against the related schema's declarations.
func (reg *Registry) linkRelations(s *Schema) error {
	seen := make(map[string]struct{}, len(s.relations))
	for _, rel := range s.relations {
		if _, dup := seen[rel.Name]; dup {
			return fmt.Errorf("relation %q declared twice on schema %q", rel.Name, s.Name)
		}
		seen[rel.Name] = struct{}{}

		switch rel.Kind {
		case KindHas:
			related, ok := reg.schemas[rel.Related]
			if !ok {
				return fmt.Errorf("relation %q on schema %q: %w: schema %q", rel.Name, s.Name, ErrSchemaNotFound, rel.Related)
			}
			rel.OwnerKey = s.PrimaryKey
			if rel.RelatedKey == "" {
				rel.RelatedKey = DefaultForeignKey(s.Name)
			}
			if !related.HasField(rel.RelatedKey) {
				slog.Warn("relation foreign key is not a declared field",
					"schema", s.Name,
					"relation", rel.Name,
					"related_schema", related.Name,
					"foreign_key", rel.RelatedKey,
				)
			}
		case KindBelongsTo:
			related, ok := reg.schemas[rel.Related]
			if !ok {
				return fmt.Errorf("relation %q on schema %q: %w: schema %q", rel.Name, s.Name, ErrSchemaNotFound, rel.Related)
			}
			if rel.OwnerKey == "" {
				rel.OwnerKey = DefaultForeignKey(rel.Related)
			}
			rel.RelatedKey = related.PrimaryKey
			if !s.HasField(rel.OwnerKey) {
				slog.Warn("relation foreign key is not a declared field",
					"schema", s.Name,
					"relation", rel.Name,
					"related_schema", related.Name,
					"foreign_key", rel.OwnerKey,
				)
			}
		case KindThrough:
			if len(rel.Through) < 2 {
				return fmt.Errorf("through relation %q on schema %q: chain must have at least 2 elements, got %d", rel.Name, s.Name, len(rel.Through))
			}
		default:
			return fmt.Errorf("relation %q on schema %q: unknown kind %v", rel.Name, s.Name, rel.Kind)
		}
	}
	return nil
}

// resolveChain walks a through-relation's chain, flattening nested through
// hops and deriving the terminal schema, keys and cardinality. The resolution
// is cached on the relation and never recomputed.
func (reg *Registry) resolveChain(rel *Relation, visiting map[*Relation]bool) error {
	if rel.hops != nil {
		return nil
	}
	if visiting[rel] {
		return fmt.Errorf("through relation %q on schema %q: chain is cyclic", rel.Name, rel.Owner)
	}
	visiting[rel] = true
	defer delete(visiting, rel)

	current := rel.Owner
	card := One
	var hops []*Relation
	for _, hopName := range rel.Through {
		hop, err := reg.Resolve(current, hopName)
		if err != nil {
			return fmt.Errorf("through relation %q on schema %q: %w", rel.Name, rel.Owner, err)
		}
		if hop.Kind == KindThrough {
			if err := reg.resolveChain(hop, visiting); err != nil {
				return err
			}
			hops = append(hops, hop.hops...)
		} else {
			hops = append(hops, hop)
		}
		if hop.Cardinality == Many {
			card = Many
		}
		current = hop.Related
	}

	last := hops[len(hops)-1]
	rel.hops = hops
	rel.Related = last.Related
	rel.RelatedKey = last.RelatedKey
	rel.RelatedTable = last.RelatedTable
	rel.OwnerKey = hops[0].OwnerKey
	rel.Cardinality = card
	return nil
}

// Schema returns the schema registered under name.
func (reg *Registry) Schema(name string) (*Schema, error) {
	s, ok := reg.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	return s, nil
}

// Schemas returns the registered schema names in declaration order.
func (reg *Registry) Schemas() []string {
	return reg.order
}

// Resolve returns the relation declared under relName on the named schema.
func (reg *Registry) Resolve(schemaName, relName string) (*Relation, error) {
	s, err := reg.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	for _, rel := range s.relations {
		if rel.Name == relName {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("%w: %q on schema %q", ErrRelationNotFound, relName, schemaName)
}

// Fields returns the declared field names of the named schema.
func (reg *Registry) Fields(schemaName string) ([]string, error) {
	s, err := reg.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	return s.Fields, nil
}

// PrimaryKey returns the primary key field of the named schema.
func (reg *Registry) PrimaryKey(schemaName string) (string, error) {
	s, err := reg.Schema(schemaName)
	if err != nil {
		return "", err
	}
	return s.PrimaryKey, nil
}

// RelatedSchema returns the schema a relation points at: the terminal schema
// of the chain for through-relations.
func (reg *Registry) RelatedSchema(rel *Relation) (*Schema, error) {
	return reg.Schema(rel.Related)
}

// RelatedTable returns the physical table the relation reads from, honoring
// the relation's source-table override when present.
func (reg *Registry) RelatedTable(rel *Relation) (string, error) {
	if rel.RelatedTable != "" {
		return rel.RelatedTable, nil
	}
	related, err := reg.Schema(rel.Related)
	if err != nil {
		return "", err
	}
	return related.Table, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("relplan/schema")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
