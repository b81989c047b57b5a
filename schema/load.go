package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// Declaration-file shapes. Field names follow the file's snake_case keys via
// mapstructure tags, mirroring the config loader conventions used elsewhere.
type declFile struct {
	Schemas map[string]schemaDecl `mapstructure:"schemas"`
}

type schemaDecl struct {
	Table      string                  `mapstructure:"table"`
	PrimaryKey string                  `mapstructure:"primary_key"`
	Fields     []string                `mapstructure:"fields"`
	Relations  map[string]relationDecl `mapstructure:"relations"`
}

type relationDecl struct {
	Kind       string   `mapstructure:"kind"`
	Schema     string   `mapstructure:"schema"`
	ForeignKey string   `mapstructure:"foreign_key"`
	Table      string   `mapstructure:"table"`
	Through    []string `mapstructure:"through"`
}

// LoadFile reads schema declarations from a YAML (or JSON/TOML) file and
// builds a registry from them. Schema and relation iteration order is
// name-sorted so repeated loads of the same file produce identical
// registries.
func LoadFile(ctx context.Context, path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read schema file %q: %w", path, err)
	}

	var decl declFile
	if err := v.Unmarshal(&decl); err != nil {
		return nil, fmt.Errorf("failed to decode schema file %q: %w", path, err)
	}
	if len(decl.Schemas) == 0 {
		return nil, fmt.Errorf("schema file %q declares no schemas", path)
	}

	builder := NewBuilder()
	for _, name := range sortedKeys(decl.Schemas) {
		sd := decl.Schemas[name]
		s := New(name, sd.Fields...)
		if sd.Table != "" {
			s.WithTable(sd.Table)
		}
		if sd.PrimaryKey != "" {
			s.WithPrimaryKey(sd.PrimaryKey)
		}
		for _, relName := range sortedKeys(sd.Relations) {
			rd := sd.Relations[relName]
			var opts []RelationOption
			if rd.ForeignKey != "" {
				opts = append(opts, ForeignKey(rd.ForeignKey))
			}
			if rd.Table != "" {
				opts = append(opts, RelatedTable(rd.Table))
			}
			switch rd.Kind {
			case "has_one":
				s.HasOne(relName, rd.Schema, opts...)
			case "has_many":
				s.HasMany(relName, rd.Schema, opts...)
			case "belongs_to":
				s.BelongsTo(relName, rd.Schema, opts...)
			case "through":
				s.HasThrough(relName, rd.Through...)
			default:
				return nil, fmt.Errorf("schema file %q: relation %q on schema %q has unknown kind %q", path, relName, name, rd.Kind)
			}
		}
		builder.Add(s)
	}
	return builder.Build(ctx)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
