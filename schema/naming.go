package schema

import (
	"github.com/jinzhu/inflection"
)

// DefaultTable derives the physical table name for a schema: the pluralized
// schema name ("user" -> "users", "person" -> "people").
func DefaultTable(schemaName string) string {
	return inflection.Plural(schemaName)
}

// DefaultForeignKey derives the foreign key field pointing at a schema: the
// singular schema name suffixed with "_id" ("user" -> "user_id").
func DefaultForeignKey(schemaName string) string {
	return inflection.Singular(schemaName) + "_id"
}
