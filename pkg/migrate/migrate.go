// Package migrate generates and applies CREATE TABLE statements for
// registered schemas.
package migrate

import (
	"context"
	"log"
	"strings"

	"github.com/arkilian/arkorm/pkg/db"
	"github.com/arkilian/arkorm/pkg/schema"
)

// CreateTableSQL returns the CREATE TABLE statement for s, one column
// definition per line in column order.
func CreateTableSQL(s *schema.Schema) string {
	fields := s.Fields()
	clauses := make([]string, len(fields))
	for i, f := range fields {
		clauses[i] = f.MigrationClause()
	}
	return "CREATE TABLE " + s.TableName() + " (\n" + strings.Join(clauses, ",\n") + "\n)"
}

// Statements returns the CREATE TABLE statements for schemas, in order.
func Statements(schemas ...*schema.Schema) []string {
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = CreateTableSQL(s)
	}
	return out
}

// Migrate creates the tables for schemas in a single scope. A table that
// already exists fails the migration; statements before it stay committed.
func Migrate(ctx context.Context, conn db.Conn, schemas ...*schema.Schema) error {
	return conn.Scope(ctx, func(ex db.Executor) error {
		for i, stmt := range Statements(schemas...) {
			if _, err := ex.Execute(ctx, stmt); err != nil {
				return err
			}
			log.Printf("migrate: created table %s", schemas[i].TableName())
		}
		return nil
	})
}
