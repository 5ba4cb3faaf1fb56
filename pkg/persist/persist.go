// Package persist inserts records.
package persist

import (
	"context"
	"strings"

	"github.com/arkilian/arkorm/pkg/db"
	"github.com/arkilian/arkorm/pkg/schema"
)

// InsertSQL returns the INSERT statement for r with placeholders and the
// validated values to bind. Only fields that were set are inserted; unset
// fields get the column default.
func InsertSQL(r *schema.Record) (string, []any, error) {
	values, err := r.Validate()
	if err != nil {
		return "", nil, err
	}
	names := r.SetFields()
	marks := make([]string, len(names))
	for i := range marks {
		marks[i] = "?"
	}
	return insert(r.Schema(), names, marks), values, nil
}

// Literal returns the INSERT statement for r with inline literals. Text is
// quoted without escaping, so it is for display only.
func Literal(r *schema.Record) (string, error) {
	values, err := r.Validate()
	if err != nil {
		return "", err
	}
	names := r.SetFields()
	lits := make([]string, len(names))
	for i, name := range names {
		f, err := r.Schema().Field(name)
		if err != nil {
			return "", err
		}
		lits[i] = f.Literal(values[i])
	}
	return insert(r.Schema(), names, lits), nil
}

// insert builds the statement. A record with nothing set inserts a row of
// column defaults.
func insert(s *schema.Schema, names, values []string) string {
	if len(names) == 0 {
		return "INSERT INTO " + s.TableName() + " DEFAULT VALUES"
	}
	return "INSERT INTO " + s.TableName() +
		" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"
}

// Save validates r and inserts it. The scope commits on return.
func Save(ctx context.Context, conn db.Conn, r *schema.Record) error {
	stmt, args, err := InsertSQL(r)
	if err != nil {
		return err
	}
	return conn.Scope(ctx, func(ex db.Executor) error {
		_, err := ex.Execute(ctx, stmt, args...)
		return err
	})
}

// SaveAll saves records one scope at a time and stops at the first error.
func SaveAll(ctx context.Context, conn db.Conn, records ...*schema.Record) error {
	for _, r := range records {
		if err := Save(ctx, conn, r); err != nil {
			return err
		}
	}
	return nil
}
