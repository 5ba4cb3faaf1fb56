package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/arkilian/arkorm/pkg/db"
	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/field"
	"github.com/arkilian/arkorm/pkg/observability"
	"github.com/arkilian/arkorm/pkg/schema"
)

// QuerySet is an immutable query specification for one schema. Filter,
// Exclude and Only return new QuerySets and leave the receiver unchanged,
// so a QuerySet can be reused as the base of several queries.
type QuerySet struct {
	schema   *schema.Schema
	filters  map[string]condition
	excludes map[string]condition
	only     []*field.Field
}

// From returns a QuerySet selecting every record of s.
func From(s *schema.Schema) *QuerySet {
	return &QuerySet{
		schema:   s,
		filters:  map[string]condition{},
		excludes: map[string]condition{},
	}
}

// Schema returns the queried schema.
func (q *QuerySet) Schema() *schema.Schema { return q.schema }

// Filter returns a QuerySet further restricted to rows matching every
// lookup. A key that was already filtered on is replaced. Unknown fields
// and unconvertible values fail here rather than at execution.
func (q *QuerySet) Filter(lookups Lookups) (*QuerySet, error) {
	conds, err := compileGroup(q.schema, lookups, false)
	if err != nil {
		return nil, err
	}
	clone := q.clone()
	for k, c := range conds {
		clone.filters[k] = c
	}
	return clone, nil
}

// Exclude returns a QuerySet that drops rows matching any of the lookups.
func (q *QuerySet) Exclude(lookups Lookups) (*QuerySet, error) {
	conds, err := compileGroup(q.schema, lookups, true)
	if err != nil {
		return nil, err
	}
	clone := q.clone()
	for k, c := range conds {
		clone.excludes[k] = c
	}
	return clone, nil
}

// Only restricts the selected columns. With no names every field is
// selected again.
func (q *QuerySet) Only(names ...string) (*QuerySet, error) {
	fields := make([]*field.Field, 0, len(names))
	for _, name := range names {
		f, err := q.schema.Field(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	clone := q.clone()
	clone.only = fields
	return clone, nil
}

func (q *QuerySet) clone() *QuerySet {
	c := &QuerySet{
		schema:   q.schema,
		filters:  make(map[string]condition, len(q.filters)),
		excludes: make(map[string]condition, len(q.excludes)),
		only:     q.only,
	}
	for k, v := range q.filters {
		c.filters[k] = v
	}
	for k, v := range q.excludes {
		c.excludes[k] = v
	}
	return c
}

// Predicate returns the compiled WHERE expression.
func (q *QuerySet) Predicate() *Predicate {
	return newPredicate(q.filters, q.excludes)
}

// projection returns the selected fields. Rows are zipped against this
// same slice, so SELECT order and record assembly cannot drift apart.
func (q *QuerySet) projection() []*field.Field {
	if len(q.only) > 0 {
		return q.only
	}
	return q.schema.Fields()
}

// Columns returns the selected field names in SELECT order.
func (q *QuerySet) Columns() []string {
	fields := q.projection()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	return names
}

// Statement returns the SELECT statement with placeholders and its args.
// The WHERE clause is omitted when there are no conditions.
func (q *QuerySet) Statement() (string, []any) {
	return q.statement(q.selectList(q.projection()), false)
}

// String returns the SELECT statement with inline literals.
func (q *QuerySet) String() string {
	s, _ := q.statement(q.selectList(q.projection()), true)
	return s
}

func (q *QuerySet) selectList(fields []*field.Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = q.schema.Column(f.Name())
	}
	return strings.Join(cols, ", ")
}

func (q *QuerySet) statement(selectList string, inline bool) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectList)
	b.WriteString(" FROM ")
	b.WriteString(q.schema.TableName())

	pred := q.Predicate()
	if pred.Empty() {
		return b.String(), nil
	}
	where, args := pred.render(inline)
	b.WriteString(" WHERE ")
	b.WriteString(where)
	return b.String(), args
}

// Fetch runs the query and returns the matching records. NULL columns are
// left unset on the returned records.
func (q *QuerySet) Fetch(ctx context.Context, conn db.Conn) ([]*schema.Record, error) {
	fields := q.projection()
	stmt, args := q.statement(q.selectList(fields), false)
	return q.fetch(ctx, conn, fields, stmt, args)
}

// First returns the first matching record, or nil when nothing matches.
func (q *QuerySet) First(ctx context.Context, conn db.Conn) (*schema.Record, error) {
	fields := q.projection()
	stmt, args := q.statement(q.selectList(fields), false)
	records, err := q.fetch(ctx, conn, fields, stmt+" LIMIT 1", args)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Count returns the number of matching rows.
func (q *QuerySet) Count(ctx context.Context, conn db.Conn) (int64, error) {
	stmt, args := q.statement("COUNT(*)", false)

	var rows [][]any
	err := conn.Scope(ctx, func(ex db.Executor) error {
		q.recordUsage(ex)
		var err error
		rows, err = ex.Execute(ctx, stmt, args...)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, ormerrors.NewInternalError(fmt.Sprintf("count returned %d rows", len(rows)), nil)
	}
	n, ok := rows[0][0].(int64)
	if !ok {
		return 0, ormerrors.NewInternalError(fmt.Sprintf("count returned %T", rows[0][0]), nil)
	}
	return n, nil
}

func (q *QuerySet) fetch(ctx context.Context, conn db.Conn, fields []*field.Field, stmt string, args []any) ([]*schema.Record, error) {
	var rows [][]any
	err := conn.Scope(ctx, func(ex db.Executor) error {
		q.recordUsage(ex)
		var err error
		rows, err = ex.Execute(ctx, stmt, args...)
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]*schema.Record, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(fields) {
			return nil, ormerrors.NewInternalError(
				fmt.Sprintf("row has %d columns, selected %d", len(row), len(fields)), nil)
		}
		values := make(map[string]any, len(fields))
		for i, f := range fields {
			if row[i] == nil {
				continue
			}
			values[f.Name()] = f.FromDB(row[i])
		}
		rec, err := q.schema.New(values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

type statsSource interface {
	Stats() *observability.QueryStats
}

func (q *QuerySet) recordUsage(ex db.Executor) {
	src, ok := ex.(statsSource)
	if !ok || src.Stats() == nil {
		return
	}
	for _, u := range q.Predicate().Usage() {
		src.Stats().RecordPredicate(u[0], u[1])
	}
}
