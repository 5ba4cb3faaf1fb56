package app

import (
	"context"
	"fmt"
	"io"

	"github.com/arkilian/arkorm/pkg/field"
	"github.com/arkilian/arkorm/pkg/migrate"
	"github.com/arkilian/arkorm/pkg/persist"
	"github.com/arkilian/arkorm/pkg/query"
	"github.com/arkilian/arkorm/pkg/schema"
)

// Person is the model used when the configuration declares none.
var Person = schema.New("Person").
	Table("people").
	Field("name", field.Char(32, field.VerboseName("Name"))).
	Field("age", field.Integer(field.VerboseName("Age"))).
	MustBuild()

var demoPeople = []map[string]any{
	{"name": "Ada", "age": 36},
	{"name": "Brian", "age": 17},
	{"name": "Grace", "age": 45},
	{"name": "Linus"},
}

// Demo migrates Person into a clean database, saves a few people and
// prints some queries against them.
func (a *App) Demo(ctx context.Context, w io.Writer) error {
	if err := a.Clean(); err != nil {
		return err
	}
	if err := a.Migrate(ctx); err != nil {
		return err
	}
	if a.byName[Person.TypeName()] != Person {
		if err := migrate.Migrate(ctx, a.db, Person); err != nil {
			return err
		}
	}

	records := make([]*schema.Record, len(demoPeople))
	for i, values := range demoPeople {
		r, err := Person.New(values)
		if err != nil {
			return err
		}
		records[i] = r
	}
	if err := persist.SaveAll(ctx, a.db, records...); err != nil {
		return err
	}

	everyone := query.From(Person)
	adults, err := everyone.Filter(query.Lookups{"age__gte": 18})
	if err != nil {
		return err
	}
	notAda, err := adults.Exclude(query.Lookups{"name": "Ada"})
	if err != nil {
		return err
	}
	named, err := everyone.Filter(query.Lookups{"name__in": []string{"Ada", "Linus"}})
	if err != nil {
		return err
	}
	if named, err = named.Only("name"); err != nil {
		return err
	}

	for _, q := range []*query.QuerySet{everyone, adults, notAda, named} {
		if err := a.PrintQuery(ctx, w, q); err != nil {
			return err
		}
	}
	return nil
}

// PrintQuery writes the statement of q followed by every matching record.
func (a *App) PrintQuery(ctx context.Context, w io.Writer, q *query.QuerySet) error {
	records, err := q.Fetch(ctx, a.db)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, q.String())
	for _, r := range records {
		fmt.Fprintf(w, "  %s\n", r)
	}
	fmt.Fprintf(w, "  (%d rows)\n", len(records))
	return nil
}
