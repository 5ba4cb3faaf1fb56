package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/arkilian/arkorm/internal/config"
	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/persist"
)

func newTestApp(t *testing.T, models ...config.ModelConfig) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Models = models

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Type = "tape"
	if _, err := New(context.Background(), cfg); !errors.Is(err, &ormerrors.OrmError{Category: ormerrors.ErrCategoryConfig}) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestNew_DefaultModel(t *testing.T) {
	a := newTestApp(t)
	if got := a.Schemas(); len(got) != 1 || got[0] != Person {
		t.Fatalf("Schemas = %v", got)
	}
	if _, err := a.Schema("Person"); err != nil {
		t.Errorf("Schema(Person): %v", err)
	}
	if _, err := a.Schema("Nope"); ormerrors.GetCategory(err) != ormerrors.ErrCategoryConfig {
		t.Errorf("Schema(Nope) = %v", err)
	}
}

func TestDemo(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer
	if err := a.Demo(context.Background(), &out); err != nil {
		t.Fatalf("Demo: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"SELECT people.name, people.age, people.id FROM people\n",
		"WHERE people.age >= 18 AND NOT people.name = \"Ada\"",
		"Person(name=Grace, age=45, id=3)",
		"Person(name=Linus, id=4)",
		"(2 rows)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("demo output missing %q:\n%s", want, text)
		}
	}

	counts, err := a.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["Person"] != 4 {
		t.Errorf("counts = %v", counts)
	}

	// Running it twice starts from a clean file.
	if err := a.Demo(context.Background(), &bytes.Buffer{}); err != nil {
		t.Fatalf("second Demo: %v", err)
	}
	if counts, _ := a.Counts(context.Background()); counts["Person"] != 4 {
		t.Errorf("counts after second demo = %v", counts)
	}

	if top := a.Stats().GetTopStatements(1); len(top) != 1 || top[0].Count == 0 {
		t.Errorf("no statements recorded: %v", top)
	}
}

func TestDeclaredModels(t *testing.T) {
	a := newTestApp(t, config.ModelConfig{
		Name:  "Book",
		Table: "books",
		Fields: []config.FieldConfig{
			{Name: "isbn", Type: "char", MaxLength: 13, Primary: true},
			{Name: "pages", Type: "integer"},
		},
	})
	ctx := context.Background()

	if err := a.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	book, err := a.Schema("Book")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	for _, v := range []map[string]any{
		{"isbn": "9780262510875", "pages": 657},
		{"isbn": "9780131103627", "pages": 272},
	} {
		if err := persist.Save(ctx, a.DB(), book.MustNew(v)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	q, err := a.BuildQuery("Book", []string{"pages__lt=500"}, nil, []string{"isbn"})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	records, err := q.Fetch(ctx, a.DB())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %v", records)
	}
	if isbn, _ := records[0].Get("isbn"); isbn != "9780131103627" {
		t.Errorf("isbn = %v", isbn)
	}
	if records[0].IsSet("pages") {
		t.Error("pages was not selected")
	}
}

func TestParseLookups(t *testing.T) {
	got, err := ParseLookups([]string{"age__gte=18", "name__in=a,b", "note=x=y"})
	if err != nil {
		t.Fatalf("ParseLookups: %v", err)
	}
	want := map[string]any{
		"age__gte": "18",
		"name__in": []string{"a", "b"},
		"note":     "x=y",
	}
	if !reflect.DeepEqual(map[string]any(got), want) {
		t.Errorf("got %#v", got)
	}

	if _, err := ParseLookups([]string{"noequals"}); err == nil {
		t.Error("expected error for a term without '='")
	}
}

func TestBuildQuery_UnknownField(t *testing.T) {
	a := newTestApp(t)
	_, err := a.BuildQuery("Person", []string{"height=3"}, nil, nil)
	if !errors.Is(err, ormerrors.ErrFieldNotFound) {
		t.Errorf("expected field not found, got %v", err)
	}
}

func TestSnapshotThroughApp(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	if err := a.Demo(ctx, &bytes.Buffer{}); err != nil {
		t.Fatalf("Demo: %v", err)
	}

	snap, err := a.Backup().Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := a.Clean(); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if err := a.Backup().Restore(ctx, snap.ObjectPath); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	counts, err := a.Counts(ctx)
	if err != nil || counts["Person"] != 4 {
		t.Errorf("counts after restore = %v, %v", counts, err)
	}
}
