package schema

import (
	"errors"
	"reflect"
	"testing"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/field"
)

func TestBuild_SynthesizesID(t *testing.T) {
	s, err := New("Person").
		Field("name", field.Char(20)).
		Field("age", field.Integer()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if s.PrimaryKey() != "id" {
		t.Errorf("primary key = %q, want id", s.PrimaryKey())
	}
	want := []string{"name", "age", "id"}
	if got := s.FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("field order = %v, want %v", got, want)
	}

	id, err := s.Field("id")
	if err != nil {
		t.Fatalf("Field(id): %v", err)
	}
	if !id.IsPrimary() || id.Kind() != field.KindInteger || id.VerboseName() != "ID" {
		t.Errorf("synthesized id = %+v", id)
	}
}

func TestBuild_DeclaredPrimary(t *testing.T) {
	s, err := New("Country").
		Field("code", field.Char(2, field.Primary())).
		Field("name", field.Char(64)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.PrimaryKey() != "code" {
		t.Errorf("primary key = %q, want code", s.PrimaryKey())
	}
	if s.Has("id") {
		t.Error("id should not be synthesized when a primary field is declared")
	}
}

func TestBuild_DuplicatePrimaryKey(t *testing.T) {
	_, err := New("Broken").
		Field("a", field.Integer(field.Primary())).
		Field("b", field.Integer(field.Primary())).
		Build()
	if !errors.Is(err, ormerrors.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if ormerrors.GetCode(err) != ormerrors.CodeDuplicatePrimaryKey {
		t.Errorf("code = %q, want %q", ormerrors.GetCode(err), ormerrors.CodeDuplicatePrimaryKey)
	}
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		code    string
	}{
		{"duplicate field", New("T").Field("a", field.Integer()).Field("a", field.Char(3)), ormerrors.CodeDuplicateField},
		{"bad field name", New("T").Field("1abc", field.Integer()), ormerrors.CodeInvalidName},
		{"bad table name", New("T").Table("drop table;"), ormerrors.CodeInvalidName},
		{"non-primary id", New("T").Field("id", field.Char(4)), ormerrors.CodeDuplicateField},
		{"nil field", New("T").Field("a", nil), ormerrors.CodeInvalidName},
	}

	for _, tt := range tests {
		_, err := tt.builder.Build()
		if ormerrors.GetCode(err) != tt.code {
			t.Errorf("%s: code = %q, want %q (err=%v)", tt.name, ormerrors.GetCode(err), tt.code, err)
		}
	}
}

func TestTableName(t *testing.T) {
	s := New("Person").Field("name", field.Char(10)).MustBuild()
	if s.TableName() != "Person" {
		t.Errorf("default table = %q, want Person", s.TableName())
	}

	s = New("Person").Table("people").Field("name", field.Char(10)).MustBuild()
	if s.TableName() != "people" {
		t.Errorf("override table = %q, want people", s.TableName())
	}
	if s.Column("name") != "people.name" {
		t.Errorf("Column = %q", s.Column("name"))
	}
}

func TestDeclaredFieldIsReusable(t *testing.T) {
	shared := field.Char(10)
	a := New("A").Field("title", shared).MustBuild()
	b := New("B").Field("label", shared).MustBuild()

	fa, _ := a.Field("title")
	fb, _ := b.Field("label")
	if fa.Name() != "title" || fb.Name() != "label" {
		t.Errorf("names = %q, %q", fa.Name(), fb.Name())
	}
	if shared.Name() != "" {
		t.Error("registration must not name the declared field")
	}
}

func TestFieldNotFound(t *testing.T) {
	s := New("Person").Field("name", field.Char(10)).MustBuild()
	_, err := s.Field("nope")
	if !errors.Is(err, ormerrors.ErrFieldNotFound) {
		t.Errorf("expected field not found, got %v", err)
	}
}

func TestMustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustBuild should panic on a duplicate primary key")
		}
	}()
	New("Broken").
		Field("a", field.Integer(field.Primary())).
		Field("b", field.Integer(field.Primary())).
		MustBuild()
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"people", true},
		{"_hidden", true},
		{"first__name", true},
		{"a1", true},
		{"", false},
		{"1a", false},
		{"a-b", false},
		{"a b", false},
	}

	for _, tt := range tests {
		if got := ValidateName(tt.name); got != tt.want {
			t.Errorf("ValidateName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
