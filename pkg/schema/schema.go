// Package schema registers record types: it collects declared fields into an
// ordered, immutable column set, picks the primary key and derives the table
// name. Records (instances of a registered type) live here too.
package schema

import (
	"fmt"
	"strings"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/field"
)

// DefaultPrimaryKey is the name of the integer key added to schemas that do
// not declare a primary field.
const DefaultPrimaryKey = "id"

// Schema is the registered column set of one record type. It is built once
// and never modified, so it can be shared freely.
type Schema struct {
	typeName   string
	table      string
	fields     []*field.Field
	index      map[string]int
	primaryKey string
}

type declaration struct {
	name  string
	field *field.Field
}

// Builder collects field declarations for a record type. Declaration order is
// kept: it is the column order of SELECT lists and of fetched rows.
type Builder struct {
	typeName string
	table    string
	decls    []declaration
}

// New starts a schema for the named record type.
func New(typeName string) *Builder {
	return &Builder{typeName: typeName}
}

// Table overrides the table name, which defaults to the type name.
func (b *Builder) Table(name string) *Builder {
	b.table = name
	return b
}

// Field declares a column.
func (b *Builder) Field(name string, f *field.Field) *Builder {
	b.decls = append(b.decls, declaration{name: name, field: f})
	return b
}

// Build registers the declared fields and returns the schema.
func (b *Builder) Build() (*Schema, error) {
	table := b.table
	if table == "" {
		table = b.typeName
	}
	if !ValidateName(table) {
		return nil, ormerrors.NewSchemaError(ormerrors.CodeInvalidName,
			fmt.Sprintf("%q is not a valid table name", table))
	}

	s := &Schema{
		typeName: b.typeName,
		table:    table,
		fields:   make([]*field.Field, 0, len(b.decls)+1),
		index:    make(map[string]int, len(b.decls)+1),
	}

	for _, d := range b.decls {
		if d.field == nil {
			return nil, ormerrors.NewSchemaError(ormerrors.CodeInvalidName,
				fmt.Sprintf("%s.%s has no field declaration", b.typeName, d.name))
		}
		if !ValidateName(d.name) {
			return nil, ormerrors.NewSchemaError(ormerrors.CodeInvalidName,
				fmt.Sprintf("%q is not a valid field name", d.name))
		}
		if _, dup := s.index[d.name]; dup {
			return nil, ormerrors.NewSchemaError(ormerrors.CodeDuplicateField,
				fmt.Sprintf("%s declares field %s twice", b.typeName, d.name))
		}
		if d.field.IsPrimary() {
			if s.primaryKey != "" {
				return nil, ormerrors.NewSchemaError(ormerrors.CodeDuplicatePrimaryKey,
					fmt.Sprintf("%s must not have two primary key fields (%s, %s)", b.typeName, s.primaryKey, d.name))
			}
			s.primaryKey = d.name
		}
		s.add(d.field.Bind(d.name))
	}

	if s.primaryKey == "" {
		if _, taken := s.index[DefaultPrimaryKey]; taken {
			return nil, ormerrors.NewSchemaError(ormerrors.CodeDuplicateField,
				fmt.Sprintf("%s declares a non-primary %s field", b.typeName, DefaultPrimaryKey))
		}
		s.add(field.Integer(field.Primary(), field.VerboseName("ID")).Bind(DefaultPrimaryKey))
		s.primaryKey = DefaultPrimaryKey
	}

	return s, nil
}

// MustBuild is like Build but panics on error. It suits package-level model
// declarations, where a bad schema is a programming error.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(f *field.Field) {
	s.index[f.Name()] = len(s.fields)
	s.fields = append(s.fields, f)
}

// TypeName returns the record type name.
func (s *Schema) TypeName() string { return s.typeName }

// TableName returns the table the records are stored in.
func (s *Schema) TableName() string { return s.table }

// PrimaryKey returns the name of the primary key field.
func (s *Schema) PrimaryKey() string { return s.primaryKey }

// Fields returns the fields in column order. The slice is a copy.
func (s *Schema) Fields() []*field.Field {
	out := make([]*field.Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns the field names in column order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name()
	}
	return names
}

// Has reports whether the schema declares the named field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Field returns the named field.
func (s *Schema) Field(name string) (*field.Field, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, s.fieldNotFound(name)
	}
	return s.fields[i], nil
}

// Column returns the table-qualified column reference, e.g. "people.age".
func (s *Schema) Column(name string) string {
	return s.table + "." + name
}

func (s *Schema) fieldNotFound(name string) error {
	return ormerrors.NewFieldNotFoundError(
		fmt.Sprintf("field %s does not exist on %s, use one of: %s", name, s.typeName, strings.Join(s.FieldNames(), ", "))).
		WithDetails(map[string]any{"field": name, "type": s.typeName})
}
