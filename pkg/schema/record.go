package schema

import (
	"fmt"
	"strings"
)

// Record is one instance of a registered type. Only fields that were set
// carry a value; unset fields are left out of inserts entirely.
type Record struct {
	schema *Schema
	values map[string]any
}

// New creates a record from field values. Every key must name a field of s.
func (s *Schema) New(values map[string]any) (*Record, error) {
	r := &Record{schema: s, values: make(map[string]any, len(values))}
	for name, v := range values {
		if err := r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew is like New but panics on error.
func (s *Schema) MustNew(values map[string]any) *Record {
	r, err := s.New(values)
	if err != nil {
		panic(err)
	}
	return r
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// Set assigns a field value. The value is validated when the record is saved.
func (r *Record) Set(name string, v any) error {
	if !r.schema.Has(name) {
		return r.schema.fieldNotFound(name)
	}
	r.values[name] = v
	return nil
}

// Unset clears a field so that it is omitted from inserts again.
func (r *Record) Unset(name string) error {
	if !r.schema.Has(name) {
		return r.schema.fieldNotFound(name)
	}
	delete(r.values, name)
	return nil
}

// Get returns a field value and whether the field has been set.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// IsSet reports whether the field has been assigned.
func (r *Record) IsSet(name string) bool {
	_, ok := r.values[name]
	return ok
}

// SetFields returns the names of assigned fields in column order.
func (r *Record) SetFields() []string {
	names := make([]string, 0, len(r.values))
	for _, f := range r.schema.fields {
		if _, ok := r.values[f.Name()]; ok {
			names = append(names, f.Name())
		}
	}
	return names
}

// Values returns a copy of the assigned values.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// PK returns the primary key value, if set.
func (r *Record) PK() (any, bool) {
	return r.Get(r.schema.primaryKey)
}

// Validate checks every assigned value against its field and returns the
// converted values in column order.
func (r *Record) Validate() ([]any, error) {
	names := r.SetFields()
	out := make([]any, len(names))
	for i, name := range names {
		f, err := r.schema.Field(name)
		if err != nil {
			return nil, err
		}
		v, err := f.Validate(r.values[name])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// String renders the record as Type(field=value, ...) in column order.
func (r *Record) String() string {
	names := r.SetFields()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, r.values[name])
	}
	return r.schema.typeName + "(" + strings.Join(parts, ", ") + ")"
}
