package config

import (
	"fmt"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/field"
	"github.com/arkilian/arkorm/pkg/schema"
)

// ModelConfig declares a record type in the config file.
type ModelConfig struct {
	Name   string        `json:"name" yaml:"name"`
	Table  string        `json:"table" yaml:"table"`
	Fields []FieldConfig `json:"fields" yaml:"fields"`
}

// FieldConfig declares one field of a model. MaxLength is left untyped so
// that "32", 32 and 32.0 are all accepted for char fields.
type FieldConfig struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	MaxLength   any    `json:"max_length" yaml:"max_length"`
	Primary     bool   `json:"primary" yaml:"primary"`
	VerboseName string `json:"verbose_name" yaml:"verbose_name"`
}

// Build turns the declaration into a schema.
func (m ModelConfig) Build() (*schema.Schema, error) {
	b := schema.New(m.Name)
	if m.Table != "" {
		b.Table(m.Table)
	}
	for _, fc := range m.Fields {
		f, err := fc.build()
		if err != nil {
			return nil, ormerrors.Wrap(ormerrors.ErrCategoryConfig, ormerrors.CodeInvalidConfig,
				fmt.Sprintf("model %s: field %s", m.Name, fc.Name), err)
		}
		b.Field(fc.Name, f)
	}
	return b.Build()
}

func (fc FieldConfig) build() (*field.Field, error) {
	var opts []field.Option
	if fc.Primary {
		opts = append(opts, field.Primary())
	}
	if fc.VerboseName != "" {
		opts = append(opts, field.VerboseName(fc.VerboseName))
	}

	kind, ok := field.ParseKind(fc.Type)
	if !ok {
		return nil, ormerrors.NewConfigError(fmt.Sprintf("unknown field type %q", fc.Type))
	}
	switch kind {
	case field.KindChar:
		return field.ParseChar(fc.MaxLength, opts...)
	default:
		return field.Integer(opts...), nil
	}
}

// Schemas builds every declared model, in declaration order.
func (c *Config) Schemas() ([]*schema.Schema, error) {
	out := make([]*schema.Schema, 0, len(c.Models))
	for _, m := range c.Models {
		s, err := m.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
