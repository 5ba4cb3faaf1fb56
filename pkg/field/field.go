// Package field declares record columns: their SQL type, constraints and the
// conversions between native Go values and SQL values.
package field

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
)

// Kind is the declared column type.
type Kind int

const (
	KindChar Kind = iota
	KindInteger
)

// SQLType returns the type name used in CREATE TABLE.
func (k Kind) SQLType() string {
	switch k {
	case KindChar:
		return "varchar"
	case KindInteger:
		return "integer"
	default:
		return "unknown"
	}
}

func (k Kind) String() string {
	return k.SQLType()
}

// ParseKind maps a type name ("char", "varchar", "integer", "int") to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "char", "varchar", "text", "string":
		return KindChar, true
	case "integer", "int":
		return KindInteger, true
	default:
		return 0, false
	}
}

// Field describes one column. A Field has no name until a schema registers it.
type Field struct {
	name        string
	kind        Kind
	primary     bool
	maxLength   int
	verboseName string
}

// Option configures a Field at declaration time.
type Option func(*Field)

// Primary marks the field as the table's primary key.
func Primary() Option {
	return func(f *Field) {
		f.primary = true
	}
}

// VerboseName sets the display name. It defaults to the field name.
func VerboseName(name string) Option {
	return func(f *Field) {
		f.verboseName = name
	}
}

// Char declares a length-limited text column.
func Char(maxLength int, opts ...Option) *Field {
	f := &Field{kind: KindChar, maxLength: maxLength}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ParseChar declares a text column whose maximum length comes from untyped
// input such as a config file. The length must coerce to a positive integer.
func ParseChar(maxLength any, opts ...Option) (*Field, error) {
	n, err := toInt64(maxLength)
	if err != nil || n <= 0 || n > math.MaxInt32 {
		return nil, ormerrors.NewValidationError(ormerrors.CodeInvalidMaxLength,
			fmt.Sprintf("char max length %v is not a positive integer", maxLength))
	}
	return Char(int(n), opts...), nil
}

// Integer declares an integer column.
func Integer(opts ...Option) *Field {
	f := &Field{kind: KindInteger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Bind returns a copy of f carrying the given column name. Schemas call Bind
// once at registration; the declared Field is left untouched.
func (f *Field) Bind(name string) *Field {
	cp := *f
	cp.name = name
	return &cp
}

// Name returns the column name, or "" before registration.
func (f *Field) Name() string { return f.name }

// Kind returns the declared type.
func (f *Field) Kind() Kind { return f.kind }

// IsPrimary reports whether the field is the primary key.
func (f *Field) IsPrimary() bool { return f.primary }

// MaxLength returns the text limit; zero for non-text fields.
func (f *Field) MaxLength() int { return f.maxLength }

// VerboseName returns the display name.
func (f *Field) VerboseName() string {
	if f.verboseName != "" {
		return f.verboseName
	}
	return f.name
}

// MigrationClause returns the column definition used in CREATE TABLE,
// e.g. "name varchar(20)" or "id integer primary key".
func (f *Field) MigrationClause() string {
	var b strings.Builder
	b.WriteString(f.name)
	b.WriteByte(' ')
	b.WriteString(f.kind.SQLType())
	if f.kind == KindChar {
		b.WriteString("(" + strconv.Itoa(f.maxLength) + ")")
	}
	if f.primary {
		b.WriteString(" primary key")
	}
	return b.String()
}

// Validate checks v against the field constraints and returns the native
// value to persist: a string for text fields, an int64 for integer fields.
func (f *Field) Validate(v any) (any, error) {
	switch f.kind {
	case KindChar:
		s, ok := toText(v)
		if !ok {
			return nil, ormerrors.NewValidationError(ormerrors.CodeInvalidText,
				fmt.Sprintf("field %s expects text, got %T", f.name, v))
		}
		if n := utf8.RuneCountInString(s); n > f.maxLength {
			return nil, ormerrors.NewValidationError(ormerrors.CodeValueTooLong,
				fmt.Sprintf("field %s max size is %d, value size is %d", f.name, f.maxLength, n)).
				WithDetails(map[string]any{"field": f.name, "max_size": f.maxLength, "size": n})
		}
		return s, nil
	case KindInteger:
		n, err := toInt64(v)
		if err != nil {
			return nil, ormerrors.NewValidationError(ormerrors.CodeInvalidInteger,
				fmt.Sprintf("field %s: %v", f.name, err))
		}
		return n, nil
	default:
		return nil, ormerrors.NewInternalError(fmt.Sprintf("field %s has unknown kind %d", f.name, f.kind), nil)
	}
}

// Value converts v to the value bound to a statement placeholder. Unlike
// Validate it does not enforce the length limit, so LIKE patterns and
// lookup values longer than the column still compile.
func (f *Field) Value(v any) (any, error) {
	if f.kind == KindInteger {
		return f.Validate(v)
	}
	if s, ok := toText(v); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Literal renders v as SQL literal text. Text is wrapped in double quotes
// without escaping, so a value containing '"' yields a broken literal; the
// rendering is for display only and statements bind values instead.
func (f *Field) Literal(v any) string {
	if f.kind == KindChar {
		s, ok := toText(v)
		if !ok {
			s = fmt.Sprint(v)
		}
		return `"` + s + `"`
	}
	if n, err := toInt64(v); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

// FromDB normalizes a value returned by the driver to its native type.
func (f *Field) FromDB(v any) any {
	if v == nil {
		return nil
	}
	switch f.kind {
	case KindChar:
		if s, ok := toText(v); ok {
			return s
		}
		return fmt.Sprint(v)
	case KindInteger:
		if n, err := toInt64(v); err == nil {
			return n
		}
	}
	return v
}

func toText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case fmt.Stringer:
		if rv := reflect.ValueOf(t); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", false
		}
		return t.String(), true
	default:
		return "", false
	}
}

// toInt64 coerces v to an integer. nil, "" and false count as zero.
func toInt64(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", t)
		}
		return n, nil
	case []byte:
		return toInt64(string(t))
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		fl := rv.Float()
		if math.IsNaN(fl) || math.IsInf(fl, 0) || fl >= math.MaxInt64 || fl < math.MinInt64 {
			return 0, fmt.Errorf("cannot convert %v to integer", fl)
		}
		return int64(fl), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}
