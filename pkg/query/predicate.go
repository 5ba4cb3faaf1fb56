// Package query compiles filter/exclude lookups into SQL predicates and runs
// SELECT statements that materialize records.
package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/field"
	"github.com/arkilian/arkorm/pkg/schema"
)

// condition is one compiled lookup.
type condition struct {
	lookup Lookup
	column string
	field  *field.Field
	negate bool
	list   bool
	values []any // one value for scalars, every element for lists
}

// compileCondition resolves a lookup against s and converts its value.
func compileCondition(s *schema.Schema, key string, value any, negate bool) (condition, error) {
	l := ParseLookup(key)
	f, err := s.Field(l.Field)
	if err != nil {
		return condition{}, err
	}

	c := condition{lookup: l, column: s.Column(l.Field), field: f, negate: negate}

	elems, isList := listElements(value)
	switch {
	case isList && l.Op != OpIn:
		return condition{}, ormerrors.NewValidationError(ormerrors.CodeInvalidValue,
			fmt.Sprintf("lookup %s takes a single value, got %T", key, value))
	case !isList:
		elems = []any{value}
	}
	// A scalar "in" value is a list of one.
	c.list = l.Op == OpIn
	c.values = make([]any, len(elems))
	for i, e := range elems {
		if isNil(e) {
			return condition{}, ormerrors.NewValidationError(ormerrors.CodeInvalidValue,
				fmt.Sprintf("lookup %s has a nil value", key)).
				WithDetails(map[string]any{"lookup": key, "field": l.Field})
		}
		v, err := f.Value(e)
		if err != nil {
			return condition{}, err
		}
		c.values[i] = v
	}
	return c, nil
}

// render writes the condition with placeholders, or with literals when
// inline is set.
func (c condition) render(inline bool) (string, []any) {
	var b strings.Builder
	if c.negate {
		b.WriteString("NOT ")
	}
	b.WriteString(c.column)
	b.WriteByte(' ')
	b.WriteString(string(c.lookup.Op))
	b.WriteByte(' ')

	vals := make([]string, len(c.values))
	for i, v := range c.values {
		if inline {
			vals[i] = c.field.Literal(v)
		} else {
			vals[i] = "?"
		}
	}
	if c.list {
		b.WriteString("(" + strings.Join(vals, ", ") + ")")
	} else {
		b.WriteString(vals[0])
	}

	if inline {
		return b.String(), nil
	}
	return b.String(), c.values
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// listElements returns the elements of slice and array values. Text and
// byte slices are scalars.
func listElements(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Predicate is a compiled WHERE expression: filter conditions ANDed, then
// exclude conditions, each negated on its own, ANDed.
type Predicate struct {
	filters  []condition
	excludes []condition
}

// Compile builds a predicate for s from filter and exclude lookups. Unknown
// fields fail with a field-not-found error.
func Compile(s *schema.Schema, filter, exclude Lookups) (*Predicate, error) {
	fc, err := compileGroup(s, filter, false)
	if err != nil {
		return nil, err
	}
	ec, err := compileGroup(s, exclude, true)
	if err != nil {
		return nil, err
	}
	return newPredicate(fc, ec), nil
}

func compileGroup(s *schema.Schema, lookups Lookups, negate bool) (map[string]condition, error) {
	out := make(map[string]condition, len(lookups))
	for key, value := range lookups {
		c, err := compileCondition(s, key, value, negate)
		if err != nil {
			return nil, err
		}
		out[key] = c
	}
	return out, nil
}

// newPredicate orders each group by lookup key, so the same conditions give
// the same SQL however they were accumulated.
func newPredicate(filters, excludes map[string]condition) *Predicate {
	return &Predicate{filters: sorted(filters), excludes: sorted(excludes)}
}

func sorted(m map[string]condition) []condition {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]condition, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// Empty reports whether the predicate has no conditions.
func (p *Predicate) Empty() bool {
	return len(p.filters) == 0 && len(p.excludes) == 0
}

// SQL renders the predicate with placeholders and returns the bound values.
// An empty predicate renders as "".
func (p *Predicate) SQL() (string, []any) {
	return p.render(false)
}

// String renders the predicate with inline literals, e.g.
// `people.age >= 18 AND NOT people.name = "bob"`.
func (p *Predicate) String() string {
	s, _ := p.render(true)
	return s
}

func (p *Predicate) render(inline bool) (string, []any) {
	var groups []string
	var args []any
	for _, group := range [][]condition{p.filters, p.excludes} {
		if len(group) == 0 {
			continue
		}
		parts := make([]string, len(group))
		for i, c := range group {
			text, vals := c.render(inline)
			parts[i] = text
			args = append(args, vals...)
		}
		groups = append(groups, strings.Join(parts, " AND "))
	}
	return strings.Join(groups, " AND "), args
}

// Usage lists the column and operator of every condition.
func (p *Predicate) Usage() [][2]string {
	out := make([][2]string, 0, len(p.filters)+len(p.excludes))
	for _, group := range [][]condition{p.filters, p.excludes} {
		for _, c := range group {
			op := string(c.lookup.Op)
			if c.negate {
				op = "NOT " + op
			}
			out = append(out, [2]string{c.column, op})
		}
	}
	return out
}
