package app

import (
	"fmt"
	"strings"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/query"
)

// ParseLookups parses command line terms of the form key=value. Values of
// "__in" lookups are split on commas.
func ParseLookups(terms []string) (query.Lookups, error) {
	out := make(query.Lookups, len(terms))
	for _, term := range terms {
		key, value, ok := strings.Cut(term, "=")
		if !ok || key == "" {
			return nil, ormerrors.NewConfigError(fmt.Sprintf("lookup %q is not key=value", term))
		}
		if query.ParseLookup(key).Op == query.OpIn {
			out[key] = strings.Split(value, ",")
			continue
		}
		out[key] = value
	}
	return out, nil
}

// BuildQuery assembles a query over the named model.
func (a *App) BuildQuery(model string, filter, exclude []string, only []string) (*query.QuerySet, error) {
	s, err := a.Schema(model)
	if err != nil {
		return nil, err
	}

	fl, err := ParseLookups(filter)
	if err != nil {
		return nil, err
	}
	ex, err := ParseLookups(exclude)
	if err != nil {
		return nil, err
	}

	q := query.From(s)
	if q, err = q.Filter(fl); err != nil {
		return nil, err
	}
	if q, err = q.Exclude(ex); err != nil {
		return nil, err
	}
	if len(only) > 0 {
		if q, err = q.Only(only...); err != nil {
			return nil, err
		}
	}
	return q, nil
}
