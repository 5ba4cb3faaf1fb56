package query

import "strings"

// Operator is a SQL comparison operator.
type Operator string

const (
	OpEq       Operator = "="
	OpGte      Operator = ">="
	OpGt       Operator = ">"
	OpLte      Operator = "<="
	OpLt       Operator = "<"
	OpContains Operator = "LIKE"
	OpIn       Operator = "IN"
)

// lookupSep separates a field name from its lookup suffix.
const lookupSep = "__"

// suffixes maps lookup suffixes to operators. The empty suffix ("age__")
// means equality, like no suffix at all.
var suffixes = map[string]Operator{
	"":         OpEq,
	"gte":      OpGte,
	"gt":       OpGt,
	"lte":      OpLte,
	"lt":       OpLt,
	"contains": OpContains,
	"in":       OpIn,
}

// Lookups maps lookup keys ("age", "age__gte", "name__in") to values.
type Lookups map[string]any

// Lookup is a parsed lookup key.
type Lookup struct {
	Key   string
	Field string
	Op    Operator
}

// ParseLookup splits key at its last "__". When the text after it is not a
// known suffix the whole key is taken as the field name, so field names may
// themselves contain "__".
func ParseLookup(key string) Lookup {
	if i := strings.LastIndex(key, lookupSep); i >= 0 {
		if op, ok := suffixes[key[i+len(lookupSep):]]; ok {
			return Lookup{Key: key, Field: key[:i], Op: op}
		}
	}
	return Lookup{Key: key, Field: key, Op: OpEq}
}
