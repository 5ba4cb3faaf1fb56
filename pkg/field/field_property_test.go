package field

import (
	"strconv"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_CharLengthLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("char validation fails exactly when value exceeds max size", prop.ForAll(
		func(maxSize int, value string) bool {
			f := Char(maxSize).Bind("name")
			_, err := f.Validate(value)
			tooLong := utf8.RuneCountInString(value) > maxSize
			return (err != nil) == tooLong
		},
		gen.IntRange(1, 64),
		gen.AnyString(),
	))

	properties.Property("integer literal is the decimal text of the value", prop.ForAll(
		func(n int64) bool {
			f := Integer().Bind("n")
			v, err := f.Validate(strconv.FormatInt(n, 10))
			if err != nil || v != n {
				return false
			}
			return f.Literal(n) == strconv.FormatInt(n, 10)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
