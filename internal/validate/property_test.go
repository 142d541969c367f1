package validate

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestValidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("denied keyword always rejects", prop.ForAll(
		func(kwIdx int, upper bool, padding int) bool {
			kw := deniedKeywords[kwIdx%len(deniedKeywords)]
			if !upper {
				kw = strings.ToLower(kw)
			}
			pad := strings.Repeat(" ", padding%5+1)

			query := "SELECT * FROM t WHERE" + pad + kw + pad + "x"

			return Validate(query) != nil
		},
		gen.IntRange(0, 1<<20),
		gen.Bool(),
		gen.IntRange(0, 1<<20),
	))

	properties.Property("non-SELECT prefix always rejects", prop.ForAll(
		func(prefix string) bool {
			trimmed := strings.TrimSpace(prefix)
			if trimmed == "" || strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
				return true
			}

			return Validate(prefix+" * FROM t") != nil
		},
		gen.AlphaString(),
	))

	properties.Property("embedded statement separator always rejects", prop.ForAll(
		func(table string) bool {
			if table == "" {
				return true
			}

			query := "SELECT * FROM " + table + "; SELECT * FROM " + table

			return Validate(query) != nil
		},
		gen.Identifier(),
	))

	properties.Property("validation is deterministic", prop.ForAll(
		func(query string) bool {
			first := Validate(query)
			second := Validate(query)

			if first == nil {
				return second == nil
			}

			return second != nil && first.Error() == second.Error()
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
