// Package proptest provides property-based testing infrastructure and generators.
package proptest

import (
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

// TestParameters returns the standard test parameters for property tests.
// Default: 1000 iterations for a good balance between coverage and speed.
func TestParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 1000
	return params
}

// FastTestParameters returns parameters for properties whose single check is
// expensive, such as a full generation run.
func FastTestParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	return params
}

// Identifier generates random valid identifiers (alphanumeric, starting with letter).
func Identifier() gopter.Gen {
	return gen.Identifier()
}

// IntRange generates integers in a range.
func IntRange(min, max int) gopter.Gen {
	return gen.IntRange(min, max)
}
