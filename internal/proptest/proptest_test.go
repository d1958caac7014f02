package proptest

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

// TestPropertyTestingSetup verifies that gopter is properly set up.
func TestPropertyTestingSetup(t *testing.T) {
	properties := gopter.NewProperties(FastTestParameters())

	properties.Property("Identifier generates valid identifiers", prop.ForAll(
		func(id string) bool {
			return len(id) > 0
		},
		Identifier(),
	))

	properties.Property("IntRange generates integers in range", prop.ForAll(
		func(n int) bool {
			return n >= 0 && n <= 100
		},
		IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// TestSpaceGenerators checks the shape of generated factor spaces.
func TestSpaceGenerators(t *testing.T) {
	properties := gopter.NewProperties(FastTestParameters())

	properties.Property("spaces respect their bounds", prop.ForAll(
		func(s Space) bool {
			if s.Factors.Len() < 2 || s.Factors.Len() > 5 {
				return false
			}
			if s.Strength < 2 || s.Strength > s.Factors.Len() {
				return false
			}
			for _, f := range s.Factors.List() {
				if f.Len() < 1 || f.Len() > 3 {
					return false
				}
			}
			return len(s.Forbidden) <= 2
		},
		ConstrainedSpace(5, 3, 2),
	))

	properties.Property("forbidden pairs use known levels", prop.ForAll(
		func(s Space) bool {
			for _, t := range s.Forbidden {
				if t.Len() != 2 {
					return false
				}
				for _, name := range t.Keys() {
					f, ok := s.Factors.Get(name)
					l, _ := t.Get(name)
					if !ok || f.IndexOf(l.Get()) < 0 {
						return false
					}
				}
			}
			return true
		},
		ConstrainedSpace(4, 3, 3),
	))

	properties.TestingRun(t)
}
