// Package model reads and validates factor-space model files.
//
// A model is a YAML document:
//
//	name: checkout
//	strength: 2
//	engine: ipo2
//	factors:
//	  - name: browser
//	    levels: [chrome, firefox, safari]
//	  - name: payment
//	    levels: [card, paypal]
//	constraints:
//	  - Implies(payment == "paypal", browser != "safari")
package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Model is a factor space with its generation settings.
type Model struct {
	Name        string       `yaml:"name,omitempty" json:"name,omitempty"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Strength    int          `yaml:"strength,omitempty" json:"strength,omitempty"`
	Engine      string       `yaml:"engine,omitempty" json:"engine,omitempty"`
	Factors     []FactorSpec `yaml:"factors" json:"factors"`
	Constraints []string     `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// FactorSpec declares one factor.
type FactorSpec struct {
	Name   string `yaml:"name" json:"name"`
	Levels []any  `yaml:"levels" json:"levels"`
}

// Load reads and validates a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ModelNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read model file '%s': %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("model file '%s': %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a YAML model. Unknown fields are rejected.
func Parse(data []byte) (*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Model
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("", "document is empty")
		}
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal encodes the model as YAML.
func (m *Model) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize model: %w", err)
	}
	return data, nil
}

// Validate checks the model. It returns a *ValidationError naming the first
// offending field.
func (m *Model) Validate() error {
	if len(m.Factors) == 0 {
		return invalid("factors", "at least one factor is required")
	}

	names := make(map[string]struct{}, len(m.Factors))
	for i, fs := range m.Factors {
		field := fmt.Sprintf("factors[%d]", i)
		if fs.Name == "" {
			return invalid(field+".name", "name cannot be empty")
		}
		if _, dup := names[fs.Name]; dup {
			return invalid(field+".name", "duplicate factor '%s'", fs.Name)
		}
		names[fs.Name] = struct{}{}

		if len(fs.Levels) == 0 {
			return invalid(field+".levels", "factor '%s' has no levels", fs.Name)
		}
		seen := make(map[string]struct{}, len(fs.Levels))
		for j, l := range fs.Levels {
			if !tuple.Comparable(l) {
				return invalid(fmt.Sprintf("%s.levels[%d]", field, j), "levels must be scalars, got %T", l)
			}
			key := fmt.Sprintf("%T:%v", l, l)
			if _, dup := seen[key]; dup {
				return invalid(fmt.Sprintf("%s.levels[%d]", field, j), "duplicate level '%v'", l)
			}
			seen[key] = struct{}{}
		}
	}

	switch m.Engine {
	case "", "ipo2", "simple":
	default:
		return invalid("engine", "must be 'ipo2' or 'simple', got '%s'", m.Engine)
	}

	if m.Strength != 0 {
		if m.Strength < 2 {
			return invalid("strength", "must be at least 2, got %d", m.Strength)
		}
		if m.Strength > len(m.Factors) {
			return invalid("strength", "cannot exceed the number of factors (%d), got %d", len(m.Factors), m.Strength)
		}
	}

	for i, src := range m.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		expr, err := constraint.ParseExpr(src)
		if err != nil {
			return invalid(field, "%v", err)
		}
		for _, sym := range expr.Symbols() {
			if _, ok := names[sym]; !ok {
				return invalid(field, "unknown factor '%s'", sym)
			}
		}
	}
	return nil
}

// FactorSpace builds the ordered factor sequence.
func (m *Model) FactorSpace() (*factor.Factors, error) {
	list := make([]factor.Factor, 0, len(m.Factors))
	for _, fs := range m.Factors {
		f, err := factor.New(fs.Name, fs.Levels...)
		if err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return factor.NewFactors(list...)
}

// Checker compiles the constraints. A model without constraints yields
// constraint.None.
func (m *Model) Checker() (constraint.Checker, error) {
	if len(m.Constraints) == 0 {
		return constraint.None, nil
	}
	checkers := make([]constraint.Checker, 0, len(m.Constraints))
	for i, src := range m.Constraints {
		expr, err := constraint.ParseExpr(src)
		if err != nil {
			return nil, invalid(fmt.Sprintf("constraints[%d]", i), "%v", err)
		}
		checkers = append(checkers, expr)
	}
	return constraint.All(checkers...), nil
}

// WithDefaults returns a copy with an unset strength and engine filled in.
// The strength is capped at the number of factors; a single-factor model
// keeps an unset strength.
func (m *Model) WithDefaults(strength int, engine string) *Model {
	out := *m
	if out.Strength == 0 && len(out.Factors) >= 2 {
		out.Strength = min(strength, len(out.Factors))
	}
	if out.Engine == "" {
		out.Engine = engine
	}
	return &out
}

// Hash returns a stable digest of everything in the model that influences
// generation. The name and description are excluded. params carries engine
// settings from outside the model, such as "search_budget=4096".
func (m *Model) Hash(params ...string) (string, error) {
	canonical := struct {
		Strength    int          `yaml:"strength"`
		Engine      string       `yaml:"engine"`
		Factors     []FactorSpec `yaml:"factors"`
		Constraints []string     `yaml:"constraints"`
		Params      []string     `yaml:"params,omitempty"`
	}{m.Strength, m.Engine, m.Factors, m.Constraints, params}

	data, err := yaml.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to hash model: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
