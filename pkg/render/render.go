// Package render writes covering arrays and cache listings in the output
// formats of the command line: table, json, yaml and csv.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Formats lists the supported output formats.
var Formats = []string{"table", "json", "yaml", "csv"}

// document is the json/yaml shape of a covering array. Test cases are
// positional so that column order survives encoding.
type document struct {
	ID         string           `json:"id,omitempty" yaml:"id,omitempty"`
	Factors    []string         `json:"factors" yaml:"factors"`
	TestCases  [][]any          `json:"test_cases" yaml:"test_cases"`
	Remainders []map[string]any `json:"remainders" yaml:"remainders"`
	Stats      stats            `json:"stats" yaml:"stats"`
}

type stats struct {
	Engine     string `json:"engine" yaml:"engine"`
	Strength   int    `json:"strength" yaml:"strength"`
	TestCases  int    `json:"test_cases" yaml:"test_cases"`
	Remainders int    `json:"remainders" yaml:"remainders"`
	Duration   string `json:"duration" yaml:"duration"`
}

// CoveringArray writes ca to w in format.
func CoveringArray(w io.Writer, ca *generator.CoveringArray, format string) error {
	if ca == nil {
		return fmt.Errorf("nothing to render")
	}
	switch format {
	case "table", "":
		return writeTable(w, ca)
	case "json":
		data, err := json.MarshalIndent(toDocument(ca), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toDocument(ca)); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "csv":
		return writeCSV(w, ca)
	default:
		return fmt.Errorf("unknown output format '%s' (available: %v)", format, Formats)
	}
}

func toDocument(ca *generator.CoveringArray) document {
	doc := document{
		ID:         ca.ID,
		Factors:    ca.Factors,
		TestCases:  make([][]any, 0, len(ca.TestCases)),
		Remainders: make([]map[string]any, 0, len(ca.Remainders)),
		Stats: stats{
			Engine:     ca.Stats.Engine,
			Strength:   ca.Stats.Strength,
			TestCases:  len(ca.TestCases),
			Remainders: len(ca.Remainders),
			Duration:   ca.Stats.Duration.String(),
		},
	}
	for _, row := range ca.TestCases {
		values := make([]any, len(ca.Factors))
		for i, name := range ca.Factors {
			if l, ok := row.Get(name); ok {
				values[i] = l.Get()
			}
		}
		doc.TestCases = append(doc.TestCases, values)
	}
	for _, r := range ca.Remainders {
		doc.Remainders = append(doc.Remainders, r.Values())
	}
	return doc
}

func writeCSV(w io.Writer, ca *generator.CoveringArray) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ca.Factors); err != nil {
		return err
	}
	for _, row := range ca.TestCases {
		if err := cw.Write(cells(row, ca.Factors)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// cells renders the levels of t in order; absent names give empty cells.
func cells(t *tuple.Tuple, order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		if l, ok := t.Get(name); ok && !l.IsDontCare() {
			out[i] = format(l.Get())
		}
	}
	return out
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
