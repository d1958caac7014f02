package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/store"
)

type styles struct {
	header lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
	title  lipgloss.Style
	warn   lipgloss.Style
	muted  lipgloss.Style
}

// newStyles binds the styles to w so that colour follows w's terminal profile.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("240")),
		title:  r.NewStyle().Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (s styles) table(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		})
}

func writeTable(w io.Writer, ca *generator.CoveringArray) error {
	s := newStyles(w)

	headers := append([]string{"#"}, ca.Factors...)
	rows := make([][]string, 0, len(ca.TestCases))
	for i, tc := range ca.TestCases {
		rows = append(rows, append([]string{strconv.Itoa(i + 1)}, cells(tc, ca.Factors)...))
	}

	var sb strings.Builder
	sb.WriteString(s.table(headers, rows).String())
	sb.WriteString("\n")

	if len(ca.Remainders) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.warn.Render(fmt.Sprintf("%d combinations could not be covered under the constraints:", len(ca.Remainders))))
		sb.WriteString("\n")
		for _, r := range ca.Remainders {
			sb.WriteString("  " + r.String() + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(s.muted.Render(fmt.Sprintf("%d test cases, strength %d, engine %s, %s",
		len(ca.TestCases), ca.Stats.Strength, ca.Stats.Engine, ca.Stats.Duration.Round(time.Microsecond))))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Runs writes a table of cached runs.
func Runs(w io.Writer, runs []store.Record) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No cached runs")
		return err
	}

	s := newStyles(w)
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.ModelName,
			r.Engine,
			strconv.Itoa(r.Strength),
			strconv.Itoa(r.TestCases),
			strconv.Itoa(r.Remainders),
			r.CreatedAt.Format(time.RFC3339),
		})
	}
	t := s.table([]string{"ID", "MODEL", "ENGINE", "T", "ROWS", "REMAINDERS", "CREATED"}, rows)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// Report writes a coverage verification report.
func Report(w io.Writer, r *generator.Report) error {
	s := newStyles(w)

	var sb strings.Builder
	sb.WriteString(s.title.Render("Coverage report"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  combinations: %d\n", r.Combinations)
	fmt.Fprintf(&sb, "  covered:      %d\n", r.Covered)
	fmt.Fprintf(&sb, "  remainders:   %d\n", r.Remainders)
	fmt.Fprintf(&sb, "  infeasible:   %d\n", r.Infeasible)

	if len(r.Uncovered) > 0 {
		sb.WriteString(s.warn.Render(fmt.Sprintf("%d feasible combinations are not covered:", len(r.Uncovered))))
		sb.WriteString("\n")
		for _, t := range r.Uncovered {
			sb.WriteString("  " + t.String() + "\n")
		}
	}
	if len(r.InvalidRows) > 0 {
		sb.WriteString(s.warn.Render(fmt.Sprintf("%d test cases are invalid:", len(r.InvalidRows))))
		sb.WriteString("\n")
		for _, t := range r.InvalidRows {
			sb.WriteString("  " + t.String() + "\n")
		}
	}
	if r.OK() {
		sb.WriteString("OK\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
