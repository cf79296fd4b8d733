package report

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/jrholliday/VeriPy/domain/verify"
)

// Report serializes score results to the flat table contract:
// metric, scope, threshold, value, ci_low, ci_high, n, dropped.
// Undefined scores stay visible as NaN rows; they are tagged results,
// not absent entries.

// Flatten returns the results as rows of strings, header first
func Flatten(results []verify.ScoreResult) [][]string {
	rows := [][]string{{"metric", "scope", "threshold", "value", "ci_low", "ci_high", "n", "dropped"}}
	for _, r := range results {
		threshold := ""
		if r.Threshold != nil {
			threshold = formatValue(*r.Threshold)
		}
		ciLow, ciHigh := "", ""
		if r.CI != nil {
			ciLow = formatValue(r.CI.Lower)
			ciHigh = formatValue(r.CI.Upper)
		}
		rows = append(rows, []string{
			r.Metric,
			r.Scope,
			threshold,
			formatValue(r.Value),
			ciLow,
			ciHigh,
			fmt.Sprintf("%d", r.N),
			fmt.Sprintf("%d", r.Dropped),
		})
	}
	return rows
}

// Table renders an aligned text table for terminal output
func Table(results []verify.ScoreResult) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for _, row := range Flatten(results) {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	return sb.String()
}

// Markdown renders the results as a markdown table
func Markdown(title string, results []verify.ScoreResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	rows := Flatten(results)
	sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
	for _, row := range rows[1:] {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return sb.String()
}

// HTML renders the markdown report to HTML for the web surface
func HTML(title string, results []verify.ScoreResult) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
	return markdown.ToHTML([]byte(Markdown(title, results)), p, renderer)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", v)
}
