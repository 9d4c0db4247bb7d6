// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/pickup/internal/model"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// ValidFormat reports whether f is a known format.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one line per row of the payload (points, buckets,
// metrics ...). Payloads without a natural row form are written as one line.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	rows, ok := records(result)
	if !ok {
		return enc.Encode(result.Data)
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	sections, err := tabulate(result)
	if err != nil {
		return err
	}
	if sections == nil {
		// Fallback: JSON
		return renderJSON(w, result)
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		for _, line := range s.title {
			fmt.Fprintln(w, line)
		}
		if len(s.header) == 0 {
			continue
		}
		if len(s.title) > 0 {
			fmt.Fprintln(w)
		}
		tw := tablewriter.NewWriter(w)
		tw.SetHeader(s.header)
		tw.SetBorder(true)
		tw.SetRowLine(false)
		tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		tw.SetAlignment(tablewriter.ALIGN_LEFT)
		tw.SetColumnAlignment(s.alignments())
		tw.SetAutoWrapText(false)
		tw.AppendBulk(s.rows)
		tw.Render()
	}
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	sections, err := tabulate(result)
	if err != nil {
		return err
	}
	if sections == nil {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}
	wrote := false
	for _, s := range sections {
		if len(s.header) == 0 {
			continue
		}
		if wrote {
			_ = cw.Write(nil)
		}
		header := make([]string, len(s.header))
		for i, h := range s.header {
			header[i] = csvName(h)
		}
		_ = cw.Write(header)
		for _, r := range s.rows {
			_ = cw.Write(r)
		}
		wrote = true
	}

	cw.Flush()
	return cw.Error()
}

// csvName turns a table header into a snake_case column name.
func csvName(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", "%", "pct", "(", "", ")", "").Replace(h)
	return h
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	sections, err := tabulate(result)
	if err != nil {
		return err
	}
	if sections == nil {
		return renderJSON(w, result)
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		for _, line := range s.title {
			fmt.Fprintf(w, "%s\n\n", mdEscape(line))
		}
		if len(s.header) == 0 {
			continue
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(s.header, " | "))
		seps := make([]string, len(s.header))
		for j := range seps {
			seps[j] = strings.Repeat("-", max(3, len(s.header[j])))
		}
		fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
		for _, r := range s.rows {
			cells := make([]string, len(r))
			for j, c := range r {
				cells[j] = mdEscape(c)
			}
			fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
		}
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %d records • %d skipped • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.Records,
			result.Stats.Skipped,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats a statistic for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Trims unnecessary trailing zeros beyond the first (e.g. 3.400000 → 3.4).
// NaN renders as ".".
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	// Trim trailing zeros but keep at least one digit after the decimal point.
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0" // "4." → "4.0"
	}
	return s
}

// fixed formats v with exactly prec decimals.
func fixed(v float64, prec int) string {
	return fmt.Sprintf("%.*f", prec, v)
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
