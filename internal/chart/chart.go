// Package chart provides ASCII terminal chart rendering for availability
// progressions. Two renderers are available:
//
//   - Bar: horizontal bar chart, one bar per observation date, with the
//     baseline band shaded behind the bar
//   - Plot: multi-line ASCII chart with labeled axes, for a progression or a
//     predicted curve
//
// Both renderers handle NaN values gracefully (as gaps, not zeros).
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/engine"
)

// Point is one labelled value on a plot.
type Point struct {
	Label string
	Value float64
}

// BandPoint is one observation drawn against its baseline band.
type BandPoint struct {
	Label    string
	Value    float64
	Baseline float64
	Lo       float64
	Hi       float64
	Flag     string
}

// FromProgression converts a progression into band points, one per
// observation date, labelled "<parse date> L<lead>".
func FromProgression(p *engine.Progression) []BandPoint {
	out := make([]BandPoint, 0, len(p.Points))
	for _, pt := range p.Points {
		out = append(out, BandPoint{
			Label:    fmt.Sprintf("%s L%d", pt.ParseDate, pt.Lead),
			Value:    float64(pt.Observed),
			Baseline: pt.Baseline,
			Lo:       pt.Lo,
			Hi:       pt.Hi,
			Flag:     pt.Flag,
		})
	}
	return out
}

// ObservedPoints converts a progression into plot points of observed totals.
func ObservedPoints(p *engine.Progression) []Point {
	out := make([]Point, 0, len(p.Points))
	for _, pt := range p.Points {
		out = append(out, Point{Label: pt.ParseDate, Value: float64(pt.Observed)})
	}
	return out
}

// CurvePoints converts a predicted curve into plot points labelled by lead.
func CurvePoints(curve []analyze.CurvePoint) []Point {
	out := make([]Point, 0, len(curve))
	for _, c := range curve {
		out = append(out, Point{Label: "L" + strconv.Itoa(c.Lead), Value: c.Expected})
	}
	return out
}

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars is the maximum number of bars to render.
	// If there are more points than MaxBars, the last MaxBars are kept.
	// If 0, no limit is applied.
	MaxBars int
}

// Band glyphs.
const (
	glyphBar      = '█'
	glyphBand     = '░'
	glyphBaseline = '┆'
)

// Bar renders a horizontal bar chart of pts to w, one bar per point. The
// baseline band [Lo, Hi] is shaded where the bar does not reach it and the
// baseline median is marked; bars flagged low or high carry a marker.
//
// Output example:
//
//	2025-05-13  lead 30 → 0
//	2025-04-13 L30   41  ████████████████░░░░┆░░░░
//	2025-04-14 L29   12  ████████░░░░░░░░┆░░░░    ▼ low
func Bar(w io.Writer, title string, pts []BandPoint, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}

	// Filter to non-NaN points
	var valid []BandPoint
	for _, p := range pts {
		if !math.IsNaN(p.Value) {
			valid = append(valid, p)
		}
	}
	if len(valid) < 1 {
		return fmt.Errorf("chart bar: no observations to render")
	}

	// Keep only the last MaxBars points.
	if opts.MaxBars > 0 && len(valid) > opts.MaxBars {
		valid = valid[len(valid)-opts.MaxBars:]
	}

	// Scale runs from zero to the largest observed value or band edge.
	maxVal := 0.0
	for _, p := range valid {
		maxVal = math.Max(maxVal, math.Max(p.Value, p.Hi))
	}
	if maxVal == 0 {
		maxVal = 1 // avoid divide-by-zero for an all-zero progression
	}

	labelWidth, valWidth := 0, 0
	for _, p := range valid {
		labelWidth = max(labelWidth, len([]rune(p.Label)))
		valWidth = max(valWidth, len(formatFloat(p.Value)))
	}

	// Bar area = total - label - value - flag marker - separators
	const flagWidth = 7 // "  ▼ low"
	barAreaWidth := totalWidth - labelWidth - valWidth - flagWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}
	pos := func(v float64) int {
		if v <= 0 {
			return 0
		}
		return min(barAreaWidth, int(math.Round(v/maxVal*float64(barAreaWidth))))
	}

	fmt.Fprintf(w, "%s  (%s – %s)\n", title, valid[0].Label, valid[len(valid)-1].Label)

	for _, p := range valid {
		buf := []rune(strings.Repeat(" ", barAreaWidth))
		lo, hi := pos(p.Lo), pos(p.Hi)
		for i := lo; i < hi; i++ {
			buf[i] = glyphBand
		}
		if b := pos(p.Baseline); b < barAreaWidth {
			buf[b] = glyphBaseline
		}
		barLen := pos(p.Value)
		if barLen < 1 && p.Value > 0 {
			barLen = 1 // minimum 1 block so every non-zero bar is visible
		}
		for i := 0; i < barLen; i++ {
			buf[i] = glyphBar
		}

		marker := ""
		switch p.Flag {
		case analyze.FlagLow:
			marker = "  ▼ low"
		case analyze.FlagHigh:
			marker = "  ▲ high"
		}
		fmt.Fprintf(w, "%-*s  %*s  %s%s\n",
			labelWidth, p.Label,
			valWidth, formatFloat(p.Value),
			strings.TrimRight(string(buf), " "),
			marker,
		)
	}
	fmt.Fprintf(w, "%s = observed   %s = baseline band   %s = baseline median\n",
		string(glyphBar), string(glyphBand), string(glyphBaseline))
	return nil
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body (not counting axis labels).
	// If 0, defaults to 12.
	Height int
}

// Plot renders a multi-line ASCII chart of pts to w.
func Plot(w io.Writer, title string, pts []Point, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}

	// Collect valid values for scaling
	var validVals []float64
	for _, p := range pts {
		if !math.IsNaN(p.Value) {
			validVals = append(validVals, p.Value)
		}
	}
	if len(validVals) < 2 {
		return fmt.Errorf("chart plot: need at least 2 points (got %d)", len(validVals))
	}

	minVal, maxVal := validVals[0], validVals[0]
	for _, v := range validVals[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	// Y-axis label width: measure the widest tick label
	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	yAxisWidth := yLabelWidth + 2 // label + " ┤" or " ┼"

	// Plot body width (number of data columns)
	plotWidth := width - yAxisWidth
	if plotWidth < 10 {
		plotWidth = 10
	}

	cols := sampleCols(pts, plotWidth)
	grid := buildGrid(cols, minVal, maxVal, height)

	fmt.Fprintf(w, "%s  (%s to %s)\n", title, pts[0].Label, pts[len(pts)-1].Label)

	// Print rows top to bottom
	for row := 0; row < height; row++ {
		// Y-axis label: print on rows that have a tick
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		labelPadded := fmt.Sprintf("%*s", yLabelWidth, label)

		axisCh := "┤"
		if label != "" && math.Abs(minVal) < 1e-9 && row == height-1 {
			axisCh = "┼"
		} else if label == "" {
			axisCh = " "
		}

		fmt.Fprintf(w, "%s%s%s\n", labelPadded, axisCh, string(grid[row]))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(pts, plotWidth))
	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols spreads pts over exactly n columns. Each column holds the
// average of its bucket, or NaN if every value in it is NaN. With fewer
// points than columns a point is repeated across several columns.
func sampleCols(pts []Point, n int) []float64 {
	total := len(pts)
	cols := make([]float64, n)
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col+1)*total/n - 1
		if hi < lo {
			hi = lo
		}
		if hi >= total {
			hi = total - 1
		}
		sum, count := 0.0, 0
		for i := lo; i <= hi; i++ {
			if !math.IsNaN(pts[i].Value) {
				sum += pts[i].Value
				count++
			}
		}
		if count == 0 {
			cols[col] = math.NaN()
		} else {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid renders columns into a height×width rune grid using
// box-drawing characters to connect adjacent data points.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = make([]rune, len(cols))
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		if math.IsNaN(v) {
			rowOf[col] = -1 // gap
			continue
		}
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		rowOf[col] = max(0, min(height-1, r))
	}

	for col := 0; col < len(cols); col++ {
		r := rowOf[col]
		if r < 0 {
			continue
		}

		prevRow, nextRow := -2, -2
		if col > 0 {
			prevRow = rowOf[col-1]
		}
		if col < len(cols)-1 {
			nextRow = rowOf[col+1]
		}

		switch {
		case prevRow == -2 && nextRow == -2:
			grid[r][col] = '·'
		case (prevRow < 0 || prevRow == r) && (nextRow < 0 || nextRow == r):
			grid[r][col] = '─'
		case prevRow >= 0 && prevRow > r && nextRow >= 0 && nextRow > r,
			prevRow >= 0 && prevRow < r && nextRow >= 0 && nextRow < r:
			grid[r][col] = '─'
		case (prevRow < 0 || prevRow < r) && nextRow >= 0 && nextRow > r:
			grid[r][col] = '╭'
		case (prevRow < 0 || prevRow > r) && nextRow >= 0 && nextRow < r:
			grid[r][col] = '╰'
		case prevRow >= 0 && prevRow < r:
			grid[r][col] = '╮'
		case prevRow >= 0 && prevRow > r:
			grid[r][col] = '╯'
		default:
			grid[r][col] = '│'
		}

		// Vertical connectors between this row and the previous column's row
		if prevRow >= 0 && prevRow != r {
			lo, hi := min(r, prevRow), max(r, prevRow)
			for fill := lo + 1; fill < hi; fill++ {
				if grid[fill][col] == ' ' {
					grid[fill][col] = '│'
				}
			}
		}
	}
	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–5 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 4
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := 0; i < nTicks; i++ {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels builds a padded string with start, middle, and end labels.
func xAxisLabels(pts []Point, plotWidth int) string {
	if len(pts) == 0 {
		return ""
	}
	startLabel := pts[0].Label
	endLabel := pts[len(pts)-1].Label
	midLabel := pts[len(pts)/2].Label

	midPos := plotWidth/2 - len(midLabel)/2
	endPos := plotWidth - len(endLabel)

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range s {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, startLabel)
	writeAt(midPos, midLabel)
	writeAt(endPos, endLabel)
	return strings.TrimRight(string(buf), " ")
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats a value for labels: integers without decimals,
// otherwise at most two decimals with trailing zeros trimmed.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
