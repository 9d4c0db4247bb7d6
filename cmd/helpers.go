package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/app"
	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/render"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns def, or the --out file when one was given. The
// returned close func must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result in the resolved format and prints warnings and
// stats to stderr.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result) error {
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := render.Render(w, result, resolveFormat(deps.Config.Format)); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if !deps.Config.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
	}
	return nil
}

// newResult wraps data in a Result envelope carrying the model's load stats.
func newResult(kind, command string, data interface{}, items int, m *engine.Model, warnings []string, start time.Time) *model.Result {
	r := &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Warnings:    warnings,
		Stats: model.ResultStats{
			Items:      items,
			DurationMs: time.Since(start).Milliseconds(),
		},
	}
	if m != nil {
		r.Stats.Records = m.Stats().Records
		r.Stats.Skipped = m.Stats().Skipped
	}
	return r
}

// zValue returns the --z flag when set, else the configured threshold.
func zValue(cmd *cobra.Command, flag float64, deps *app.Deps) string {
	if cmd.Flags().Changed("z") {
		return strconv.FormatFloat(flag, 'f', -1, 64)
	}
	return strconv.FormatFloat(deps.Config.ZThreshold, 'f', -1, 64)
}

// queryValues builds url.Values from name/value pairs, skipping empty
// values, so CLI flags go through the same validation as HTTP queries.
func queryValues(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			v.Set(kv[i], kv[i+1])
		}
	}
	return v
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable renders a two-column key/value list using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-*s  %s\n", maxKey, r[0], r[1])
	}
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
