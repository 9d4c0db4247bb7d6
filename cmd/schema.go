package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/source"
)

var schemaSample int

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Survey the fields and values of the raw snapshot file",
	Long: `Reads the first --sample rows of the snapshot file and reports every field
with the JSON types and example values seen, followed by business insights:
hotels, check-in date range, availability and price ranges, sold-out rows,
and the room type and meal distributions.

Useful before a first run to confirm that the raw_* fields the engine reads
are present and well typed.`,
	Example: `  pickup schema
  pickup schema --sample 0          # read every row
  pickup schema --data export.jsonl --format md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		if deps.Config.SourceKind != source.KindFile {
			return fmt.Errorf("schema surveys a snapshot file; the configured source is %q", deps.Config.SourceKind)
		}
		sv, err := source.SurveyFile(cmd.Context(), deps.Config.DataPath, schemaSample)
		if err != nil {
			return err
		}
		r := newResult(model.KindSchema, "schema", sv, len(sv.Fields), nil, nil, start)
		r.Stats.Records = sv.Sampled
		return emit(cmd, deps, r)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().IntVar(&schemaSample, "sample", source.DefaultSurveySample, "rows to read (0 = all)")
}
