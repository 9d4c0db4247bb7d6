package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/config"
	"github.com/derickschaefer/pickup/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pickup configuration",
	Long:  `Read and write pickup configuration stored in config.json or config.yaml.`,
}

var configInitYAML bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config file in the current directory",
	Example: `  pickup config init
  pickup config init --yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if configInitYAML {
			path = "config.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Point data_path at your PMS snapshot export, or set source to")
		fmt.Fprintln(cmd.OutOrStdout(), "  postgres and fill in dsn to read the raw table directly.")
		return nil
	},
}

var configShowSecrets bool

// configView is the resolved configuration as printed by `config show`.
type configView struct {
	DataPath        string  `json:"data_path"`
	Source          string  `json:"source"`
	DSN             string  `json:"dsn"`
	Table           string  `json:"table"`
	Format          string  `json:"default_format"`
	DBPath          string  `json:"db_path"`
	ZThreshold      float64 `json:"z_threshold"`
	SmoothingWindow int     `json:"smoothing_window"`
	Listen          string  `json:"listen"`
	RateLimit       float64 `json:"rate_limit"`
	ReloadSchedule  string  `json:"reload_schedule"`
	ConfigFile      string  `json:"config_file"`
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"get"},
	Short:   "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Flags{
			DataPath: globalFlags.Data,
			DBPath:   globalFlags.DB,
			DSN:      globalFlags.DSN,
		})
		if err != nil {
			return err
		}

		dsn := cfg.RedactedDSN()
		if configShowSecrets {
			dsn = cfg.DSN
		}
		v := configView{
			DataPath:        cfg.DataPath,
			Source:          cfg.SourceKind,
			DSN:             dsn,
			Table:           cfg.Table,
			Format:          cfg.Format,
			DBPath:          cfg.DBPath,
			ZThreshold:      cfg.ZThreshold,
			SmoothingWindow: cfg.SmoothingWindow,
			Listen:          cfg.Listen,
			RateLimit:       cfg.RateLimit,
			ReloadSchedule:  cfg.ReloadSchedule,
			ConfigFile:      cfg.ConfigPath,
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}

		orNot := func(s string) string {
			if s == "" {
				return "(not set)"
			}
			return s
		}
		printKVTable(cmd.OutOrStdout(), [][]string{
			{"data_path", orNot(v.DataPath)},
			{"source", v.Source},
			{"dsn", orNot(v.DSN)},
			{"table", v.Table},
			{"default_format", v.Format},
			{"db_path", v.DBPath},
			{"z_threshold", strconv.FormatFloat(v.ZThreshold, 'f', -1, 64)},
			{"smoothing_window", strconv.Itoa(v.SmoothingWindow)},
			{"listen", v.Listen},
			{"rate_limit", fmt.Sprintf("%g req/s", v.RateLimit)},
			{"reload_schedule", orNot(v.ReloadSchedule)},
			{"config_file", orNot(v.ConfigFile)},
		})
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\n⚠  %v\n", err)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Example: `  pickup config set data_path exports/pms.json
  pickup config set z_threshold 2.5
  pickup config set reload_schedule "@every 15m"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load existing file or start from template
		existing, path, err := config.FindFile()
		if err != nil {
			return err
		}
		f := config.Template()
		if existing != nil {
			f = *existing
		} else {
			path = config.DefaultConfigFile
		}

		if err := f.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", args[0], path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitYAML, "yaml", false, "write config.yaml instead of config.json")
	configShowCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "show the DSN password in plain text")
}
