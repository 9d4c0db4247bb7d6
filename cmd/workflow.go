package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/store"
	"github.com/derickschaefer/pickup/internal/util"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Save and replay exact command lines",
	Long: `Workflows let you save a pickup command and replay it later, producing
the same report from the same parameters against the current data.

  pickup workflow save --name "weekly-anomalies" --cmd "anomalies --cutoff 2025-05-01 --days 30"
  pickup workflow list
  pickup workflow run weekly-anomalies`,
}

// ─── workflow save ────────────────────────────────────────────────────────────

var (
	workflowSaveName string
	workflowSaveCmd  string
)

var workflowSaveCommand = &cobra.Command{
	Use:   "save",
	Short: "Save a command line as a named workflow",
	Example: `  pickup workflow save --name "may-series" --cmd "series --start 2025-05-01 --end 2025-05-31 --limit 31"
  pickup workflow save --name "pickup-csv" --cmd "pickup --max-lead 60 --format csv"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if workflowSaveName == "" {
			return fmt.Errorf("--name is required")
		}
		if workflowSaveCmd == "" {
			return fmt.Errorf("--cmd is required")
		}

		// Reject command lines that would not parse when replayed.
		wf := store.Workflow{Name: workflowSaveName, CommandLine: workflowSaveCmd}
		if sub, _, err := rootCmd.Find(wf.Args()); err != nil || sub == rootCmd {
			return fmt.Errorf("%q does not name a pickup command", workflowSaveCmd)
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if existing, ok, err := deps.Store.GetWorkflow(workflowSaveName); err == nil && ok {
			return fmt.Errorf("a workflow named %q already exists (%s)", workflowSaveName, existing.ID)
		}

		id, err := newWorkflowID()
		if err != nil {
			return err
		}
		wf.ID = id
		wf.CreatedAt = time.Now().UTC()
		if err := deps.Store.PutWorkflow(wf); err != nil {
			return fmt.Errorf("saving workflow: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved workflow %s  (%s)\n", id, workflowSaveName)
		return nil
	},
}

// ─── workflow list ────────────────────────────────────────────────────────────

var workflowListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all saved workflows",
	Example: `  pickup workflow list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		wfs, err := deps.Store.ListWorkflows()
		if err != nil {
			return fmt.Errorf("listing workflows: %w", err)
		}
		if len(wfs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No workflows saved.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: pickup workflow save --name <name> --cmd \"<command>\"")
			return nil
		}

		printSimpleTable(cmd.OutOrStdout(), []string{"ID", "NAME", "COMMAND", "CREATED"}, func(add func(...string)) {
			for _, wf := range wfs {
				cmdPreview := wf.CommandLine
				if len(cmdPreview) > 50 {
					cmdPreview = cmdPreview[:47] + "..."
				}
				add(wf.ID, wf.Name, cmdPreview, wf.CreatedAt.Format("2006-01-02 15:04"))
			}
		})
		return nil
	},
}

// ─── workflow show ────────────────────────────────────────────────────────────

var workflowShowCmd = &cobra.Command{
	Use:     "show <ID|name>",
	Short:   "Show full details of a workflow",
	Example: `  pickup workflow show may-series`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		wf, ok, err := deps.Store.GetWorkflow(args[0])
		if err != nil {
			return fmt.Errorf("reading workflow: %w", err)
		}
		if !ok {
			return fmt.Errorf("workflow %q not found", args[0])
		}

		printSimpleTable(cmd.OutOrStdout(), []string{"FIELD", "VALUE"}, func(add func(...string)) {
			add("ID", wf.ID)
			add("Name", wf.Name)
			add("Command", wf.CommandLine)
			add("Created", wf.CreatedAt.Format(time.RFC3339))
		})
		return nil
	},
}

// ─── workflow run ─────────────────────────────────────────────────────────────

var workflowRunCmd = &cobra.Command{
	Use:     "run <ID|name>",
	Short:   "Re-execute a saved workflow",
	Example: `  pickup workflow run may-series`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}

		// Read the workflow before closing the store; the child process
		// opens its own handle to record its ingest run.
		wf, ok, err := deps.Store.GetWorkflow(args[0])
		deps.Close()
		if err != nil {
			return fmt.Errorf("reading workflow: %w", err)
		}
		if !ok {
			return fmt.Errorf("workflow %q not found", args[0])
		}

		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("finding executable: %w", err)
		}

		c := exec.CommandContext(cmd.Context(), self, wf.Args()...)
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()

		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "▶ pickup %s\n\n", wf.CommandLine)
		}
		return c.Run()
	},
}

// ─── workflow delete ──────────────────────────────────────────────────────────

var workflowDeleteCmd = &cobra.Command{
	Use:     "delete <ID|name>...",
	Short:   "Delete saved workflows",
	Example: `  pickup workflow delete may-series pickup-csv`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		var errs util.MultiError
		for _, arg := range args {
			wf, ok, err := deps.Store.GetWorkflow(arg)
			if err != nil {
				errs.Add(fmt.Errorf("reading workflow %q: %w", arg, err))
				continue
			}
			if !ok {
				errs.Add(fmt.Errorf("workflow %q not found", arg))
				continue
			}
			if err := deps.Store.DeleteWorkflow(wf.ID); err != nil {
				errs.Add(fmt.Errorf("deleting workflow %q: %w", arg, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted workflow %s  (%s)\n", wf.ID, wf.Name)
		}
		return errs.Err()
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowSaveCommand)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowDeleteCmd)

	workflowSaveCommand.Flags().StringVar(&workflowSaveName, "name", "", "human-readable name for the workflow (required)")
	workflowSaveCommand.Flags().StringVar(&workflowSaveCmd, "cmd", "", "command line to save, without the binary name (required)")
	workflowSaveCommand.MarkFlagRequired("name")
	workflowSaveCommand.MarkFlagRequired("cmd")
}

// ─── ID generation ────────────────────────────────────────────────────────────

// newWorkflowID returns a time-ordered UUIDv7, so IDs sort by creation.
func newWorkflowID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating workflow id: %w", err)
	}
	return id.String(), nil
}
