package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/routekeeper/internal/types"
)

var (
	programName     string
	programActivate bool
	programLimit    int
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Manage stored routing programs",
}

var programSaveCmd = &cobra.Command{
	Use:   "save [program.json]",
	Short: "Store a program as a new version",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProgramSave,
}

var programListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored program versions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runProgramList,
}

var programShowCmd = &cobra.Command{
	Use:   "show <program-id>",
	Short: "Print a stored program",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgramShow,
}

var programActivateCmd = &cobra.Command{
	Use:   "activate <program-id>",
	Short: "Analyze a stored program and mark it active",
	Long: `Analyze a stored program with the configured domain and constraints and,
if it passes, mark it as the active program. Running servers pick it up on
their next reload.`,
	Args: cobra.ExactArgs(1),
	RunE: runProgramActivate,
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.AddCommand(programSaveCmd, programListCmd, programShowCmd, programActivateCmd)

	programSaveCmd.Flags().StringVarP(&programName, "name", "n", "", "program name")
	programSaveCmd.Flags().BoolVar(&programActivate, "activate", false, "activate after saving")
	programListCmd.Flags().IntVar(&programLimit, "limit", 20, "maximum versions to list")
	programActivateCmd.Flags().Bool("strict", false, "reject programs with rules that can never match")
	programSaveCmd.Flags().Bool("strict", false, "with --activate, reject rules that can never match")
}

func runProgramSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	p, err := readProgram(cmd, path)
	if err != nil {
		return err
	}

	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	id, err := store.Save(ctx, programName, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)

	if !programActivate {
		return nil
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}
	if _, err := eng.Activate(ctx, store, id); err != nil {
		return fmt.Errorf("saved %s but activation was rejected: %w", id, err)
	}
	return nil
}

func runProgramList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := store.List(ctx, programLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRULES\tCREATED\tACTIVE")
	for _, r := range records {
		active := ""
		if r.Active {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Name, r.Rules, r.CreatedAt.Format(time.RFC3339), active)
	}
	return w.Flush()
}

func runProgramShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := types.ParseProgramID(args[0])
	if err != nil {
		return err
	}
	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd, rec.Program)
}

func runProgramActivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := types.ParseProgramID(args[0])
	if err != nil {
		return err
	}
	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	eng, err := newEngine()
	if err != nil {
		return err
	}
	snap, err := eng.Activate(ctx, store, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "activated %s (%d rules, %s interpreter)\n",
		snap.ProgramID, len(snap.Program.Rules), snap.Interpreter.Strategy())
	return nil
}
