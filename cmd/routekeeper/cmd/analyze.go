package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/routekeeper/internal/analyzer"
	"github.com/solatis/routekeeper/internal/interpreter"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [program.json]",
	Short: "Check a program against the domain and its constraints",
	Long: `Type check a program and verify every rule path against the constraint
graph. Exits non-zero when the program would be rejected at activation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Bool("strict", false, "fail when a rule can never match")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	p, err := readProgram(cmd, path)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	report, err := analyzer.Analyze(cmd.Context(), eng.Analyzer, p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paths := 0
	for _, r := range report.Rules {
		paths += r.Paths
	}
	fmt.Fprintf(out, "rules: %d, paths: %d, cost: %d\n", len(report.Rules), paths, interpreter.ProgramCost(p))
	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintf(out, "%d path(s) can never match:\n%s", len(failures), report.Explain())
	}
	for _, r := range report.Unsatisfiable() {
		fmt.Fprintf(out, "rule %d (%s) can never match\n", r.Index, r.Name)
	}

	if cfg.Engine.RejectUnsatisfiable {
		return report.Err()
	}
	return nil
}
