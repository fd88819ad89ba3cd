// =============================================================================
// Weight Merge - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   weightmerge validate                           # check config and profiles
//   weightmerge validate --sales S --weights W     # also dry-run a merge
//
// Nothing is written. With inputs, the command prints how many rows would be
// kept and why the rest would be rejected.
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/weight-merge/internal/config"
	"github.com/ginjaninja78/weight-merge/internal/report"
)

var validateFlags struct {
	sales   string
	weights string
	profile string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, profiles and optionally a pair of inputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "=== Configuration ===")
		fmt.Fprintf(out, "Config file:     %s\n", describeConfigFile())
		fmt.Fprintf(out, "Output dir:      %s\n", appConfig.OutputDir)
		fmt.Fprintf(out, "Default format:  %s\n", appConfig.DefaultFormat)
		fmt.Fprintf(out, "Name format:     %s\n", appConfig.OutputNameFormat)

		fmt.Fprintf(out, "\n=== Profiles (%s) ===\n", appConfig.ProfilesDir)
		if len(profiles) == 0 {
			fmt.Fprintln(out, "  (none; the built-in default profile is used)")
		}
		for _, p := range profiles {
			fmt.Fprintf(out, "  %s  patterns=[%s] policy=%s sales_header=%d weights_header=%d\n",
				p.Name, strings.Join(p.FileMatchingPatterns, ", "), p.DuplicatePolicy, *p.Sales.HeaderRow, *p.Weights.HeaderRow)
			for _, w := range p.Warnings() {
				fmt.Fprintf(out, "    warning: %s\n", w)
			}
		}

		if validateFlags.sales == "" && validateFlags.weights == "" {
			fmt.Fprintln(out, "\nConfiguration is valid.")
			return nil
		}
		if validateFlags.sales == "" || validateFlags.weights == "" {
			return fmt.Errorf("--sales and --weights must be given together")
		}

		profile, err := config.Select(profiles, validateFlags.profile, validateFlags.sales)
		if err != nil {
			return err
		}
		job := mergeJob{
			SalesPath:   validateFlags.sales,
			WeightsPath: validateFlags.weights,
			Profile:     profile,
			Format:      report.FormatXLSX,
			DryRun:      true,
		}
		outcome, err := runMergeJob(job, log, time.Now())
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "\n=== Dry Run ===")
		printOutcome(out, outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringVar(&validateFlags.sales, "sales", "", "Sales export to check")
	f.StringVar(&validateFlags.weights, "weights", "", "Weight reference to check")
	f.StringVarP(&validateFlags.profile, "profile", "p", "", "Profile name (default: matched on the sales file name)")
}

func describeConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "config.yaml if present, otherwise defaults"
}
