// =============================================================================
// Weight Merge - Merge Command
// =============================================================================
//
// COMMAND USAGE:
//   weightmerge merge --sales S --weights W [flags]
//
// FLAGS:
//   --sales             : Sales export (CSV or XLSX)
//   --weights           : Unit weight reference (CSV or XLSX)
//   --out               : Report path or directory (default: output_dir)
//   --format            : xlsx, csv or sqlite (default: from --out, then config)
//   --profile           : Profile name (default: matched on the sales file name)
//   --sales-header-row  : 0-based sales header row, overriding the profile
//   --no-banner         : Omit the XLSX title and filter block
//   --summary           : Write <report>.summary.yaml next to the report
//
// =============================================================================

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/weight-merge/internal/config"
)

var mergeFlags struct {
	sales          string
	weights        string
	out            string
	format         string
	profile        string
	salesHeaderRow int
	noBanner       bool
	summary        bool
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge one sales export with a weight reference",
	Long: `Merge reads a sales export and a unit weight reference, drops sales rows
that are duplicated or incomplete, joins every remaining sale to its product's
unit weight and writes a report sorted by date (newest first), product and
item.

Sales whose product is not in the reference are kept with empty weights.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := config.Select(profiles, mergeFlags.profile, mergeFlags.sales)
		if err != nil {
			return err
		}
		format, err := resolveFormat(mergeFlags.format, mergeFlags.out, appConfig.DefaultFormat)
		if err != nil {
			return err
		}

		job := mergeJob{
			SalesPath:    mergeFlags.sales,
			WeightsPath:  mergeFlags.weights,
			Profile:      profile,
			Format:       format,
			OutPath:      mergeFlags.out,
			OutputDir:    appConfig.OutputDir,
			NameFmt:      appConfig.OutputNameFormat,
			Banner:       profile.BannerEnabled() && !mergeFlags.noBanner,
			CSVPrecision: appConfig.CSVPrecision,
			Summary:      mergeFlags.summary,
		}
		if cmd.Flags().Changed("sales-header-row") {
			row := mergeFlags.salesHeaderRow
			job.SalesHeaderRow = &row
		}

		log.Infof("merging %s with %s (profile %s, %s)", job.SalesPath, job.WeightsPath, profile.Name, format)
		outcome, err := runMergeJob(job, log, time.Now())
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	f := mergeCmd.Flags()
	f.StringVar(&mergeFlags.sales, "sales", "", "Sales export (CSV or XLSX)")
	f.StringVar(&mergeFlags.weights, "weights", "", "Unit weight reference (CSV or XLSX)")
	f.StringVarP(&mergeFlags.out, "out", "o", "", "Report path or directory (default: output_dir from config)")
	f.StringVarP(&mergeFlags.format, "format", "f", "", "Output format: xlsx, csv or sqlite")
	f.StringVarP(&mergeFlags.profile, "profile", "p", "", "Profile name (default: matched on the sales file name)")
	f.IntVar(&mergeFlags.salesHeaderRow, "sales-header-row", 1, "0-based row holding the sales header (overrides the profile)")
	f.BoolVar(&mergeFlags.noBanner, "no-banner", false, "Omit the XLSX title and filter block")
	f.BoolVar(&mergeFlags.summary, "summary", false, "Write a YAML run summary next to the report")

	_ = mergeCmd.MarkFlagRequired("sales")
	_ = mergeCmd.MarkFlagRequired("weights")
}
