package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/weight-merge/internal/config"
	"github.com/ginjaninja78/weight-merge/internal/reconcile"
	"github.com/ginjaninja78/weight-merge/internal/report"
	"github.com/ginjaninja78/weight-merge/internal/tabular"
	"github.com/ginjaninja78/weight-merge/pkg/utils"
)

// =============================================================================
// MERGE JOB
// =============================================================================

// mergeJob is one sales file merged against one weight reference. It is
// shared by the merge, batch and validate commands.
type mergeJob struct {
	SalesPath   string
	WeightsPath string
	Profile     *config.Profile
	Format      report.Format

	// OutPath is the report path. Empty means a generated name in OutputDir.
	OutPath   string
	OutputDir string
	NameFmt   string

	// SalesHeaderRow overrides the profile when not nil.
	SalesHeaderRow *int

	Banner       bool
	CSVPrecision int
	Summary      bool
	DryRun       bool
}

// mergeOutcome is what a job produced.
type mergeOutcome struct {
	Result      *reconcile.Result
	OutPath     string
	SummaryPath string
	RunSummary  utils.RunSummary
}

// runMergeJob reads both inputs, runs the pipeline and, unless DryRun is
// set, writes the report and optional summary.
func runMergeJob(job mergeJob, logger reconcile.Logger, now time.Time) (*mergeOutcome, error) {
	opts := job.Profile.Options()
	if job.SalesHeaderRow != nil {
		opts.SalesHeaderRow = *job.SalesHeaderRow
	}
	pipeline, err := reconcile.New(opts, logger)
	if err != nil {
		return nil, err
	}

	sales, err := tabular.ReadFile(job.SalesPath, job.Profile.SalesSettings())
	if err != nil {
		return nil, err
	}
	weights, err := tabular.ReadFile(job.WeightsPath, job.Profile.WeightSettings())
	if err != nil {
		return nil, err
	}

	result, err := pipeline.Run(sales, weights)
	if err != nil {
		return nil, err
	}

	out := &mergeOutcome{
		Result: result,
		RunSummary: utils.RunSummary{
			Message:     "Files merged successfully",
			TotalRows:   len(result.Records),
			Columns:     result.Columns,
			GeneratedAt: now,
			Profile:     job.Profile.Name,
			Sales:       job.SalesPath,
			Weights:     job.WeightsPath,
			Format:      string(job.Format),
			Stats:       result.Stats,
		},
	}
	if result.Stats.DuplicateReferenceKeys > 0 {
		out.RunSummary.Warnings = append(out.RunSummary.Warnings,
			fmt.Sprintf("%d product(s) repeated in the weight reference", result.Stats.DuplicateReferenceKeys))
	}
	if job.DryRun {
		out.RunSummary.Message = "Dry run: no report written"
		return out, nil
	}

	outPath, reserved, err := job.outputPath(now)
	if err != nil {
		return nil, err
	}
	out.OutPath = outPath
	out.RunSummary.Output = outPath

	ropts := report.DefaultOptions()
	ropts.Banner = job.Banner
	ropts.CSVPrecision = job.CSVPrecision
	if err := report.WriteFile(outPath, job.Format, result.Records, ropts); err != nil {
		if reserved {
			_ = os.Remove(outPath)
		}
		return nil, err
	}

	if job.Summary {
		out.SummaryPath = utils.SummaryPath(out.OutPath)
		if err := utils.WriteSummary(out.SummaryPath, out.RunSummary); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// outputPath resolves where the report goes. An explicit file path is used
// as given and may be overwritten. Generated names, including an explicit
// path that names an existing directory or ends in a separator, are
// reserved on disk so concurrent jobs never share a report; reserved is
// true in that case.
func (job mergeJob) outputPath(now time.Time) (path string, reserved bool, err error) {
	name := utils.GenerateOutputFileName(job.NameFmt, map[string]string{
		"format":  job.Format.Extension(),
		"profile": job.Profile.Name,
		"source":  strings.TrimSuffix(filepath.Base(job.SalesPath), filepath.Ext(job.SalesPath)),
	}, now)

	dir := job.OutputDir
	if job.OutPath != "" {
		fi, statErr := os.Stat(job.OutPath)
		isDir := statErr == nil && fi.IsDir()
		if !isDir && !strings.HasSuffix(job.OutPath, string(os.PathSeparator)) {
			return job.OutPath, false, nil
		}
		dir = job.OutPath
	}

	path, err = utils.ReservePath(filepath.Join(dir, name))
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// resolveFormat picks the output format: the flag, then the extension of an
// explicit output path, then the configured default. A flag that names a
// different format than a recognised output extension is an error.
func resolveFormat(flag, outPath, fallback string) (report.Format, error) {
	var fromExt report.Format
	ext := strings.TrimPrefix(filepath.Ext(outPath), ".")
	if ext != "" {
		if f, err := report.ParseFormat(ext); err == nil {
			fromExt = f
		}
	}

	if flag != "" {
		f, err := report.ParseFormat(flag)
		if err != nil {
			return "", err
		}
		if fromExt != "" && fromExt != f {
			return "", fmt.Errorf("--format %s conflicts with output file extension .%s", f, ext)
		}
		return f, nil
	}
	if fromExt != "" {
		return fromExt, nil
	}
	return report.ParseFormat(fallback)
}

// =============================================================================
// OUTPUT
// =============================================================================

// printOutcome prints the run summary in the same shape as the HTTP JSON
// response: message, total rows, columns, then the row statistics.
func printOutcome(w io.Writer, o *mergeOutcome) {
	s := o.RunSummary
	fmt.Fprintln(w, s.Message)
	if o.OutPath != "" {
		fmt.Fprintf(w, "Output:          %s\n", o.OutPath)
	}
	if o.SummaryPath != "" {
		fmt.Fprintf(w, "Summary:         %s\n", o.SummaryPath)
	}
	fmt.Fprintf(w, "Profile:         %s\n", s.Profile)
	fmt.Fprintf(w, "Total rows:      %d\n", s.TotalRows)
	fmt.Fprintf(w, "Columns:         %s\n", strings.Join(s.Columns, ", "))
	printStats(w, o.Result)
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "Warning:         %s\n", warn)
	}
}

func printStats(w io.Writer, r *reconcile.Result) {
	st := r.Stats
	fmt.Fprintf(w, "Sales rows:      %d (%d valid, %d rejected)\n", st.SalesRows, st.ValidSales, st.Rejected())
	if st.Rejected() > 0 {
		fmt.Fprintf(w, "  duplicates:    %d\n", st.Duplicates)
		fields := make([]string, 0, len(st.MissingRequired))
		for f := range st.MissingRequired {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(w, "  missing %s: %d\n", f, st.MissingRequired[f])
		}
		fmt.Fprintf(w, "  bad quantity:  %d\n", st.BadQuantity)
		fmt.Fprintf(w, "  bad date:      %d\n", st.BadDate)
	}
	fmt.Fprintf(w, "Reference rows:  %d (%d without product)\n", st.ReferenceRows, st.DroppedReferenceRows)
	fmt.Fprintf(w, "Unmatched sales: %d\n", st.Unmatched)
}
