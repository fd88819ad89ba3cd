// =============================================================================
// Weight Merge - Batch Command
// =============================================================================
//
// This command merges every sales export in the input directory against one
// weight reference.
//
// COMMAND USAGE:
//   weightmerge batch --weights W [flags]
//
// FLAGS:
//   --weights  : Unit weight reference used for every file
//   --format   : xlsx, csv or sqlite (default from config)
//   --profile  : Force one profile (default: matched per file name)
//   --pattern  : Glob(s) selecting sales files (default *.csv, *.xlsx, ...)
//   --workers  : Files merged concurrently (default 4)
//   --dry-run  : Validate and report counts without writing anything
//
// PROCESSING PIPELINE:
//   1. Discover sales files in input_dir (the weights file is skipped)
//   2. Match each file to a profile
//   3. Merge files concurrently, one report per file
//   4. Archive merged inputs when archive_inputs is set
//   5. Print a summary; a failed file never stops the others and leaves a
//      <name>.failed.summary.yaml in output_dir
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/weight-merge/internal/config"
	"github.com/ginjaninja78/weight-merge/internal/report"
	"github.com/ginjaninja78/weight-merge/pkg/utils"
)

var batchFlags struct {
	weights  string
	format   string
	profile  string
	patterns []string
	workers  int
	dryRun   bool
	summary  bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Merge every sales export in the input directory",
	Long: `Batch scans input_dir for sales exports and merges each one against the
same weight reference. Each file gets its own report in output_dir.

Profiles are matched per file through their file_matching_patterns. Files
that fail are reported and left in place; merged files are moved to
input_archive_dir when archive_inputs is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.StringVar(&batchFlags.weights, "weights", "", "Unit weight reference used for every file")
	f.StringVarP(&batchFlags.format, "format", "f", "", "Output format: xlsx, csv or sqlite")
	f.StringVarP(&batchFlags.profile, "profile", "p", "", "Use this profile for every file")
	f.StringSliceVar(&batchFlags.patterns, "pattern", nil, "Glob pattern(s) selecting sales files")
	f.IntVar(&batchFlags.workers, "workers", 4, "Number of files merged concurrently")
	f.BoolVar(&batchFlags.dryRun, "dry-run", false, "Validate without writing reports or moving files")
	f.BoolVar(&batchFlags.summary, "summary", true, "Write a YAML run summary next to each report")

	_ = batchCmd.MarkFlagRequired("weights")
}

// batchResult is the outcome for one sales file. Summary is set for
// failures too, with Error filled in.
type batchResult struct {
	File        string
	Outcome     *mergeOutcome
	Summary     utils.RunSummary
	SummaryPath string
	Archived    string
	Err         error
}

func runBatch(cmd *cobra.Command) error {
	start := time.Now()
	out := cmd.OutOrStdout()

	format, err := resolveFormat(batchFlags.format, "", appConfig.DefaultFormat)
	if err != nil {
		return err
	}

	fm := appConfig.FileManager()
	if !batchFlags.dryRun {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
	}

	files, err := fm.DiscoverInputFiles(batchFlags.patterns, batchFlags.weights)
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No sales files found in %s\n", appConfig.InputDir)
		return nil
	}
	log.Infof("found %d file(s) in %s", len(files), appConfig.InputDir)

	workers := batchFlags.workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	results := make(chan batchResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				results <- mergeOne(fm, file, format)
			}
		}()
	}
	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []batchResult
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].File < collected[j].File })

	var okCount, errCount int
	for _, r := range collected {
		name := filepath.Base(r.File)
		if r.Err != nil {
			errCount++
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, r.Err)
			if r.SummaryPath != "" {
				fmt.Fprintf(out, "    details in %s\n", r.SummaryPath)
			}
			continue
		}
		okCount++
		target := r.Outcome.OutPath
		if target == "" {
			target = "(dry run)"
		}
		fmt.Fprintf(out, "  ✓ %s -> %s (%d rows, %d rejected)\n", name, target, r.Outcome.RunSummary.TotalRows, r.Outcome.Result.Stats.Rejected())
		if r.Archived != "" {
			fmt.Fprintf(out, "    archived to %s\n", r.Archived)
		}
	}

	fmt.Fprintln(out, "\n=== Batch Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", len(files))
	fmt.Fprintf(out, "Successful:      %d\n", okCount)
	fmt.Fprintf(out, "Errors:          %d\n", errCount)
	fmt.Fprintf(out, "Time elapsed:    %s\n", time.Since(start).Round(time.Millisecond))

	if errCount > 0 {
		return fmt.Errorf("%d of %d file(s) failed", errCount, len(files))
	}
	return nil
}

// mergeOne merges a single batch file and archives it on success. A failed
// file is left in place and, unless summaries are off, gets a
// <name>.failed.summary.yaml in the output directory.
func mergeOne(fm *utils.FileManager, file string, format report.Format) batchResult {
	res := batchResult{File: file}

	profile, err := config.Select(profiles, batchFlags.profile, file)
	if err != nil {
		return failBatchFile(fm, res, "", format, err)
	}

	job := mergeJob{
		SalesPath:    file,
		WeightsPath:  batchFlags.weights,
		Profile:      profile,
		Format:       format,
		OutputDir:    appConfig.OutputDir,
		NameFmt:      batchNameFormat(appConfig.OutputNameFormat),
		Banner:       profile.BannerEnabled(),
		CSVPrecision: appConfig.CSVPrecision,
		Summary:      batchFlags.summary,
		DryRun:       batchFlags.dryRun,
	}
	outcome, err := runMergeJob(job, log.With("file", filepath.Base(file)), time.Now())
	if err != nil {
		log.Errorf("%s: %v", filepath.Base(file), err)
		return failBatchFile(fm, res, profile.Name, format, err)
	}
	res.Outcome = outcome
	res.Summary = outcome.RunSummary
	res.SummaryPath = outcome.SummaryPath

	if appConfig.ArchiveInputs && !batchFlags.dryRun {
		archived, err := fm.ArchiveInputFile(file)
		if err != nil {
			log.Warnf("%s: merged but not archived: %v", filepath.Base(file), err)
		} else {
			res.Archived = archived
		}
	}
	return res
}

// failBatchFile records err on res and writes the failure summary.
func failBatchFile(fm *utils.FileManager, res batchResult, profile string, format report.Format, err error) batchResult {
	res.Err = err
	res.Summary = utils.RunSummary{
		Message:     "Merge failed",
		GeneratedAt: time.Now(),
		Profile:     profile,
		Sales:       res.File,
		Weights:     batchFlags.weights,
		Format:      string(format),
		Error:       err.Error(),
	}
	if !batchFlags.summary || batchFlags.dryRun {
		return res
	}

	stem := strings.TrimSuffix(filepath.Base(res.File), filepath.Ext(res.File))
	path, rerr := utils.ReservePath(filepath.Join(fm.OutputDir, stem+".failed.summary.yaml"))
	if rerr == nil {
		rerr = utils.WriteSummary(path, res.Summary)
	}
	if rerr != nil {
		log.Warnf("%s: failure summary not written: %v", filepath.Base(res.File), rerr)
		return res
	}
	res.SummaryPath = path
	return res
}

// batchNameFormat makes sure each file in a batch gets its own report name
// even when several finish within the same second.
func batchNameFormat(nameFmt string) string {
	if containsAny(nameFmt, "{source}", "{uuid}") {
		return nameFmt
	}
	ext := filepath.Ext(nameFmt)
	return nameFmt[:len(nameFmt)-len(ext)] + "_{source}" + ext
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
