package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/weight-merge/internal/config"
	"github.com/ginjaninja78/weight-merge/internal/report"
	"github.com/ginjaninja78/weight-merge/internal/types"
	"github.com/ginjaninja78/weight-merge/pkg/utils"
)

const (
	testSales = "Sales Data Sample\n" +
		"Product,Size,Item,Quantity,Location,Date\n" +
		"A,M,Widget,10,NY,2024-01-05\n" +
		"A,M,Widget,10,NY,2024-01-05\n" +
		"B,S,Gadget,4,LA,01/06/2024\n"
	testWeights = "Product,Weight of Indv. Product (lb)\nA,2.5\nB,1\n"
)

var testNow = time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()
	sales := filepath.Join(dir, "sales.csv")
	weights := filepath.Join(dir, "weights.csv")
	if err := os.WriteFile(sales, []byte(testSales), 0o644); err != nil {
		t.Fatalf("write sales: %v", err)
	}
	if err := os.WriteFile(weights, []byte(testWeights), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	return sales, weights
}

func readSummary(t *testing.T, path string) utils.RunSummary {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var s utils.RunSummary
	if err := yaml.Unmarshal(data, &s); err != nil {
		t.Fatalf("parse summary: %v", err)
	}
	return s
}

func TestRunMergeJobWritesReportAndSummary(t *testing.T) {
	dir := t.TempDir()
	sales, weights := writeInputs(t, dir)

	job := mergeJob{
		SalesPath:    sales,
		WeightsPath:  weights,
		Profile:      config.DefaultProfile(),
		Format:       report.FormatCSV,
		OutputDir:    filepath.Join(dir, "out"),
		NameFmt:      "final_merged_{timestamp}.{format}",
		CSVPrecision: -1,
		Summary:      true,
	}
	outcome, err := runMergeJob(job, nil, testNow)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantPath := filepath.Join(dir, "out", "final_merged_20240115_143022.csv")
	if outcome.OutPath != wantPath {
		t.Fatalf("expected %s, got %s", wantPath, outcome.OutPath)
	}
	f, err := os.Open(outcome.OutPath)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "B" || rows[2][7] != "25" {
		t.Fatalf("unexpected report rows %v", rows)
	}

	s := readSummary(t, outcome.SummaryPath)
	if s.TotalRows != 2 || s.Stats.Duplicates != 1 || s.Output != wantPath {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestRunMergeJobDryRun(t *testing.T) {
	dir := t.TempDir()
	sales, weights := writeInputs(t, dir)

	job := mergeJob{
		SalesPath:   sales,
		WeightsPath: weights,
		Profile:     config.DefaultProfile(),
		Format:      report.FormatXLSX,
		OutputDir:   filepath.Join(dir, "out"),
		NameFmt:     "x.{format}",
		DryRun:      true,
	}
	outcome, err := runMergeJob(job, nil, testNow)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.OutPath != "" || outcome.RunSummary.TotalRows != 2 {
		t.Fatalf("unexpected dry-run outcome %+v", outcome.RunSummary)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create output")
	}
}

func TestRunMergeJobHeaderOverride(t *testing.T) {
	dir := t.TempDir()
	sales := filepath.Join(dir, "sales.csv")
	body := strings.SplitN(testSales, "\n", 2)[1]
	if err := os.WriteFile(sales, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, weights := writeInputs(t, t.TempDir())

	job := mergeJob{SalesPath: sales, WeightsPath: weights, Profile: config.DefaultProfile(), Format: report.FormatCSV, DryRun: true}
	if _, err := runMergeJob(job, nil, testNow); !types.IsKind(err, types.KindSchema) {
		t.Fatalf("expected schema error with default header row, got %v", err)
	}

	row := 0
	job.SalesHeaderRow = &row
	if _, err := runMergeJob(job, nil, testNow); err != nil {
		t.Fatalf("expected header override to succeed: %v", err)
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		flag, out, fallback string
		want                report.Format
	}{
		{"csv", "report.csv", "xlsx", report.FormatCSV},
		{"sqlite", "report.db", "xlsx", report.FormatSQLite},
		{"csv", "report.out", "xlsx", report.FormatCSV},
		{"", "report.sqlite", "xlsx", report.FormatSQLite},
		{"", "report.unknown", "csv", report.FormatCSV},
		{"", "", "xlsx", report.FormatXLSX},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.flag, tt.out, tt.fallback)
		if err != nil || got != tt.want {
			t.Errorf("resolveFormat(%q, %q, %q) = %v, %v; want %v", tt.flag, tt.out, tt.fallback, got, err, tt.want)
		}
	}
}

func TestResolveFormatConflict(t *testing.T) {
	for _, tt := range []struct{ flag, out string }{
		{"xlsx", "report.csv"},
		{"csv", "/tmp/report.XLSX"},
		{"sqlite", "report.csv"},
	} {
		if _, err := resolveFormat(tt.flag, tt.out, "xlsx"); err == nil || !strings.Contains(err.Error(), "conflicts") {
			t.Errorf("resolveFormat(%q, %q) should report a conflict, got %v", tt.flag, tt.out, err)
		}
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	job := mergeJob{
		SalesPath: "/data/east_jan.csv",
		Profile:   config.DefaultProfile(),
		Format:    report.FormatXLSX,
		OutputDir: dir,
		NameFmt:   "final_merged_{timestamp}.{format}",
	}
	got, reserved, err := job.outputPath(testNow)
	if err != nil || !reserved || got != filepath.Join(dir, "final_merged_20240115_143022.xlsx") {
		t.Fatalf("unexpected default path %s (reserved=%v, %v)", got, reserved, err)
	}

	// The first name is now taken on disk.
	got, _, err = job.outputPath(testNow)
	if err != nil || got != filepath.Join(dir, "final_merged_20240115_143022_2.xlsx") {
		t.Fatalf("expected suffixed path, got %s (%v)", got, err)
	}

	job.OutPath = dir
	if got, _, err := job.outputPath(testNow); err != nil || filepath.Dir(got) != dir {
		t.Fatalf("expected generated name inside directory, got %s (%v)", got, err)
	}

	job.OutPath = filepath.Join(dir, "mine.xlsx")
	got, reserved, err = job.outputPath(testNow)
	if err != nil || reserved || got != job.OutPath {
		t.Fatalf("expected explicit path, got %s (reserved=%v, %v)", got, reserved, err)
	}
	if _, err := os.Stat(job.OutPath); !os.IsNotExist(err) {
		t.Fatalf("explicit path must not be reserved")
	}

	job.OutPath = ""
	job.NameFmt = batchNameFormat(job.NameFmt)
	got, _, err = job.outputPath(testNow)
	if err != nil || filepath.Base(got) != "final_merged_20240115_143022_east_jan.xlsx" {
		t.Fatalf("unexpected batch name %s (%v)", got, err)
	}
}

func TestRunMergeJobSameNameConcurrently(t *testing.T) {
	dir := t.TempDir()
	sales, weights := writeInputs(t, dir)

	const n = 8
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := mergeJob{
				SalesPath:    sales,
				WeightsPath:  weights,
				Profile:      config.DefaultProfile(),
				Format:       report.FormatCSV,
				OutputDir:    filepath.Join(dir, "out"),
				NameFmt:      "final_merged_{timestamp}_{source}.{format}",
				CSVPrecision: -1,
			}
			outcome, err := runMergeJob(job, nil, testNow)
			if err != nil {
				t.Errorf("run: %v", err)
				return
			}
			paths <- outcome.OutPath
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		if seen[p] {
			t.Fatalf("two jobs wrote %s", p)
		}
		seen[p] = true
	}
	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d reports, got %d", n, len(entries))
	}
}

func TestBatchNameFormat(t *testing.T) {
	if got := batchNameFormat("{source}_{timestamp}.{format}"); got != "{source}_{timestamp}.{format}" {
		t.Fatalf("expected unchanged, got %s", got)
	}
	if got := batchNameFormat("report_{uuid}"); got != "report_{uuid}" {
		t.Fatalf("expected unchanged, got %s", got)
	}
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	sales, weights := writeInputs(t, dir)
	out := filepath.Join(dir, "reports", "merged.csv")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"merge", "--sales", sales, "--weights", weights, "--out", out, "--summary"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected report: %v", err)
	}
	if _, err := os.Stat(utils.SummaryPath(out)); err != nil {
		t.Fatalf("expected summary: %v", err)
	}
	text := buf.String()
	for _, want := range []string{"Files merged successfully", "Total rows:      2", "duplicates:    1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}
