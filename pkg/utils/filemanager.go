// =============================================================================
// Weight Merge - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a merge run:
//   - Input discovery for batch runs
//   - Input archival after a successful merge
//   - Output file naming
//   - Run summaries written next to each report
//
// ARCHIVAL STRATEGY:
//   - Sales exports are moved to the archive directory only after their
//     report has been written
//   - Failed inputs stay where they are
//   - The weight reference is shared across a batch and is never moved
//
// =============================================================================

package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// TimestampLayout is the {timestamp} placeholder format.
const TimestampLayout = "20060102_150405"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for merge runs.
type FileManager struct {
	// InputDir is scanned for sales exports in batch mode.
	InputDir string

	// OutputDir receives reports and summaries.
	OutputDir string

	// InputArchiveDir receives sales exports after a successful merge.
	InputArchiveDir string

	// UseTimestampSubdirs archives into dated subdirectories.
	// Example: input_archive/2024/01/15/sales.csv
	UseTimestampSubdirs bool

	// Now is the clock used for names and archive paths.
	Now func() time.Time
}

// NewFileManager creates a FileManager over the given directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
		Now:             time.Now,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// EnsureDirectories creates the input, output and archive directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DefaultInputPatterns match the input formats the decoder accepts.
var DefaultInputPatterns = []string{"*.csv", "*.xlsx", "*.txt", "*.tsv"}

// DiscoverInputFiles lists regular files in the input directory that match
// any of patterns (DefaultInputPatterns when none are given). Hidden files
// and paths listed in exclude are skipped. The result is sorted and free of
// duplicates.
func (fm *FileManager) DiscoverInputFiles(patterns []string, exclude ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultInputPatterns
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}

	seen := make(map[string]bool)
	var result []string
	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}
		for _, file := range files {
			if seen[file] || strings.HasPrefix(filepath.Base(file), ".") {
				continue
			}
			if abs, err := filepath.Abs(file); err == nil && skip[abs] {
				continue
			}
			info, err := os.Stat(file)
			if err != nil || info.IsDir() {
				continue
			}
			seen[file] = true
			result = append(result, file)
		}
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves filePath into the archive directory and returns
// the new path. An existing archive entry of the same name is never
// overwritten; the new file gets a timestamp suffix instead.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.archivePath(filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if _, err := os.Stat(archivePath); err == nil {
		ext := filepath.Ext(archivePath)
		archivePath = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(archivePath, ext), fm.now().Format(TimestampLayout), ext)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}
	return archivePath, nil
}

func (fm *FileManager) archivePath(filePath string) string {
	name := filepath.Base(filePath)
	if !fm.UseTimestampSubdirs {
		return filepath.Join(fm.InputArchiveDir, name)
	}
	now := fm.now()
	return filepath.Join(
		fm.InputArchiveDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
		name,
	)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a name template.
//
// Placeholders:
//
//	{timestamp} - now as YYYYMMDD_HHMMSS
//	{date}      - now as YYYYMMDD
//	{uuid}      - a random UUID
//	{name}      - any key in params, e.g. {profile}, {format}, {source}
//
// If params carries "format" and the result has no extension, ".format" is
// appended.
//
// Example:
//
//	GenerateOutputFileName("final_merged_{timestamp}.{format}", map[string]string{"format": "xlsx"}, now)
//	=> "final_merged_20240115_143022.xlsx"
func GenerateOutputFileName(template string, params map[string]string, now time.Time) string {
	replacements := map[string]string{
		"{timestamp}": now.Format(TimestampLayout),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := template
	if strings.Contains(result, "{uuid}") {
		result = strings.ReplaceAll(result, "{uuid}", uuid.New().String())
	}
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext := params["format"]; ext != "" && filepath.Ext(result) == "" {
		result += "." + ext
	}
	return result
}

// ReservePath claims path, or path with a numeric suffix if it is taken, by
// creating an empty file there with O_EXCL. Concurrent callers asking for
// the same path always get distinct results. The caller replaces the
// placeholder with the real content, or removes it on failure.
func ReservePath(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 2; ; i++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				return "", fmt.Errorf("failed to reserve %s: %w", candidate, err)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to reserve %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary records one merge run. Message, TotalRows and Columns mirror
// the JSON body returned by the HTTP merge endpoint.
type RunSummary struct {
	Message     string      `yaml:"message" json:"message"`
	TotalRows   int         `yaml:"total_rows" json:"total_rows"`
	Columns     []string    `yaml:"columns" json:"columns"`
	GeneratedAt time.Time   `yaml:"generated_at" json:"generated_at"`
	Profile     string      `yaml:"profile" json:"profile"`
	Sales       string      `yaml:"sales" json:"sales"`
	Weights     string      `yaml:"weights" json:"weights"`
	Output      string      `yaml:"output,omitempty" json:"output,omitempty"`
	Format      string      `yaml:"format" json:"format"`
	Stats       types.Stats `yaml:"stats" json:"stats"`
	Warnings    []string    `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	Error       string      `yaml:"error,omitempty" json:"error,omitempty"`
}

// SummaryPath returns the summary file that belongs to a report.
func SummaryPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".summary.yaml"
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s RunSummary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
