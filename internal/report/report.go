// =============================================================================
// Weight Merge - Report Writer Module
// =============================================================================
//
// This module writes the merged table to its output formats.
//
// FORMATS:
//   - xlsx:   one worksheet, optional title and filter banner, frozen header,
//             autofilter, date-formatted Date column
//   - csv:    header plus one line per record, optional fixed precision for
//             the weight columns
//   - sqlite: one table, merged_records, in a fresh database file
//
// Every format keeps the record order and the column order it is given.
// Missing weights are written as empty cells (NULL in sqlite).
//
// =============================================================================

package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format is an output format.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want xlsx, csv or sqlite)", name)
	}
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type used when serving the format over HTTP.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatSQLite:
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options control report rendering.
type Options struct {
	// Banner adds the title and filter block above the XLSX table.
	// Default: true
	Banner bool

	// Title is the banner title.
	// Default: "Sales Weight Report"
	Title string

	// CSVPrecision rounds the weight columns in CSV output. A negative
	// value writes full precision.
	// Default: -1
	CSVPrecision int
}

// DefaultOptions returns the standard rendering options.
func DefaultOptions() Options {
	return Options{
		Banner:       true,
		Title:        "Sales Weight Report",
		CSVPrecision: -1,
	}
}

// =============================================================================
// WRITING
// =============================================================================

// Write renders records to w. SQLite cannot be streamed and must go through
// WriteFile or Render.
func Write(w io.Writer, format Format, records []types.MergedRecord, opts Options) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, records, opts)
	case FormatCSV:
		return WriteCSV(w, records, opts.CSVPrecision)
	case FormatSQLite:
		return fmt.Errorf("sqlite output needs a file; use WriteFile or Render")
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile renders records to path, creating its directory if needed. The
// file is written under a temporary name and renamed into place, so a
// failed run never leaves a partial report behind.
func WriteFile(path string, format Format, records []types.MergedRecord, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".weightmerge-*."+format.Extension())
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if format == FormatSQLite {
		tmp.Close()
		if err := WriteSQLite(tmpPath, records); err != nil {
			return err
		}
	} else {
		if err := Write(tmp, format, records, opts); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("failed to close output file: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// Render returns the rendered report as bytes.
func Render(format Format, records []types.MergedRecord, opts Options) ([]byte, error) {
	if format != FormatSQLite {
		var buf bytes.Buffer
		if err := Write(&buf, format, records, opts); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	dir, err := os.MkdirTemp("", "weightmerge-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "report.sqlite")
	if err := WriteSQLite(path, records); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
