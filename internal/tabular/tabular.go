// =============================================================================
// Weight Merge - Tabular Decoder
// =============================================================================
//
// This module turns raw input bytes into a grid of cell strings. It is the
// boundary where non-tabular content is rejected: the sales and weight inputs
// are frequently exported by hand or downloaded from file-sharing links, and
// an HTML error page saved as "sales.csv" must fail loudly instead of being
// parsed as a one-column table.
//
// SUPPORTED FORMATS:
//   - CSV/TSV text, any delimiter, with optional non-UTF-8 encoding
//   - XLSX workbooks (first sheet or a named sheet)
//
// REJECTED CONTENT (ParseError):
//   - HTML documents
//   - Legacy binary .xls workbooks, PDF files, other binary content
//   - Empty input
//
// =============================================================================

package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// =============================================================================
// GRID STRUCTURE
// =============================================================================

// Format identifies how a grid was decoded.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Grid is a decoded table before any header interpretation.
type Grid struct {
	// Source is the file name or upload name the grid came from.
	Source string

	// Format is the detected input format. Workbook grids carry raw cell
	// values, so dates may appear as spreadsheet serial numbers.
	Format Format

	// Sheet is the worksheet that was read (workbooks only).
	Sheet string

	Rows [][]string
}

// Settings control decoding of a single input.
type Settings struct {
	// Delimiter is the CSV field separator. Accepts a literal character or
	// one of "tab", "pipe", "semicolon", "auto". Default: ",".
	Delimiter string

	// Encoding is the CSV character encoding. Default: "UTF-8".
	Encoding string

	// SheetName selects a worksheet. Default: the first sheet.
	SheetName string
}

// =============================================================================
// DECODING
// =============================================================================

// ReadFile reads and decodes a local file.
// A missing or unreadable file is reported as a *types.SourceError.
func ReadFile(path string, settings Settings) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.SourceError{Source: path, Err: err}
	}
	return Decode(path, data, settings)
}

// Decode sniffs data and decodes it as CSV or XLSX.
//
// PARAMETERS:
//   - source: The name used in errors.
//   - data: The raw bytes.
//   - settings: The decoding settings for this input.
//
// RETURNS:
//   - The decoded grid.
//   - A *types.ParseError if the content is not tabular.
func Decode(source string, data []byte, settings Settings) (*Grid, error) {
	sig := Sniff(data)
	// UTF-16 without a BOM is full of NUL bytes; trust the configured
	// encoding over the sniff.
	if sig == SignatureBinary && isUTF16(settings.Encoding) {
		sig = SignatureText
	}
	switch sig {
	case SignatureXLSX:
		return decodeXLSX(source, data, settings)
	case SignatureText:
		return decodeCSV(source, data, settings)
	default:
		return nil, &types.ParseError{Source: source, Signature: string(sig)}
	}
}

func decodeCSV(source string, data []byte, settings Settings) (*Grid, error) {
	enc, err := LookupEncoding(settings.Encoding)
	if err != nil {
		return nil, &types.ParseError{Source: source, Signature: "text", Err: err}
	}

	// BOMOverride strips a UTF-8 BOM and switches to UTF-16 when one is present.
	dec := unicode.BOMOverride(enc.NewDecoder())
	text, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), dec))
	if err != nil {
		return nil, &types.ParseError{Source: source, Signature: "text", Err: fmt.Errorf("decode %s: %w", settings.Encoding, err)}
	}

	reader := csv.NewReader(bytes.NewReader(text))
	configureReader(reader, settings, text)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &types.ParseError{Source: source, Signature: "malformed csv", Err: err}
	}
	if len(rows) == 0 {
		return nil, &types.ParseError{Source: source, Signature: string(SignatureEmpty)}
	}

	return &Grid{Source: source, Format: FormatCSV, Rows: rows}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings, text []byte) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	case "auto":
		reader.Comma = sniffDelimiter(text)
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports often have a title row shorter than the header row.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// sniffDelimiter picks the most frequent candidate separator in the first
// non-empty lines.
func sniffDelimiter(text []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))

	lines := strings.SplitN(string(text), "\n", 6)
	for _, line := range lines {
		for _, c := range candidates {
			counts[c] += strings.Count(line, string(c))
		}
	}

	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func decodeXLSX(source string, data []byte, settings Settings) (*Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &types.ParseError{Source: source, Signature: "corrupt workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &types.ParseError{Source: source, Signature: "workbook without sheets"}
	}

	sheet := sheets[0]
	if settings.SheetName != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, settings.SheetName) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, &types.ParseError{
				Source:    source,
				Signature: "workbook",
				Err:       fmt.Errorf("sheet %q not found; available sheets: %s", settings.SheetName, strings.Join(sheets, ", ")),
			}
		}
	}

	// Raw values keep numbers and dates unformatted so coercion does not
	// depend on the workbook's display formats.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &types.ParseError{Source: source, Signature: "workbook", Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	if len(rows) == 0 {
		return nil, &types.ParseError{Source: source, Signature: string(SignatureEmpty)}
	}

	return &Grid{Source: source, Format: FormatXLSX, Sheet: sheet, Rows: rows}, nil
}

// =============================================================================
// ENCODINGS
// =============================================================================

// ErrUnsupportedEncoding is returned by LookupEncoding for unknown names.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// LookupEncoding maps a configured encoding name to a decoder.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch encodingKey(name) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "utf-16", "utf-16le", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
}

func encodingKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
}

func isUTF16(name string) bool {
	switch encodingKey(name) {
	case "utf-16", "utf-16le", "utf16", "utf-16be":
		return true
	}
	return false
}
