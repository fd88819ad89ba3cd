package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

func TestDecodeCSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFProduct,Weight of Indv. Product (lb)\nA,2.5\n\"B, large\",4\n")
	g, err := Decode("weights.csv", data, Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Format != FormatCSV {
		t.Fatalf("expected csv format, got %s", g.Format)
	}
	if len(g.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(g.Rows))
	}
	if g.Rows[0][0] != "Product" {
		t.Fatalf("expected BOM to be stripped, got %q", g.Rows[0][0])
	}
	if g.Rows[2][0] != "B, large" {
		t.Fatalf("expected quoted field, got %q", g.Rows[2][0])
	}
}

func TestDecodeCSVDelimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		data      string
	}{
		{"semicolon", ";", "Product;Size\nA;M\n"},
		{"tab", "tab", "Product\tSize\nA\tM\n"},
		{"auto", "auto", "Product|Size\nA|M\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Decode("in.csv", []byte(tt.data), Settings{Delimiter: tt.delimiter})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(g.Rows[1]) != 2 || g.Rows[1][1] != "M" {
				t.Fatalf("expected two fields, got %v", g.Rows[1])
			}
		})
	}
}

func TestDecodeCSVLatin1(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().String("Product,Location\nCafé,Zürich\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	g, err := Decode("sales.csv", []byte(raw), Settings{Encoding: "ISO-8859-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Rows[1][0] != "Café" || g.Rows[1][1] != "Zürich" {
		t.Fatalf("expected decoded latin1 text, got %v", g.Rows[1])
	}
}

func TestDecodeCSVUTF16WithoutBOM(t *testing.T) {
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String("Product,Location\nA,Zürich\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := Decode("sales.csv", []byte(raw), Settings{}); !types.IsKind(err, types.KindParse) {
		t.Fatalf("expected utf-8 settings to reject NUL-laden content, got %v", err)
	}

	for _, enc := range []string{"UTF-16", "utf-16le"} {
		g, err := Decode("sales.csv", []byte(raw), Settings{Encoding: enc})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", enc, err)
		}
		if g.Rows[0][0] != "Product" || g.Rows[1][1] != "Zürich" {
			t.Fatalf("%s: expected decoded utf-16 text, got %v", enc, g.Rows)
		}
	}
}

func TestDecodeRejectsNonTabularContent(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Signature
	}{
		{"html", []byte("<!DOCTYPE html>\n<html><head><title>Google Drive - Virus scan warning</title></head></html>"), SignatureHTML},
		{"html with whitespace", []byte("\n\n  <html lang=\"en\"><body>404</body></html>"), SignatureHTML},
		{"legacy xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0, 0}, SignatureLegacyXLS},
		{"pdf", []byte("%PDF-1.7\n..."), SignaturePDF},
		{"binary", []byte{'a', 0, 'b', 1}, SignatureBinary},
		{"empty", []byte("   \n"), SignatureEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("sales.csv", tt.data, Settings{})
			var pe *types.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if pe.Signature != string(tt.want) {
				t.Fatalf("expected signature %q, got %q", tt.want, pe.Signature)
			}
			if !strings.Contains(err.Error(), string(tt.want)) {
				t.Fatalf("expected signature in message, got %q", err.Error())
			}
		})
	}
}

func TestSniffKeepsCSVMentioningHTML(t *testing.T) {
	data := []byte("Product,Notes\nA,see <html> docs\n")
	if got := Sniff(data); got != SignatureText {
		t.Fatalf("expected text, got %s", got)
	}
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Sales"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	if err := f.SetSheetRow("Sales", "A1", &[]interface{}{"Sales export"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := f.SetSheetRow("Sales", "A2", &[]interface{}{"Product", "Quantity", "Date"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := f.SetSheetRow("Sales", "A3", &[]interface{}{"A", 10, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("row: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	g, err := Decode("sales.xlsx", buf.Bytes(), Settings{SheetName: "sales"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Format != FormatXLSX || g.Sheet != "Sales" {
		t.Fatalf("expected xlsx grid from Sales, got %s/%s", g.Format, g.Sheet)
	}
	if len(g.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(g.Rows))
	}
	if g.Rows[2][1] != "10" {
		t.Fatalf("expected raw quantity 10, got %q", g.Rows[2][1])
	}
	if g.Rows[2][2] != "45296" {
		t.Fatalf("expected raw date serial 45296, got %q", g.Rows[2][2])
	}

	_, err = Decode("sales.xlsx", buf.Bytes(), Settings{SheetName: "Missing"})
	if !types.IsKind(err, types.KindParse) || !strings.Contains(err.Error(), "Sales") {
		t.Fatalf("expected parse error listing sheets, got %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"), Settings{})
	if !types.IsKind(err, types.KindSourceFetch) {
		t.Fatalf("expected source error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "UTF-8", "utf_16", "windows-1252", "Latin1"} {
		if _, err := LookupEncoding(name); err != nil {
			t.Fatalf("expected %q to be supported: %v", name, err)
		}
	}
	if _, err := LookupEncoding("ebcdic"); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}
