package tabular

import (
	"bytes"
)

// Signature is the content class detected by Sniff.
type Signature string

const (
	SignatureText      Signature = "text"
	SignatureXLSX      Signature = "xlsx workbook"
	SignatureHTML      Signature = "html document"
	SignatureLegacyXLS Signature = "legacy xls workbook"
	SignaturePDF       Signature = "pdf document"
	SignatureBinary    Signature = "binary content"
	SignatureEmpty     Signature = "empty content"
)

const sniffLen = 1024

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	pdfMagic = []byte("%PDF-")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}

	htmlMarkers = [][]byte{
		[]byte("<!doctype html"),
		[]byte("<html"),
		[]byte("<head"),
		[]byte("<body"),
		[]byte("<script"),
		[]byte("<title"),
	}
)

// Sniff classifies the first bytes of data.
func Sniff(data []byte) Signature {
	if len(bytes.TrimSpace(data)) == 0 {
		return SignatureEmpty
	}
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return SignatureXLSX
	case bytes.HasPrefix(data, oleMagic):
		return SignatureLegacyXLS
	case bytes.HasPrefix(data, pdfMagic):
		return SignaturePDF
	}

	// UTF-16 text legitimately contains NUL bytes.
	if len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)) {
		return SignatureText
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return SignatureBinary
	}

	// A CSV cell may mention "<html"; a page starts with a tag (doctype,
	// xml prolog or comment) and carries the marker soon after.
	lower := bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM)))
	if bytes.HasPrefix(lower, []byte("<")) {
		for _, m := range htmlMarkers {
			if bytes.Contains(lower, m) {
				return SignatureHTML
			}
		}
	}

	return SignatureText
}
