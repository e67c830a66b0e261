// Package sniffer classifies uploaded files before any parsing happens.
// It decides by file name which decoder family applies and, for spreadsheets,
// which workbook container the bytes actually hold.
package sniffer

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is the decoder family an upload belongs to
type Format string

const (
	FormatDelimited   Format = "delimited"   // .csv, .txt
	FormatSpreadsheet Format = "spreadsheet" // .xlsx, .xls
	FormatUnsupported Format = "unsupported"
)

// WorkbookKind identifies the container of a spreadsheet upload
type WorkbookKind string

const (
	WorkbookOOXML   WorkbookKind = "ooxml"   // ZIP based (.xlsx)
	WorkbookBIFF    WorkbookKind = "biff"    // OLE2 compound document (.xls)
	WorkbookUnknown WorkbookKind = "unknown" // neither signature matched
)

var extensionFormats = map[string]Format{
	".csv":  FormatDelimited,
	".txt":  FormatDelimited,
	".xlsx": FormatSpreadsheet,
	".xls":  FormatSpreadsheet,
}

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Classify maps a file name to its Format using a case-insensitive suffix match.
// Names without a recognised extension are FormatUnsupported.
func Classify(filename string) Format {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if format, ok := extensionFormats[ext]; ok {
		return format
	}
	return FormatUnsupported
}

// SupportedExtensions lists the accepted extensions, for user-facing messages
func SupportedExtensions() []string {
	return []string{".csv", ".txt", ".xlsx", ".xls"}
}

// SniffWorkbook inspects the leading bytes of a spreadsheet upload.
// Files are often renamed between .xls and .xlsx, so the container signature wins over the suffix.
func SniffWorkbook(data []byte) WorkbookKind {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return WorkbookOOXML
	case bytes.HasPrefix(data, ole2Magic):
		return WorkbookBIFF
	default:
		return WorkbookUnknown
	}
}
