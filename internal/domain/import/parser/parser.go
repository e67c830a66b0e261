// Package parser turns uploaded bytes into a rectangular-ish grid of cell values.
// Delimited text and binary workbooks need different decoders; both are exposed
// behind Source so the record extraction step never branches on format.
package parser

import (
	"errors"
	"fmt"

	"github.com/FACorreiaa/batchdesk/internal/domain/import/sniffer"
)

// Grid is an ordered sequence of rows, each an ordered sequence of cells.
// Row 0 is the header. Rows are not padded to a common width.
type Grid [][]string

var (
	ErrNoDataRows         = errors.New("spreadsheet has no data rows")
	ErrUnreadableWorkbook = errors.New("spreadsheet could not be decoded")
)

// Source produces a Grid from an in-memory upload
type Source interface {
	Grid() (Grid, error)
}

// NewSource selects the decoder for a classified upload.
// The data slice is owned by the returned Source for the duration of one parse.
func NewSource(format sniffer.Format, data []byte) (Source, error) {
	switch format {
	case sniffer.FormatDelimited:
		return NewDelimitedSource(data), nil
	case sniffer.FormatSpreadsheet:
		return NewSpreadsheetSource(data), nil
	default:
		return nil, fmt.Errorf("no decoder for format %q", format)
	}
}

// DataRows returns the number of rows after the header
func (g Grid) DataRows() int {
	if len(g) == 0 {
		return 0
	}
	return len(g) - 1
}

// Cell returns the value at row, col or "" when the row is shorter
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	cells := g[row]
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}
