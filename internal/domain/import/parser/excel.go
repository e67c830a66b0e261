package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/batchdesk/internal/domain/import/sniffer"
)

// SpreadsheetSource reads the first sheet of an .xlsx or .xls workbook
type SpreadsheetSource struct {
	data []byte
}

// NewSpreadsheetSource wraps raw workbook bytes
func NewSpreadsheetSource(data []byte) *SpreadsheetSource {
	return &SpreadsheetSource{data: data}
}

// Grid decodes the workbook and returns the rows of the first sheet by position.
// A sheet with fewer than two rows (header only, or empty) yields ErrNoDataRows.
func (s *SpreadsheetSource) Grid() (Grid, error) {
	var (
		grid Grid
		err  error
	)

	switch sniffer.SniffWorkbook(s.data) {
	case sniffer.WorkbookOOXML:
		grid, err = readOOXML(s.data)
	case sniffer.WorkbookBIFF:
		grid, err = readBIFF(s.data)
	default:
		return nil, fmt.Errorf("%w: unrecognised workbook signature", ErrUnreadableWorkbook)
	}
	if err != nil {
		return nil, err
	}

	if len(grid) < 2 {
		return nil, ErrNoDataRows
	}

	return grid, nil
}

// readOOXML reads raw (unformatted) cell values from the first sheet of an .xlsx workbook
func readOOXML(data []byte) (Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableWorkbook)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %w", ErrUnreadableWorkbook, sheets[0], err)
	}

	return Grid(rows), nil
}
