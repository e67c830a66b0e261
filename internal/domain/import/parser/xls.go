package parser

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// readBIFF reads the first sheet of a legacy .xls workbook.
// The decoder panics on some corrupt inputs, so panics are reported as unreadable workbooks.
func readBIFF(data []byte) (grid Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid = nil
			err = fmt.Errorf("%w: %v", ErrUnreadableWorkbook, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: no workbook stream", ErrUnreadableWorkbook)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableWorkbook)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: first sheet is missing", ErrUnreadableWorkbook)
	}

	grid = make(Grid, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}

		// Cells left of FirstCol are blank; keep them so column 0 stays column 0.
		cells := make([]string, 0, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			if c < row.FirstCol() {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, row.Col(c))
		}
		grid = append(grid, trimTrailingEmptyCells(cells))
	}

	return trimTrailingEmptyRows(grid), nil
}

// sheetRow returns nil for row indexes the sheet never defined (blank lines).
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func trimTrailingEmptyCells(cells []string) []string {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	return cells[:end]
}

// trimTrailingEmptyRows drops blank rows at the end of a sheet, matching what excelize returns
func trimTrailingEmptyRows(grid Grid) Grid {
	end := len(grid)
	for end > 0 && isEmptyRow(grid[end-1]) {
		end--
	}
	return grid[:end]
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
