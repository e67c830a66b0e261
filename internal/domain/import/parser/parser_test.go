package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/batchdesk/internal/domain/import/sniffer"
)

// buildWorkbook writes each sheet in order; the first entry becomes the first sheet.
func buildWorkbook(t *testing.T, sheets []string, rows map[string][][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheets[0]))
	for _, name := range sheets[1:] {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
	}

	for sheet, sheetRows := range rows {
		for i, row := range sheetRows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDelimitedSource_Grid(t *testing.T) {
	t.Run("splits lines and drops blanks", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("STORE\n001\n002\n\n12345678901\n")).Grid()

		require.NoError(t, err)
		assert.Equal(t, Grid{{"STORE"}, {"001"}, {"002"}, {"12345678901"}}, grid)
	})

	t.Run("handles CRLF line endings", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("STORE,NAME\r\n001,Lisbon\r\n002,Porto\r\n")).Grid()

		require.NoError(t, err)
		require.Len(t, grid, 3)
		assert.Equal(t, []string{"001", "Lisbon"}, grid[1])
		assert.Equal(t, []string{"002", "Porto"}, grid[2])
	})

	t.Run("splits on comma and tab", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("STORE\tNAME,REGION\n001\tLisbon,South")).Grid()

		require.NoError(t, err)
		assert.Equal(t, []string{"001", "Lisbon", "South"}, grid[1])
	})

	t.Run("keeps empty leading cell in place", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("STORE,NAME\n,Lisbon")).Grid()

		require.NoError(t, err)
		assert.Equal(t, "", grid.Cell(1, 0))
		assert.Equal(t, "Lisbon", grid.Cell(1, 1))
	})

	t.Run("drops whitespace-only lines", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("STORE\n   \n\t\n001")).Grid()

		require.NoError(t, err)
		assert.Equal(t, Grid{{"STORE"}, {"001"}}, grid)
	})

	t.Run("strips UTF-8 BOM", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("\xEF\xBB\xBFSTORE\n001")).Grid()

		require.NoError(t, err)
		assert.Equal(t, "STORE", grid.Cell(0, 0))
	})

	t.Run("tolerates invalid UTF-8", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("STORE\n\xff01\n002")).Grid()

		require.NoError(t, err)
		require.Len(t, grid, 3)
		assert.Equal(t, "002", grid.Cell(2, 0))
	})

	t.Run("empty input gives empty grid", func(t *testing.T) {
		grid, err := NewDelimitedSource(nil).Grid()

		require.NoError(t, err)
		assert.Empty(t, grid)
	})

	t.Run("ragged rows are not normalised", func(t *testing.T) {
		grid, err := NewDelimitedSource([]byte("A,B,C\n1\n2,3")).Grid()

		require.NoError(t, err)
		assert.Len(t, grid[0], 3)
		assert.Len(t, grid[1], 1)
		assert.Len(t, grid[2], 2)
	})
}

func TestSpreadsheetSource_Grid(t *testing.T) {
	t.Run("reads first sheet by position", func(t *testing.T) {
		data := buildWorkbook(t, []string{"Stores", "Other"}, map[string][][]interface{}{
			"Stores": {{"STORE", "NAME"}, {"001", "Lisbon"}, {"002", "Porto"}},
			"Other":  {{"IGNORED"}, {"999"}},
		})

		grid, err := NewSpreadsheetSource(data).Grid()

		require.NoError(t, err)
		require.Len(t, grid, 3)
		assert.Equal(t, "STORE", grid.Cell(0, 0))
		assert.Equal(t, "001", grid.Cell(1, 0))
		assert.Equal(t, "Porto", grid.Cell(2, 1))
	})

	t.Run("numeric cells come back raw", func(t *testing.T) {
		data := buildWorkbook(t, []string{"Sheet1"}, map[string][][]interface{}{
			"Sheet1": {{"STORE"}, {1234}, {56.5}},
		})

		grid, err := NewSpreadsheetSource(data).Grid()

		require.NoError(t, err)
		assert.Equal(t, "1234", grid.Cell(1, 0))
		assert.Equal(t, "56.5", grid.Cell(2, 0))
	})

	t.Run("header only fails with no data rows", func(t *testing.T) {
		data := buildWorkbook(t, []string{"Sheet1"}, map[string][][]interface{}{
			"Sheet1": {{"STORE"}},
		})

		_, err := NewSpreadsheetSource(data).Grid()

		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("empty sheet fails with no data rows", func(t *testing.T) {
		data := buildWorkbook(t, []string{"Sheet1"}, nil)

		_, err := NewSpreadsheetSource(data).Grid()

		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("unknown signature is unreadable", func(t *testing.T) {
		_, err := NewSpreadsheetSource([]byte("STORE\n001")).Grid()

		assert.ErrorIs(t, err, ErrUnreadableWorkbook)
	})

	t.Run("corrupt zip is unreadable", func(t *testing.T) {
		_, err := NewSpreadsheetSource([]byte("PK\x03\x04garbage")).Grid()

		assert.ErrorIs(t, err, ErrUnreadableWorkbook)
	})

	t.Run("xlsx renamed to xls is still decoded", func(t *testing.T) {
		data := buildWorkbook(t, []string{"Sheet1"}, map[string][][]interface{}{
			"Sheet1": {{"STORE"}, {"007"}},
		})
		source, err := NewSource(sniffer.Classify("legacy.xls"), data)
		require.NoError(t, err)

		grid, err := source.Grid()

		require.NoError(t, err)
		assert.Equal(t, "007", grid.Cell(1, 0))
	})
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestSpreadsheetSource_LegacyWorkbook(t *testing.T) {
	t.Run("first sheet by position", func(t *testing.T) {
		data := readFixture(t, "stores.xls")
		require.Equal(t, sniffer.WorkbookBIFF, sniffer.SniffWorkbook(data))

		grid, err := NewSpreadsheetSource(data).Grid()

		require.NoError(t, err)
		assert.Equal(t, Grid{
			{"STORE", "REGION"},
			{"0101", "North"},
			nil,
			{"  0102 "},
			{"", "orphan"},
			{"0103"},
		}, grid)
	})

	t.Run("header only has no data rows", func(t *testing.T) {
		_, err := NewSpreadsheetSource(readFixture(t, "header_only.xls")).Grid()

		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("corrupt compound file is unreadable", func(t *testing.T) {
		data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)

		_, err := NewSpreadsheetSource(data).Grid()

		assert.ErrorIs(t, err, ErrUnreadableWorkbook)
	})

	t.Run("compound file without workbook stream is unreadable", func(t *testing.T) {
		name := []byte{'W', 0, 'o', 0, 'r', 0, 'k', 0, 'b', 0, 'o', 0, 'o', 0, 'k', 0}
		other := []byte{'N', 0, 'o', 0, 't', 0, 'e', 0, 'b', 0, 'o', 0, 'o', 0, 'k', 0}
		data := bytes.Replace(readFixture(t, "stores.xls"), name, other, 1)

		_, err := NewSpreadsheetSource(data).Grid()

		assert.ErrorIs(t, err, ErrUnreadableWorkbook)
	})

	t.Run("renamed to xlsx is still decoded", func(t *testing.T) {
		source, err := NewSource(sniffer.Classify("stores.xlsx"), readFixture(t, "stores.xls"))
		require.NoError(t, err)

		grid, err := source.Grid()

		require.NoError(t, err)
		assert.Equal(t, "0103", grid.Cell(5, 0))
	})
}

func TestNewSource(t *testing.T) {
	t.Run("delimited", func(t *testing.T) {
		source, err := NewSource(sniffer.FormatDelimited, []byte("A"))
		require.NoError(t, err)
		assert.IsType(t, &DelimitedSource{}, source)
	})

	t.Run("spreadsheet", func(t *testing.T) {
		source, err := NewSource(sniffer.FormatSpreadsheet, nil)
		require.NoError(t, err)
		assert.IsType(t, &SpreadsheetSource{}, source)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewSource(sniffer.FormatUnsupported, nil)
		assert.Error(t, err)
	})
}

func TestGrid_Helpers(t *testing.T) {
	grid := Grid{{"STORE", "NAME"}, {"001"}, {}}

	assert.Equal(t, 2, grid.DataRows())
	assert.Equal(t, 0, Grid{}.DataRows())
	assert.Equal(t, "001", grid.Cell(1, 0))
	assert.Equal(t, "", grid.Cell(1, 1))
	assert.Equal(t, "", grid.Cell(2, 0))
	assert.Equal(t, "", grid.Cell(5, 0))
	assert.Equal(t, "", grid.Cell(-1, 0))
}
