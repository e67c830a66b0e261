package parser

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DelimitedSource parses comma or tab separated text.
// There is no quoting: every comma or tab ends a cell.
type DelimitedSource struct {
	data []byte
}

// NewDelimitedSource wraps raw CSV/TXT bytes
func NewDelimitedSource(data []byte) *DelimitedSource {
	return &DelimitedSource{data: data}
}

// Grid decodes the bytes as UTF-8 and splits them into rows and cells.
// Blank and whitespace-only lines are dropped.
func (s *DelimitedSource) Grid() (Grid, error) {
	text := decodeUTF8(s.data)

	lines := strings.Split(text, "\n")
	grid := make(Grid, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		grid = append(grid, splitCells(line))
	}

	return grid, nil
}

// decodeUTF8 strips a leading BOM and replaces invalid sequences with U+FFFD.
func decodeUTF8(data []byte) string {
	decoded, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

// splitCells splits on ',' and '\t', keeping empty cells so column positions hold
func splitCells(line string) []string {
	cells := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == ',' || line[i] == '\t' {
			cells = append(cells, line[start:i])
			start = i + 1
		}
	}
	return append(cells, line[start:])
}
