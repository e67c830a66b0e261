// Package normalizer extracts entity codes from a parsed grid and validates them.
// Extraction and validation are separate passes: extraction only drops empty cells,
// the CodeRule decides what is usable.
package normalizer

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxCodeLength is the longest store code the batch API accepts
const DefaultMaxCodeLength = 10

// Validation partitions raw codes. Every input appears in exactly one slice,
// in input order: Valid holds trimmed values, Invalid holds the original strings.
type Validation struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// CodeRule is the format rule applied to each extracted code
type CodeRule struct {
	MaxLength int
}

// DefaultCodeRule returns the rule used for store codes
func DefaultCodeRule() CodeRule {
	return CodeRule{MaxLength: DefaultMaxCodeLength}
}

// ExtractCodes skips the header row and returns the trimmed first-column value of
// every remaining row. Rows whose first cell is missing or blank are dropped.
func ExtractCodes(rows [][]string) []string {
	if len(rows) < 2 {
		return []string{}
	}

	codes := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if code := strings.TrimSpace(row[0]); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// IsValid reports whether a code passes the rule once trimmed
func (r CodeRule) IsValid(code string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(code))
	return n > 0 && n <= r.maxLength()
}

// Validate applies the rule to each code. It never fails; an all-invalid input
// simply yields an empty Valid slice.
func (r CodeRule) Validate(codes []string) Validation {
	result := Validation{
		Valid:   make([]string, 0, len(codes)),
		Invalid: make([]string, 0),
	}

	for _, code := range codes {
		if r.IsValid(code) {
			result.Valid = append(result.Valid, strings.TrimSpace(code))
		} else {
			result.Invalid = append(result.Invalid, code)
		}
	}
	return result
}

func (r CodeRule) maxLength() int {
	if r.MaxLength <= 0 {
		return DefaultMaxCodeLength
	}
	return r.MaxLength
}
