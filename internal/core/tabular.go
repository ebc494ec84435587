package core

import (
	"fmt"
	"strings"
)

// Candidate delimiters in tie-break order.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// Table is the output of ParseTabular.
type Table struct {
	Rows      [][]string
	Delimiter rune

	// Lenient is set when an unterminated quote was closed at end of input.
	Lenient bool
}

// DetectDelimiter counts each candidate on the first non-empty line and
// returns the most frequent one. Ties and lines without any candidate
// resolve to the earliest candidate, comma first.
func DetectDelimiter(text string) rune {
	line := firstNonEmptyLine(text)

	best, bestCount := delimiterCandidates[0], 0
	for _, d := range delimiterCandidates {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func firstNonEmptyLine(text string) string {
	for len(text) > 0 {
		line, rest, _ := strings.Cut(text, "\n")
		if strings.TrimSpace(line) != "" {
			return line
		}
		text = rest
	}
	return ""
}

// ParseTabular splits newline-normalized text into rows of cells.
//
// Quoted cells may contain the delimiter, newlines and doubled quotes ("").
// A quote that is still open at end of input is closed there and the table
// is marked Lenient. Rows whose cells are all blank are dropped. ErrParse is
// returned only when no row survives.
func ParseTabular(text string) (*Table, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: input is empty", ErrParse)
	}

	delim := DetectDelimiter(text)
	table := &Table{Delimiter: delim}

	var (
		cell     strings.Builder
		row      []string
		inQuotes bool
	)

	endCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}
	endRow := func() {
		endCell()
		if !isBlankRow(row) {
			table.Rows = append(table.Rows, row)
		}
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cell.WriteRune('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			cell.WriteRune(c)
			continue
		}

		switch c {
		case '"':
			inQuotes = true
		case delim:
			endCell()
		case '\n':
			endRow()
		default:
			cell.WriteRune(c)
		}
	}

	if inQuotes {
		table.Lenient = true
	}
	if cell.Len() > 0 || len(row) > 0 {
		endRow()
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: no rows after cleanup", ErrParse)
	}
	return table, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
