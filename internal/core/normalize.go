package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// RawRecord holds one source row's values indexed by canonical field.
// Absent fields are empty.
type RawRecord [fieldCount]string

// Extract picks the mapped cells out of a data row. Short rows yield
// empty values for the missing trailing columns.
func (m ColumnMap) Extract(row []string) RawRecord {
	var raw RawRecord
	for f, col := range m {
		if col >= 0 && col < len(row) {
			raw[f] = row[col]
		}
	}
	return raw
}

var (
	duesOwing   = map[string]bool{"0": true, "no": true, "false": true, "debe": true}
	duesCurrent = map[string]bool{"1": true, "si": true, "true": true, "al dia": true, "aldia": true, "ok": true}
)

// NormalizeRecord applies the per-field rules to raw. It returns false
// when the row must be rejected: no digits in the key or an empty name.
func NormalizeRecord(raw RawRecord) (PersonRecord, bool) {
	rec := PersonRecord{
		Key:         NormalizeKey(raw[FieldKey]),
		DisplayName: CleanCell(raw[FieldDisplayName]),
		Category:    CleanCell(raw[FieldCategory]),
		AccessZone:  CleanCell(raw[FieldAccessZone]),
		Location:    CleanCell(raw[FieldLocation]),
		DuesStatus:  ParseDuesStatus(raw[FieldDuesStatus]),
	}
	if rec.Key == "" || rec.DisplayName == "" {
		return PersonRecord{}, false
	}
	return rec, true
}

// NormalizeKey keeps only the decimal digits of s.
func NormalizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// ParseDuesStatus interprets a dues cell. Owing is 0, no, false, debe or
// any numeric zero; everything else, including blank and unrecognized
// text, is current.
func ParseDuesStatus(s string) bool {
	v := strings.Join(strings.Fields(foldDiacritics(strings.ToLower(CleanCell(s)))), " ")
	if v == "" {
		return true
	}
	if duesOwing[v] {
		return false
	}
	if duesCurrent[v] {
		return true
	}
	// Spreadsheets in Spanish locales write 0,00.
	if d, err := decimal.NewFromString(strings.Replace(v, ",", ".", 1)); err == nil {
		return !d.IsZero()
	}
	return true
}

// CleanCell trims whitespace and unwraps spreadsheet text guards such as
// ="00123" that keep leading zeros in exported identifiers. Any other
// leading = is content and is kept.
func CleanCell(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)

	// The tabular parser has already consumed the quotes of ="00123",
	// leaving =00123; JSON input still carries them.
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if rest, ok := strings.CutPrefix(s, "="); ok && isGuardedNumber(rest) {
		s = rest
	}

	return strings.TrimFunc(s, unicode.IsSpace)
}

// isGuardedNumber reports whether s looks like the numeric payload of an
// =00123 guard: digits with optional separators, sign and decimal comma.
func isGuardedNumber(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',' || r == '-' || r == '+' || r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}
