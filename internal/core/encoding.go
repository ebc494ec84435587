package core

// encoding.go prepares uploaded bytes for the tabular parser.
//
// Spreadsheet exports arrive in three common shapes: UTF-8 with a BOM
// (Excel "CSV UTF-8"), plain UTF-8, and Windows-1252 (Excel "CSV" on
// Spanish-locale Windows). All are turned into UTF-8 text with \n line
// endings.

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NormalizeText strips a UTF-8 BOM, decodes non-UTF-8 input as
// Windows-1252 and unifies line endings.
func NormalizeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		text = string(decoded)
	}

	return unifyLineEndings(text), nil
}

func unifyLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
