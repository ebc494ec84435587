package core

// ColumnMap gives, per canonical field, the column index holding it or -1.
type ColumnMap [fieldCount]int

// Index returns the column of f, or -1 when absent.
func (m ColumnMap) Index(f Field) int {
	return m[f]
}

// Has reports whether f was resolved to a column.
func (m ColumnMap) Has(f Field) bool {
	return m[f] >= 0
}

// MapHeaders resolves each header cell through the alias table. When
// several columns resolve to the same field the leftmost wins. Missing key
// or displayName columns fail with a *MissingColumnsError.
func MapHeaders(headers []string, aliases *AliasTable) (ColumnMap, error) {
	var m ColumnMap
	for i := range m {
		m[i] = -1
	}

	for col, h := range headers {
		f, ok := aliases.Resolve(CleanCell(h))
		if !ok || m[f] >= 0 {
			continue
		}
		m[f] = col
	}

	var missing []Field
	for _, f := range AllFields() {
		if f.Required() && m[f] < 0 {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return m, &MissingColumnsError{Fields: missing}
	}
	return m, nil
}
