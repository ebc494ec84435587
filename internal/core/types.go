package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field identifies one canonical attribute of a PersonRecord.
type Field int

const (
	FieldKey Field = iota
	FieldDisplayName
	FieldCategory
	FieldAccessZone
	FieldLocation
	FieldDuesStatus

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldKey:         "key",
	FieldDisplayName: "displayName",
	FieldCategory:    "category",
	FieldAccessZone:  "accessZone",
	FieldLocation:    "location",
	FieldDuesStatus:  "duesStatus",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Required reports whether rows cannot be accepted without this field.
func (f Field) Required() bool {
	return f == FieldKey || f == FieldDisplayName
}

// AllFields lists the canonical fields in record order.
func AllFields() []Field {
	fields := make([]Field, fieldCount)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}

// ParseField resolves a canonical field name, case-insensitively.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Field(i), true
		}
	}
	return 0, false
}

// PersonRecord is one directory entry. Key is unique across the directory.
type PersonRecord struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"displayName"`
	Category    string    `json:"category"`
	AccessZone  string    `json:"accessZone"`
	Location    string    `json:"location,omitempty"`
	DuesStatus  bool      `json:"duesStatus"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SameContent compares every field except UpdatedAt.
func (p PersonRecord) SameContent(o PersonRecord) bool {
	return p.Key == o.Key &&
		p.DisplayName == o.DisplayName &&
		p.Category == o.Category &&
		p.AccessZone == o.AccessZone &&
		p.Location == o.Location &&
		p.DuesStatus == o.DuesStatus
}

// Mode selects how a batch is reconciled against the directory.
type Mode string

const (
	// ModeReplace makes the directory exactly the batch.
	ModeReplace Mode = "REPLACE"
	// ModeMerge adds or overwrites batch keys and leaves the rest untouched.
	ModeMerge Mode = "MERGE"
)

// ParseMode accepts the canonical names and the legacy NUEVO, REEMPLAZAR
// and AGREGAR spellings.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "REPLACE", "NUEVO", "REEMPLAZAR":
		return ModeReplace, nil
	case "MERGE", "AGREGAR":
		return ModeMerge, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Classification is the outcome of a lookup.
type Classification string

const (
	NotFound     Classification = "NOT_FOUND"
	FoundCurrent Classification = "FOUND_CURRENT"
	FoundOwing   Classification = "FOUND_OWING"
)

// Classify maps a lookup hit (or miss) to its classification.
func Classify(rec *PersonRecord) Classification {
	switch {
	case rec == nil:
		return NotFound
	case rec.DuesStatus:
		return FoundCurrent
	default:
		return FoundOwing
	}
}

// LookupResult is returned to gate clients.
type LookupResult struct {
	Key            string         `json:"key"`
	Classification Classification `json:"classification"`
	Record         *PersonRecord  `json:"record,omitempty"`
}

// Found reports whether the key exists in the directory.
func (r LookupResult) Found() bool {
	return r.Classification != NotFound
}

// Status is CURRENT or OWING for found keys and empty otherwise.
func (r LookupResult) Status() string {
	switch r.Classification {
	case FoundCurrent:
		return "CURRENT"
	case FoundOwing:
		return "OWING"
	}
	return ""
}

// PersonSnapshot freezes the directory fields shown at lookup time.
type PersonSnapshot struct {
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	AccessZone  string `json:"accessZone"`
	Location    string `json:"location,omitempty"`
	DuesStatus  bool   `json:"duesStatus"`
}

// SnapshotOf copies the audited fields of rec.
func SnapshotOf(rec PersonRecord) *PersonSnapshot {
	return &PersonSnapshot{
		DisplayName: rec.DisplayName,
		Category:    rec.Category,
		AccessZone:  rec.AccessZone,
		Location:    rec.Location,
		DuesStatus:  rec.DuesStatus,
	}
}

// AccessLogEntry is an immutable record of one lookup attempt.
type AccessLogEntry struct {
	ID         uuid.UUID       `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	QueriedKey string          `json:"queriedKey"`
	Found      bool            `json:"found"`
	Snapshot   *PersonSnapshot `json:"snapshot,omitempty"`
	ClientIP   string          `json:"clientIp,omitempty"`
}
