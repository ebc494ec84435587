package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// Column headers match the spreadsheets the gate staff already use.
var (
	DirectoryHeader = []string{"dni", "nombre", "tipo_ingreso", "puerta_acceso", "ubicacion", "cuota"}
	AccessLogHeader = []string{"ts", "dni_buscado", "encontrado", "nombre", "tipo_ingreso", "puerta_acceso", "ubicacion", "cuota"}
)

// TimestampLayout is used for ts in access log exports.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// flushInterval bounds buffered rows when streaming to an HTTP response.
const flushInterval = 1000

// flusher is satisfied by http.ResponseWriter implementations that stream.
type flusher interface {
	Flush()
}

// WriteDirectoryCSV writes records under DirectoryHeader. The output
// re-ingests to the same set of records.
func WriteDirectoryCSV(w io.Writer, recs []PersonRecord, delim rune) error {
	cw, err := newCSVWriter(w, delim)
	if err != nil {
		return err
	}

	if err := cw.Write(DirectoryHeader); err != nil {
		return err
	}
	for i, r := range recs {
		if err := cw.Write([]string{
			r.Key,
			r.DisplayName,
			r.Category,
			r.AccessZone,
			r.Location,
			duesCell(r.DuesStatus),
		}); err != nil {
			return err
		}
		flushEvery(cw, w, i)
	}

	cw.Flush()
	return cw.Error()
}

// WriteAccessLogCSV writes entries under AccessLogHeader with timestamps
// rendered in loc. Fields containing the delimiter, quotes or line breaks
// are quoted.
func WriteAccessLogCSV(w io.Writer, entries []AccessLogEntry, delim rune, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw, err := newCSVWriter(w, delim)
	if err != nil {
		return err
	}

	if err := cw.Write(AccessLogHeader); err != nil {
		return err
	}
	for i, e := range entries {
		row := []string{
			e.Timestamp.In(loc).Format(TimestampLayout),
			e.QueriedKey,
			fmt.Sprintf("%t", e.Found),
			"", "", "", "", "",
		}
		if s := e.Snapshot; s != nil {
			row[3] = s.DisplayName
			row[4] = s.Category
			row[5] = s.AccessZone
			row[6] = s.Location
			row[7] = duesCell(s.DuesStatus)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		flushEvery(cw, w, i)
	}

	cw.Flush()
	return cw.Error()
}

func newCSVWriter(w io.Writer, delim rune) (*csv.Writer, error) {
	switch delim {
	case 0:
		delim = ','
	case '"', '\r', '\n':
		return nil, fmt.Errorf("invalid export delimiter %q", delim)
	}
	cw := csv.NewWriter(w)
	cw.Comma = delim
	return cw, nil
}

func flushEvery(cw *csv.Writer, w io.Writer, i int) {
	if (i+1)%flushInterval != 0 {
		return
	}
	cw.Flush()
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
}

func duesCell(current bool) string {
	if current {
		return "1"
	}
	return "0"
}
