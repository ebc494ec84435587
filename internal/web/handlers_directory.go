package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/logging"
)

var errBadDelimiter = errors.New("invalid delimiter")

type healthResponse struct {
	Status  string                `json:"status"`
	Driver  string                `json:"driver"`
	Records int                   `json:"records"`
	Writer  core.WriterLockStatus `json:"writer"`
}

// handleHealth reports whether the directory store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Driver: s.driver,
		Writer: s.service.WriterStatus(),
	}

	n, err := s.service.DirectorySize(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		resp.Status = "unavailable"
		writeJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Records = n
	writeJSON(w, r, http.StatusOK, resp)
}

type directoryResponse struct {
	Count   int                 `json:"count"`
	Records []core.PersonRecord `json:"records"`
}

// handleDirectory lists the directory as JSON, or as a delimited download
// with ?format=csv (and optionally &sep=).
func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	csvOut := r.URL.Query().Get("format") == "csv"
	var delim rune
	if csvOut {
		var err error
		if delim, err = parseDelimiter(r.URL.Query().Get("sep"), ','); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	recs, err := s.service.Directory(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if !csvOut {
		if recs == nil {
			recs = []core.PersonRecord{}
		}
		writeJSON(w, r, http.StatusOK, directoryResponse{Count: len(recs), Records: recs})
		return
	}

	setDownloadHeaders(w, "directorio", time.Now().In(s.service.Location()))
	if err := core.WriteDirectoryCSV(w, recs, delim); err != nil {
		logging.FromContext(r.Context()).Warn("directory export interrupted", "error", err)
	}
}

// parseDelimiter accepts one character or "tab". An empty value yields def.
func parseDelimiter(v string, def rune) (rune, error) {
	switch v {
	case "":
		return def, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(v)
	if size != len(v) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: %q", errBadDelimiter, v)
	}
	return r, nil
}

func setDownloadHeaders(w http.ResponseWriter, name string, now time.Time) {
	filename := fmt.Sprintf("%s_%s.csv", name, now.Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}
