package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/logging"
)

type logsResponse struct {
	From    string                `json:"from"`
	To      string                `json:"to"`
	Count   int                   `json:"count"`
	Entries []core.AccessLogEntry `json:"entries"`
}

// handleLogs returns the lookups recorded between ?from= and ?to=
// (YYYY-MM-DD, inclusive, in the audit timezone). With ?download=1 the
// entries stream as a delimited file; &sep= overrides the configured
// delimiter.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	download := parseBool(q.Get("download"))

	var delim rune
	if download {
		def, _ := parseDelimiter(s.cfg.Audit.ExportDelimiter, ',')
		var err error
		if delim, err = parseDelimiter(q.Get("sep"), def); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	entries, err := s.service.AccessLog(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	loc := s.service.Location()
	if !download {
		if entries == nil {
			entries = []core.AccessLogEntry{}
		}
		writeJSON(w, r, http.StatusOK, logsResponse{
			From:    q.Get("from"),
			To:      q.Get("to"),
			Count:   len(entries),
			Entries: entries,
		})
		return
	}

	setDownloadHeaders(w, "logs", time.Now().In(loc))
	if err := core.WriteAccessLogCSV(w, entries, delim, loc); err != nil {
		// Headers are sent; the client sees a truncated file.
		logging.FromContext(r.Context()).Warn("access log export interrupted", "error", err)
	}
}
