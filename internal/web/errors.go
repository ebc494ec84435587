package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// core.MapError message, action and code. Ingest failures also carry the
// phase that failed and, for a chunk write, the 1-based record range, so an
// operator can tell how far a partial load got.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/logging"
)

var (
	errNoFile      = errors.New("no file provided")
	errRateLimited = errors.New("rate limit exceeded")
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	Phase  string             `json:"phase,omitempty"`
	Range  string             `json:"range,omitempty"`
	Result *core.IngestResult `json:"result,omitempty"`
}

// statusFor maps an error to the HTTP status returned with it.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrIngestInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrParse),
		errors.Is(err, core.ErrMissingRequiredColumns),
		errors.Is(err, core.ErrNoValidRecords),
		errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrInvalidQuery),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadDelimiter):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its mapped response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondIngestError(w, r, err, nil)
}

// respondIngestError is respondError with the partial result of a failed
// ingest attached.
func (s *Server) respondIngestError(w http.ResponseWriter, r *http.Request, err error, res *core.IngestResult) {
	status := statusFor(err)
	msg := core.MapError(err)

	body := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Phase:   core.PhaseOf(err),
		Result:  res,
	}
	var pe *core.PersistenceError
	if errors.As(err, &pe) {
		body.Range = pe.Range()
	}

	log := logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error", "phase", body.Phase, "range", body.Range)
	} else {
		log.Warn("request rejected")
	}

	writeJSON(w, r, status, body)
}

// respondErrorJSON writes a mapped message without logging, for middleware
// rejections.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
