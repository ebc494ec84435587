package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/roster/internal/core"
)

// handleIngest loads a roster. The body is one of:
//   - application/json: {"mode": ..., "records": [...]} or a bare array with ?mode=
//   - multipart/form-data: a "file" part and a "mode" field
//   - anything else: delimited text with ?mode=
//
// ?dry_run=1 reconciles without writing.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)

	req, err := s.readIngestRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Ingest(requestContext(r), req)
	if err != nil {
		s.respondIngestError(w, r, err, res)
		return
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) readIngestRequest(r *http.Request) (core.IngestRequest, error) {
	req := core.IngestRequest{
		Mode:   r.URL.Query().Get("mode"),
		Format: core.FormatCSV,
		DryRun: queryBool(r, "dry_run"),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		req.Format = core.FormatJSON
		return decodeJSONIngest(req, body)

	case "multipart/form-data":
		return readMultipartIngest(r, req, s.cfg.Ingest.MaxFileSize)

	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		req.Data = body
		return req, nil
	}
}

// decodeJSONIngest accepts the wrapped object or a bare array. A mode in
// the body overrides ?mode=.
func decodeJSONIngest(req core.IngestRequest, body []byte) (core.IngestRequest, error) {
	mode, rows, err := core.SplitJSONIngest(body)
	if err != nil {
		return req, err
	}
	if mode != "" {
		req.Mode = mode
	}
	req.Data = rows
	return req, nil
}

func readMultipartIngest(r *http.Request, req core.IngestRequest, maxSize int64) (core.IngestRequest, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, err
		}
		// multipart flattens the reader error into its own message.
		if strings.Contains(err.Error(), "request body too large") {
			return req, &http.MaxBytesError{Limit: maxSize}
		}
		return req, fmt.Errorf("%w: invalid form: %v", core.ErrParse, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, err
	}
	req.Data = data

	if m := r.FormValue("mode"); m != "" {
		req.Mode = m
	}
	if v := r.FormValue("dry_run"); v != "" {
		req.DryRun = parseBool(v)
	}

	if strings.EqualFold(filepath.Ext(header.Filename), ".json") ||
		strings.HasPrefix(header.Header.Get("Content-Type"), "application/json") {
		req.Format = core.FormatJSON
		return decodeJSONIngest(req, data)
	}
	return req, nil
}

func queryBool(r *http.Request, name string) bool {
	return parseBool(r.URL.Query().Get(name))
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
