package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JonMunkholm/roster/internal/core"
)

const protobufContentType = "application/x-protobuf"

// lookupResponse is what a gate client renders: found, the CURRENT/OWING
// status and the record.
type lookupResponse struct {
	Key            string              `json:"key"`
	Found          bool                `json:"found"`
	Classification core.Classification `json:"classification"`
	Status         string              `json:"status,omitempty"`
	Record         *core.PersonRecord  `json:"record,omitempty"`
}

func newLookupResponse(res core.LookupResult) lookupResponse {
	return lookupResponse{
		Key:            res.Key,
		Found:          res.Found(),
		Classification: res.Classification,
		Status:         res.Status(),
		Record:         res.Record,
	}
}

// handleLookup classifies one key and records the attempt.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Lookup(requestContext(r), chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := newLookupResponse(res)
	if strings.Contains(r.Header.Get("Accept"), protobufContentType) {
		s.writeLookupProto(w, r, resp)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// writeLookupProto encodes the response as a google.protobuf.Struct for
// gate devices that do not parse JSON.
func (s *Server) writeLookupProto(w http.ResponseWriter, r *http.Request, resp lookupResponse) {
	st, err := lookupStruct(resp)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	b, err := proto.Marshal(st)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func lookupStruct(resp lookupResponse) (*structpb.Struct, error) {
	fields := map[string]any{
		"key":            resp.Key,
		"found":          resp.Found,
		"classification": string(resp.Classification),
	}
	if resp.Status != "" {
		fields["status"] = resp.Status
	}
	if rec := resp.Record; rec != nil {
		record := map[string]any{
			"key":         rec.Key,
			"displayName": rec.DisplayName,
			"category":    rec.Category,
			"accessZone":  rec.AccessZone,
			"duesStatus":  rec.DuesStatus,
		}
		if rec.Location != "" {
			record["location"] = rec.Location
		}
		fields["record"] = record
	}
	return structpb.NewStruct(fields)
}
