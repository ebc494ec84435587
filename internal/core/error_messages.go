package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Every message carries a code that can be quoted to support:
//
// # Ingest Errors (ING001-ING099)
//
//	ING001 - The file could not be read as a roster (ErrParse)
//	ING002 - Required column missing: key or name (ErrMissingRequiredColumns)
//	ING003 - Every row was rejected (ErrNoValidRecords)
//	ING004 - Another ingest holds the writer lock (ErrIngestInProgress)
//	ING005 - Unknown load mode (ErrInvalidMode)
//	ING006 - Nothing was submitted (ErrEmptyInput)
//
// # Lookup and Audit Errors (LKP001-LKP099)
//
//	LKP001 - The queried identifier has no digits (ErrInvalidQuery)
//	LKP002 - Bad audit date range (ErrInvalidRange)
//
// # Store Errors (DB001-DB099)
//
//	DB001 - A chunk could not be written (ErrPersistence, no better match)
//	DB002 - Connection refused
//	DB003 - Connection reset
//	DB004 - Database busy or locked
//	DB005 - Deadlock
//	DB006 - Timeout
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Body exceeds INGEST_MAX_FILE_SIZE
//	REQ002 - No file in the multipart form
//	REQ003 - Request cancelled
//	REQ004 - Request timed out
//	REQ005 - Unsupported export delimiter
//
//	RATE001 - Too many requests
//	ERR000  - Anything else; check the logs for the technical error
//
// Sentinels are checked with errors.Is first. Store and driver messages are
// then matched case-insensitively with strings.Contains, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrEmptyInput, UserMessage{
		Message: "Nothing was submitted",
		Action:  "Upload a CSV or JSON file with at least one person",
		Code:    "ING006",
	}},
	{ErrParse, UserMessage{
		Message: "The file could not be read as a roster",
		Action:  "Check that the file is a delimited text export or a JSON array",
		Code:    "ING001",
	}},
	{ErrMissingRequiredColumns, UserMessage{
		Message: "A required column is missing",
		Action:  "Include an identifier column (dni, documento) and a name column (nombre, socio)",
		Code:    "ING002",
	}},
	{ErrNoValidRecords, UserMessage{
		Message: "No valid rows were found",
		Action:  "Every row needs digits in the identifier and a non-empty name",
		Code:    "ING003",
	}},
	{ErrIngestInProgress, UserMessage{
		Message: "Another roster load is in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "ING004",
	}},
	{ErrInvalidMode, UserMessage{
		Message: "Unknown load mode",
		Action:  "Use REPLACE or MERGE",
		Code:    "ING005",
	}},
	{ErrInvalidQuery, UserMessage{
		Message: "The identifier must contain digits",
		Action:  "Type the document number without letters",
		Code:    "LKP001",
	}},
	{ErrInvalidRange, UserMessage{
		Message: "Invalid date range",
		Action:  "Use YYYY-MM-DD dates with from on or before to",
		Code:    "LKP002",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ003",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ004",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps driver and transport messages (case-insensitive) to user
// messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB002",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Run the load again; records are written idempotently",
		Code:    "DB003",
	}},
	{"database is locked", UserMessage{
		Message: "Database is busy",
		Action:  "Please try again",
		Code:    "DB004",
	}},
	{"sqlite_busy", UserMessage{
		Message: "Database is busy",
		Action:  "Please try again",
		Code:    "DB004",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"request body too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the roster into smaller files and load them with MERGE",
		Code:    "REQ001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or JSON file to upload",
		Code:    "REQ002",
	}},
	{"delimiter", UserMessage{
		Message: "Unsupported export delimiter",
		Action:  "Use a single character such as , or ; or the word tab",
		Code:    "REQ005",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var persistenceMessage = UserMessage{
	Message: "The roster was only partially saved",
	Action:  "Run the same load again; records already saved are rewritten unchanged",
	Code:    "DB001",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known sentinels win over message patterns; a persistence failure without
// a more specific driver pattern maps to DB001.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrPersistence) {
		return persistenceMessage
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
