package core

// error_messages.go maps technical errors to messages an operator can act
// on. Codes are stable and quoted in support requests.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Too few columns: the header split into fewer than three columns
//	FILE003 - Malformed content: the file or bundle could not be read
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - Unsupported format: only .csv, .txt, .tsv and .json are read
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Table busy: another import of the same table is running
//	IMP002 - System busy: every import slot is taken
//	IMP003 - Unknown table
//	IMP004 - Partial import: a batch failed after earlier batches were saved
//	IMP005 - Invalid option
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Timeout
//	DB004 - Quota exceeded
//
// # Default Error (ERR000)
//
// Sentinel and typed errors are matched first with errors.Is/errors.As;
// anything else falls back to case-insensitive substring patterns, first
// match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is an error explained for the person running the import.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum size limit", "Split the file or the bundle into smaller parts", "FILE001"}},
	{ErrTooFewColumns, UserMessage{"The header has too few columns", "Check that the file is separated by commas, semicolons or tabs", "FILE002"}},
	{ErrMalformedRecords, UserMessage{"The file content could not be read", "Re-export the file and try again", "FILE003"}},
	{ErrEmptyFile, UserMessage{"The file is empty", "Upload a file with a header line and data rows", "FILE005"}},
	{ErrUnsupportedFormat, UserMessage{"This file type is not supported", "Use .csv, .txt, .tsv or .json files", "FILE006"}},
	{ErrTableBusy, UserMessage{"An import of this table is already running", "Wait for it to finish, then try again", "IMP001"}},
	{ErrTooManyRuns, UserMessage{"Too many imports in progress", "Please wait a moment and try again", "IMP002"}},
	{ErrUnknownTable, UserMessage{"This table cannot be imported", "Check the table name or the file name inside the bundle", "IMP003"}},
	{ErrInvalidOption, UserMessage{"An import option is invalid", "Check the identifier field and the option values", "IMP005"}},
}

var partialImportMessage = UserMessage{
	Message: "The import stopped part way; earlier batches were saved",
	Action:  "Run the same import again; rows already saved will be skipped",
	Code:    "IMP004",
}

// errorPatterns are tried in order against the lowercased error text.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"no file provided", UserMessage{"No file was selected", "Select a file to import", "FILE004"}},
	{"connection refused", UserMessage{"Unable to connect to the data store", "Please try again in a few moments", "DB001"}},
	{"connection reset", UserMessage{"The data store connection was interrupted", "Please try again", "DB002"}},
	{"deadline exceeded", UserMessage{"The operation timed out", "Try a smaller file or try again later", "DB003"}},
	{"timeout", UserMessage{"The operation timed out", "Try a smaller file or try again later", "DB003"}},
	{"quota", UserMessage{"The data store refused the write: quota exceeded", "Wait for the quota to reset, then re-run the import", "DB004"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a UserMessage. A nil error maps
// to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ce *CommitError
	if errors.As(err, &ce) && ce.Committed > 0 {
		return partialImportMessage
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
