package core

// error_messages.go turns technical errors into messages a user can act on.
// Every message carries a code the user can quote back.
//
//	FILE001  file too large            FILE002  unsupported file type
//	FILE003  no data rows              FILE004  no file selected
//	FILE005  file could not be read
//	XLSX001  workbook has no sheets    XLSX002  no usable sheet
//	XLSX003  not a valid workbook
//	STO001   storage full              STO002   stored data unreadable
//	STO003   storage unavailable
//	UPL001   upload cancelled          UPL002   too many uploads
//	UPL003   upload expired            UPL004   replaced by newer upload
//	UPL005   upload timed out
//	REQ001   unknown dataset           REQ002   unknown filter
//	REQ003   malformed request body
//	RATE001  too many requests
//	ERR000   anything else; check the logs for the technical error
//
// Sentinel errors are matched first with errors.Is. Errors that only
// surface as text (driver and network failures) fall back to substring
// patterns, matched case-insensitively, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/parse"
	"github.com/JonMunkholm/tabview/internal/store"
)

// ErrNoFile and ErrFileTooLarge are raised by transports before a file
// reaches the service.
var (
	ErrNoFile       = errors.New("no file provided")
	ErrFileTooLarge = errors.New("file too large")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorTarget struct {
	target error
	msg    UserMessage
}

// Order matters where errors wrap each other: a superseded upload also
// carries context.Canceled.
var errorTargets = []errorTarget{
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Remove unused rows or columns and try again", "FILE001"}},
	{parse.ErrUnsupportedExtension, UserMessage{"Only .csv or .xlsx files are supported", "Save the file as CSV or Excel workbook", "FILE002"}},
	{parse.ErrEmptyInput, UserMessage{"The file has no data rows", "Upload a file with a header line and at least one row", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was selected", "Choose a .csv or .xlsx file to upload", "FILE004"}},
	{parse.ErrNoSheets, UserMessage{"The workbook has no sheets", "Check that the file is the right workbook", "XLSX001"}},
	{parse.ErrSheetNotFound, UserMessage{"No usable sheet in the workbook", "Name the data sheet Sheet1 or include dbase in its name", "XLSX002"}},
	{store.ErrStorageFull, UserMessage{"Not enough storage to keep this dataset", "Clear the other dataset or upload a smaller file", "STO001"}},
	{store.ErrCorruptRecord, UserMessage{"The stored dataset could not be read", "Upload the file again", "STO002"}},
	{ErrSuperseded, UserMessage{"A newer upload replaced this one", "No action needed", "UPL004"}},
	{ErrTooManyUploads, UserMessage{"Too many uploads in progress", "Please wait a moment and try again", "UPL002"}},
	{ErrUploadNotFound, UserMessage{"Upload session not found", "The upload may have expired. Please start a new upload", "UPL003"}},
	{context.Canceled, UserMessage{"Upload was cancelled", "Start a new upload when ready", "UPL001"}},
	{context.DeadlineExceeded, UserMessage{"Upload timed out", "Try a smaller file or try again later", "UPL005"}},
	{dataset.ErrUnknownKind, UserMessage{"Unknown dataset", "Use main or history", "REQ001"}},
	{facet.ErrUnknownFacet, UserMessage{"That filter is not available for this dataset", "Reload the page to refresh the filters", "REQ002"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"request body too large", errorTargets[0].msg},
	{"zip: not a valid zip file", UserMessage{"The file is not a valid Excel workbook", "Open it in Excel and save it again as .xlsx", "XLSX003"}},
	{"open workbook", UserMessage{"The file is not a valid Excel workbook", "Open it in Excel and save it again as .xlsx", "XLSX003"}},
	{"connection refused", UserMessage{"Storage is unavailable", "Please try again in a few moments", "STO003"}},
	{"connection reset", UserMessage{"Storage is unavailable", "Please try again", "STO003"}},
	{"i/o timeout", UserMessage{"Storage is unavailable", "Please try again", "STO003"}},
	{"read file", UserMessage{"The file could not be read", "Check the file and upload it again", "FILE005"}},
	{"invalid request body", UserMessage{"The request could not be read", "Send JSON or form fields as documented", "REQ003"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			msg := et.msg
			var snf *parse.SheetNotFoundError
			if errors.As(err, &snf) && len(snf.Available) > 0 {
				msg.Message = fmt.Sprintf("%s (sheets: %s)", msg.Message, strings.Join(snf.Available, ", "))
			}
			return msg
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

// FormatUserError renders "Message (Code: XXX). Action", or "" for nil.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err once and keeps the original for logging. Returns
// nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
