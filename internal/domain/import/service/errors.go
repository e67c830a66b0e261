package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/batchdesk/internal/domain/import/sniffer"
)

// Failure taxonomy of one import. Exactly one is returned per failed call;
// callers match with errors.Is.
var (
	ErrRead              = errors.New("file could not be read")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMalformedFile     = errors.New("file is malformed")
	ErrEmptyResult       = errors.New("no usable codes found")
)

// UserMessage is the user-facing rendering of an import failure.
// Code is stable and can be quoted to support.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// MapError converts an import error into a UserMessage.
// Errors outside the taxonomy map to a generic message.
func MapError(err error) UserMessage {
	switch {
	case errors.Is(err, ErrRead):
		return UserMessage{
			Code:    "FILE001",
			Message: "The file could not be read.",
			Action:  "Select the file again and retry the upload.",
		}
	case errors.Is(err, ErrUnsupportedFormat):
		return UserMessage{
			Code:    "FILE002",
			Message: "This file type is not supported.",
			Action:  fmt.Sprintf("Upload one of: %s.", strings.Join(sniffer.SupportedExtensions(), ", ")),
		}
	case errors.Is(err, ErrMalformedFile):
		return UserMessage{
			Code:    "FILE003",
			Message: "The spreadsheet has no data rows or could not be opened.",
			Action:  "Put a header in row 1 and one code per row in column A.",
		}
	case errors.Is(err, ErrEmptyResult):
		return UserMessage{
			Code:    "FILE004",
			Message: "No usable codes were found in the file.",
			Action:  "Codes go in column A below the header and must be 1 to 10 characters long.",
		}
	default:
		return UserMessage{
			Code:    "FILE000",
			Message: "The file could not be processed.",
			Action:  "Please try again.",
		}
	}
}

// outcome is the metrics/log label for an import result
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRead):
		return "read_error"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrMalformedFile):
		return "malformed_file"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	default:
		return "error"
	}
}
