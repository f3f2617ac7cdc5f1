package schema

import (
	"fmt"
	"strings"
)

type ErrorCode string

const (
	InvalidAction          ErrorCode = "invalid_action"
	InvalidControlFile     ErrorCode = "invalid_control_file"
	NoRowIdentifier        ErrorCode = "no_row_identifier"
	AmbiguousColumn        ErrorCode = "ambiguous_column"
	MissingComponent       ErrorCode = "missing_component"
	UnsupportedComponent   ErrorCode = "unsupported_component_type"
	UnknownSyntheticTarget ErrorCode = "unknown_synthetic_target"
	ExtraColumn            ErrorCode = "extra_column"
	MissingColumns         ErrorCode = "missing_columns"
	MissingRowIdentifier   ErrorCode = "missing_row_identifier"
	InvalidTimestampFormat ErrorCode = "invalid_timestamp_format"
	InvalidTimezone        ErrorCode = "invalid_timezone"
	InvalidEncoding        ErrorCode = "invalid_encoding"
)

// ValidationError is returned when a file and its control file cannot be published to a dataset.
// Details lists every offending item of the failing check.
type ValidationError struct {
	Code    ErrorCode
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Details, "; "))
}

func newValidationError(code ErrorCode, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
