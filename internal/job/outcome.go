package job

import (
	"errors"
	"fmt"

	"github.com/mimiro-io/dataset-publisher/internal/dropbox"
	"github.com/mimiro-io/dataset-publisher/internal/encoder"
	"github.com/mimiro-io/dataset-publisher/internal/schema"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

type Kind string

const (
	Success    Kind = "success"
	Validation Kind = "validation"
	Transport  Kind = "transport"
	RowLevel   Kind = "row_level"
	Protocol   Kind = "protocol"
)

// Category is the coarse result callers branch on.
type Category string

const (
	CategorySuccess    Category = "success"
	CategoryValidation Category = "validation_error"
	CategoryTransport  Category = "transport_error"
)

// Outcome is the result of one run. It is built once per run and never changed afterwards.
type Outcome struct {
	Kind      Kind
	Message   string
	DatasetID string
	File      string
	Created   int
	Updated   int
	Deleted   int
	RowErrors []upload.RowError
	// Err is the error that ended the run, nil on success.
	Err error
}

func (o Outcome) Success() bool {
	return o.Kind == Success
}

func (o Outcome) Category() Category {
	switch o.Kind {
	case Success:
		return CategorySuccess
	case Validation:
		return CategoryValidation
	default:
		return CategoryTransport
	}
}

// ExitCode is the process exit status for the outcome.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Success:
		return 0
	case Validation:
		return 1
	case RowLevel:
		return 3
	case Protocol:
		return 4
	default:
		return 2
	}
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s", o.Kind, o.Message)
}

func succeeded(j *Job, res *upload.UpsertResult, message string) Outcome {
	o := Outcome{Kind: Success, Message: message, DatasetID: j.DatasetID, File: j.FileToPublish}
	if res != nil {
		o.Created, o.Updated, o.Deleted = res.Created, res.Updated, res.Deleted
		if message == "" {
			o.Message = fmt.Sprintf("published %s: %d rows created, %d updated, %d deleted", j.FileToPublish, res.Created, res.Updated, res.Deleted)
		}
	}
	return o
}

// failed classifies err. Counts of chunks sent before the failure are kept.
func failed(j *Job, res *upload.UpsertResult, err error) Outcome {
	o := Outcome{Kind: kindOf(err), Message: err.Error(), DatasetID: j.DatasetID, File: j.FileToPublish, Err: err}
	if res != nil {
		o.Created, o.Updated, o.Deleted = res.Created, res.Updated, res.Deleted
	}
	var rowErr *upload.RowLevelError
	if errors.As(err, &rowErr) {
		o.RowErrors = rowErr.Errors
	}
	return o
}

func kindOf(err error) Kind {
	var validationErr *schema.ValidationError
	var parseErr *encoder.ParseError
	var rowErr *upload.RowLevelError
	var dropboxErr *dropbox.Error
	switch {
	case errors.Is(err, ErrInvalidJob), errors.As(err, &validationErr), errors.As(err, &parseErr):
		return Validation
	case errors.As(err, &rowErr):
		return RowLevel
	case errors.As(err, &dropboxErr):
		if dropboxErr.Kind == dropbox.KindStatusFailure || dropboxErr.Kind == dropbox.KindPollExhausted {
			return Protocol
		}
		return Transport
	}
	return Transport
}
