package dropbox

import "fmt"

type Kind string

const (
	KindResolveHost   Kind = "resolve_host"
	KindConnect       Kind = "connect"
	KindMkdir         Kind = "mkdir"
	KindRequestID     Kind = "request_id"
	KindStore         Kind = "store"
	KindEnqueue       Kind = "enqueue"
	KindSizeMismatch  Kind = "size_mismatch"
	KindPollExhausted Kind = "poll_exhausted"
	KindStatusFailure Kind = "status_failure"
)

// Error tells which step of a dropbox transfer failed.
type Error struct {
	Kind   Kind
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindResolveHost:
		msg = "unable to find the ftp host of the domain"
	case KindConnect:
		msg = "unable to connect to the ftp dropbox, check username and password"
	case KindMkdir:
		msg = fmt.Sprintf("unable to create dataset directory %s", e.Path)
	case KindRequestID:
		msg = fmt.Sprintf("unable to write request id to %s", e.Path)
	case KindStore:
		msg = fmt.Sprintf("unable to upload %s", e.Path)
	case KindEnqueue:
		msg = fmt.Sprintf("unable to enqueue %s", e.Path)
	case KindSizeMismatch:
		msg = fmt.Sprintf("uploaded size of %s does not match the local file", e.Path)
	case KindPollExhausted:
		msg = fmt.Sprintf("gave up reading job status from %s", e.Path)
	case KindStatusFailure:
		msg = "publishing job failed"
	default:
		msg = "ftp dropbox transfer failed"
	}
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
