package upload

import "fmt"

// RowSource yields rows until it returns io.EOF.
type RowSource interface {
	Next() (map[string]interface{}, error)
}

// LineSource is implemented by row sources that know the line the last row started on.
type LineSource interface {
	Line() int
}

// DatasetWriter sends one batch of rows to a dataset.
type DatasetWriter interface {
	Upsert(datasetID string, rows []map[string]interface{}) (*Response, error)
	Replace(datasetID string, rows []map[string]interface{}) (*Response, error)
}

// Response is what the dataset service reports for a single request. RowError.Index is the position
// of the row in that request, -1 when the service did not say.
type Response struct {
	Created int
	Updated int
	Deleted int
	Errors  []RowError
}

type RowError struct {
	Index   int    `json:"index"`
	Line    int    `json:"line"`
	Message string `json:"message"`
	// Deletion is set when the failing row came from the deletion list, Line is then the position in it.
	Deletion bool `json:"deletion,omitempty"`
}

// UpsertResult accumulates the counts of every successful request of an upload.
type UpsertResult struct {
	Created int
	Updated int
	Deleted int
	Chunks  int
	Errors  []RowError
}

// TransportError means a request could not be completed. Chunks after it were never sent.
type TransportError struct {
	Chunk int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chunk %d could not be sent: %v", e.Chunk, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RowLevelError means the service rejected rows in a chunk. Chunks after it were never sent.
type RowLevelError struct {
	Chunk  int
	Errors []RowError
}

func (e *RowLevelError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("chunk %d was rejected", e.Chunk)
	}
	first := e.Errors[0]
	return fmt.Sprintf("chunk %d has %d row errors, first at line %d: %s", e.Chunk, len(e.Errors), first.Line, first.Message)
}
