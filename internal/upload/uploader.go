package upload

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

// DeletedKey marks a row as a tombstone.
const DeletedKey = ":deleted"

type Request struct {
	DatasetID     string
	Method        controlfile.Action
	Rows          RowSource
	FileSize      int64
	HasHeaderRow  bool
	Skip          int
	RowIdentifier string
	// Deletions are row identifiers removed ahead of the rows in the file.
	Deletions []string
}

type Uploader struct {
	logger    *zap.SugaredLogger
	statsd    statsd.ClientInterface
	chunkSize int
	threshold int64
}

func NewUploader(env *conf.Env, logger *zap.SugaredLogger, statsd statsd.ClientInterface) *Uploader {
	return &Uploader{
		logger:    logger.Named("upload"),
		statsd:    statsd,
		chunkSize: env.ChunkSize,
		threshold: env.ChunkingThreshold,
	}
}

// Upload sends the rows of req through w. Upsert, append and delete are chunked, replace is always
// one request. The first failing chunk stops the upload and the counts of the chunks before it are
// returned together with the error.
func (u *Uploader) Upload(w DatasetWriter, req Request) (*UpsertResult, error) {
	if !req.Method.Valid() {
		return nil, fmt.Errorf("unknown publish method %q", req.Method)
	}
	if req.Method == controlfile.Delete && req.RowIdentifier == "" {
		return nil, errors.New("delete needs a row identifier")
	}
	send := w.Upsert
	chunkSize := u.chunkSize
	if chunkSize <= 0 || req.FileSize < u.threshold {
		chunkSize = 0
	}
	tombstones := u.tombstones(req.RowIdentifier, req.Deletions)
	if req.Method == controlfile.Replace {
		send = w.Replace
		chunkSize = 0
		if len(tombstones) > 0 {
			u.logger.Warnw("Ignoring deletions for replace", "dataset", req.DatasetID, "deletions", len(tombstones))
			tombstones = nil
		}
	}

	tags := []string{"dataset:" + req.DatasetID, "method:" + string(req.Method)}
	result := &UpsertResult{}
	offset := 1 + req.Skip
	if req.HasHeaderRow {
		offset++
	}
	sent := 0
	for chunk := 1; ; chunk++ {
		batch := tombstones
		tombstones = nil
		removed := len(batch)
		rows, lines, done, err := u.read(req, chunkSize)
		if err != nil {
			return result, err
		}
		batch = append(batch, rows...)
		if len(batch) == 0 && chunk > 1 {
			break
		}
		if len(batch) == 0 && req.Method != controlfile.Replace {
			break
		}

		start := time.Now()
		resp, err := send(req.DatasetID, batch)
		_ = u.statsd.Timing("upload.chunk.time", time.Since(start), tags, 1)
		if err != nil {
			u.logger.Warnw("Chunk failed", "dataset", req.DatasetID, "chunk", chunk, "error", err)
			return result, &TransportError{Chunk: chunk, Err: err}
		}
		_ = u.statsd.Incr("upload.chunks", tags, 1)
		_ = u.statsd.Count("upload.rows", int64(len(batch)), tags, 1)

		if len(resp.Errors) > 0 {
			rowErrors := make([]RowError, 0, len(resp.Errors))
			for _, re := range resp.Errors {
				rowErrors = append(rowErrors, locate(re, removed, sent, offset, lines))
			}
			_ = u.statsd.Count("upload.row_errors", int64(len(rowErrors)), tags, 1)
			u.logger.Warnw("Chunk has row errors", "dataset", req.DatasetID, "chunk", chunk, "errors", len(rowErrors))
			result.Errors = rowErrors
			return result, &RowLevelError{Chunk: chunk, Errors: rowErrors}
		}

		result.Created += resp.Created
		result.Updated += resp.Updated
		result.Deleted += resp.Deleted
		result.Chunks = chunk
		sent += len(rows)
		u.logger.Infow("Sent chunk", "dataset", req.DatasetID, "chunk", chunk, "rows", len(batch),
			"created", resp.Created, "updated", resp.Updated, "deleted", resp.Deleted)
		if done {
			break
		}
	}
	return result, nil
}

// read takes up to size rows from the source, all of them when size is 0. Start lines are returned
// alongside when the source records them.
func (u *Uploader) read(req Request, size int) ([]map[string]interface{}, []int, bool, error) {
	var rows []map[string]interface{}
	var lines []int
	ls, tracked := req.Rows.(LineSource)
	for size == 0 || len(rows) < size {
		row, err := req.Rows.Next()
		if err == io.EOF {
			return rows, lines, true, nil
		}
		if err != nil {
			return nil, nil, false, err
		}
		if req.Method == controlfile.Delete {
			row = map[string]interface{}{req.RowIdentifier: row[req.RowIdentifier], DeletedKey: true}
		}
		rows = append(rows, row)
		if tracked {
			lines = append(lines, ls.Line())
		}
	}
	return rows, lines, false, nil
}

func (u *Uploader) tombstones(rowIdentifier string, ids []string) []map[string]interface{} {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, map[string]interface{}{rowIdentifier: id, DeletedKey: true})
	}
	return rows
}

// locate turns the index of a row in a request into a line of the source file. Recorded start lines
// win; without them the line is counted from the rows sent so far, which assumes one line per row.
func locate(re RowError, removed int, sent int, offset int, lines []int) RowError {
	switch {
	case re.Index < 0:
		re.Line = 0
	case re.Index < removed:
		re.Deletion = true
		re.Line = re.Index + 1
	case re.Index-removed < len(lines):
		re.Line = lines[re.Index-removed]
	default:
		re.Line = sent + re.Index - removed + offset
	}
	return re
}
