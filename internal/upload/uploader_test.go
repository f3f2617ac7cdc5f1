package upload

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/franela/goblin"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

type sliceSource struct {
	rows []map[string]interface{}
	pos  int
	err  error
}

func (s *sliceSource) Next() (map[string]interface{}, error) {
	if s.pos >= len(s.rows) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	s.pos++
	return s.rows[s.pos-1], nil
}

// lineSource reports a start line for each row, as a file reader does.
type lineSource struct {
	*sliceSource
	lines []int
}

func (s *lineSource) Line() int {
	return s.lines[s.pos-1]
}

func rowsOf(n int) *sliceSource {
	src := &sliceSource{}
	for i := 0; i < n; i++ {
		src.rows = append(src.rows, map[string]interface{}{"id": fmt.Sprint(i), "name": "row"})
	}
	return src
}

type recordingWriter struct {
	upserts  [][]map[string]interface{}
	replaces [][]map[string]interface{}
	respond  func(call int, rows []map[string]interface{}) (*Response, error)
}

func (w *recordingWriter) Upsert(_ string, rows []map[string]interface{}) (*Response, error) {
	w.upserts = append(w.upserts, rows)
	return w.answer(len(w.upserts), rows)
}

func (w *recordingWriter) Replace(_ string, rows []map[string]interface{}) (*Response, error) {
	w.replaces = append(w.replaces, rows)
	return w.answer(len(w.replaces), rows)
}

func (w *recordingWriter) answer(call int, rows []map[string]interface{}) (*Response, error) {
	if w.respond != nil {
		return w.respond(call, rows)
	}
	return &Response{Created: len(rows)}, nil
}

func sizes(batches [][]map[string]interface{}) []int {
	res := make([]int, 0, len(batches))
	for _, b := range batches {
		res = append(res, len(b))
	}
	return res
}

func testUploader(chunkSize int, threshold int64) *Uploader {
	return &Uploader{
		logger:    zap.NewNop().Sugar(),
		statsd:    &statsd.NoOpClient{},
		chunkSize: chunkSize,
		threshold: threshold,
	}
}

func TestUploader(t *testing.T) {
	g := goblin.Goblin(t)
	g.Describe("The chunked uploader", func() {
		g.It("Should split rows into chunks of the configured size", func() {
			w := &recordingWriter{}
			res, err := testUploader(3, 10).Upload(w, Request{DatasetID: "abcd-1234", Method: controlfile.Upsert, Rows: rowsOf(10), FileSize: 100})
			g.Assert(err).IsNil()
			g.Assert(sizes(w.upserts)).Eql([]int{3, 3, 3, 1})
			g.Assert(res.Created).Equal(10)
			g.Assert(res.Chunks).Equal(4)
		})
		g.It("Should send small files in one request", func() {
			w := &recordingWriter{}
			_, err := testUploader(3, 1000).Upload(w, Request{Method: controlfile.Upsert, Rows: rowsOf(10), FileSize: 100})
			g.Assert(err).IsNil()
			g.Assert(sizes(w.upserts)).Eql([]int{10})
		})
		g.It("Should send everything at once when the chunk size is zero", func() {
			w := &recordingWriter{}
			_, err := testUploader(0, 0).Upload(w, Request{Method: controlfile.Upsert, Rows: rowsOf(7), FileSize: 100})
			g.Assert(err).IsNil()
			g.Assert(sizes(w.upserts)).Eql([]int{7})
		})
		g.It("Should append through upsert", func() {
			w := &recordingWriter{}
			_, err := testUploader(0, 0).Upload(w, Request{Method: controlfile.Append, Rows: rowsOf(2)})
			g.Assert(err).IsNil()
			g.Assert(len(w.upserts)).Equal(1)
			g.Assert(len(w.replaces)).Equal(0)
		})
		g.It("Should replace in a single request regardless of size", func() {
			w := &recordingWriter{}
			_, err := testUploader(3, 0).Upload(w, Request{Method: controlfile.Replace, Rows: rowsOf(10), FileSize: 100})
			g.Assert(err).IsNil()
			g.Assert(sizes(w.replaces)).Eql([]int{10})
			g.Assert(len(w.upserts)).Equal(0)
		})
		g.It("Should replace with an empty file", func() {
			w := &recordingWriter{}
			_, err := testUploader(3, 0).Upload(w, Request{Method: controlfile.Replace, Rows: rowsOf(0)})
			g.Assert(err).IsNil()
			g.Assert(sizes(w.replaces)).Eql([]int{0})
		})
		g.It("Should put tombstones first in the first chunk only", func() {
			w := &recordingWriter{}
			_, err := testUploader(3, 0).Upload(w, Request{
				Method:        controlfile.Upsert,
				Rows:          rowsOf(5),
				FileSize:      100,
				RowIdentifier: "id",
				Deletions:     []string{"a", "b"},
			})
			g.Assert(err).IsNil()
			g.Assert(sizes(w.upserts)).Eql([]int{5, 2})
			g.Assert(w.upserts[0][0]).Eql(map[string]interface{}{"id": "a", DeletedKey: true})
			g.Assert(w.upserts[0][1]).Eql(map[string]interface{}{"id": "b", DeletedKey: true})
			g.Assert(w.upserts[0][2]["name"]).Equal("row")
			for _, row := range w.upserts[1] {
				_, tomb := row[DeletedKey]
				g.Assert(tomb).IsFalse()
			}
		})
		g.It("Should turn the rows of a delete into tombstones", func() {
			w := &recordingWriter{}
			_, err := testUploader(0, 0).Upload(w, Request{Method: controlfile.Delete, Rows: rowsOf(2), RowIdentifier: "id"})
			g.Assert(err).IsNil()
			g.Assert(w.upserts[0]).Eql([]map[string]interface{}{
				{"id": "0", DeletedKey: true},
				{"id": "1", DeletedKey: true},
			})
		})
		g.It("Should stop at row errors and keep earlier counts", func() {
			w := &recordingWriter{respond: func(call int, rows []map[string]interface{}) (*Response, error) {
				if call == 2 {
					return &Response{Created: 2, Errors: []RowError{{Index: 1, Message: "bad value"}}}, nil
				}
				return &Response{Created: 1, Updated: len(rows) - 1}, nil
			}}
			res, err := testUploader(3, 0).Upload(w, Request{Method: controlfile.Upsert, Rows: rowsOf(10), FileSize: 100, HasHeaderRow: true})
			var rowErr *RowLevelError
			g.Assert(errors.As(err, &rowErr)).IsTrue()
			g.Assert(rowErr.Chunk).Equal(2)
			g.Assert(len(w.upserts)).Equal(2)
			g.Assert(res.Created).Equal(1)
			g.Assert(res.Updated).Equal(2)
			// second row of the second chunk is the fifth data row, on line 6 under the header
			g.Assert(res.Errors[0].Line).Equal(6)
		})
		g.It("Should report row errors on the line the row started on", func() {
			w := &recordingWriter{respond: func(call int, rows []map[string]interface{}) (*Response, error) {
				if call == 2 {
					return &Response{Errors: []RowError{{Index: 1, Message: "bad value"}}}, nil
				}
				return &Response{Created: len(rows)}, nil
			}}
			// blank lines and a row spanning two lines push later rows down
			src := &lineSource{sliceSource: rowsOf(6), lines: []int{2, 3, 5, 6, 9, 10}}
			res, err := testUploader(3, 0).Upload(w, Request{Method: controlfile.Upsert, Rows: src, FileSize: 100, HasHeaderRow: true})
			var rowErr *RowLevelError
			g.Assert(errors.As(err, &rowErr)).IsTrue()
			g.Assert(res.Errors[0].Line).Equal(9)
		})
		g.It("Should abort on transport errors", func() {
			w := &recordingWriter{respond: func(call int, rows []map[string]interface{}) (*Response, error) {
				if call == 2 {
					return nil, errors.New("connection reset")
				}
				return &Response{Created: len(rows)}, nil
			}}
			res, err := testUploader(3, 0).Upload(w, Request{Method: controlfile.Upsert, Rows: rowsOf(10), FileSize: 100})
			var transportErr *TransportError
			g.Assert(errors.As(err, &transportErr)).IsTrue()
			g.Assert(transportErr.Chunk).Equal(2)
			g.Assert(len(w.upserts)).Equal(2)
			g.Assert(res.Created).Equal(3)
		})
		g.It("Should return source errors as they are", func() {
			src := rowsOf(4)
			src.err = errors.New("broken row")
			w := &recordingWriter{}
			res, err := testUploader(3, 0).Upload(w, Request{Method: controlfile.Upsert, Rows: src, FileSize: 100})
			g.Assert(err.Error()).Equal("broken row")
			g.Assert(res.Created).Equal(3)
		})
	})
}

func TestLocate(t *testing.T) {
	cases := []struct {
		re       RowError
		removed  int
		sent     int
		offset   int
		lines    []int
		line     int
		deletion bool
	}{
		{RowError{Index: 0}, 0, 0, 2, nil, 2, false},
		{RowError{Index: 0}, 0, 0, 1, nil, 1, false},
		{RowError{Index: 4}, 0, 10, 3, nil, 17, false},
		{RowError{Index: 1}, 2, 0, 2, nil, 2, true},
		{RowError{Index: 2}, 2, 0, 2, nil, 2, false},
		{RowError{Index: -1}, 0, 10, 2, nil, 0, false},
		{RowError{Index: 1}, 0, 10, 2, []int{14, 17}, 17, false},
		{RowError{Index: 3}, 2, 0, 2, []int{4, 8}, 8, false},
		{RowError{Index: 0}, 1, 0, 2, []int{4}, 1, true},
	}
	for i, c := range cases {
		got := locate(c.re, c.removed, c.sent, c.offset, c.lines)
		if got.Line != c.line || got.Deletion != c.deletion {
			t.Errorf("case %d: expected line %d deletion %v, got %d %v", i, c.line, c.deletion, got.Line, got.Deletion)
		}
	}
}
