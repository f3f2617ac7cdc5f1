package encoder

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

// ParseError points at the physical line of a record that could not be read.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// recordReader splits delimited text into records. Unlike encoding/csv it supports any quote and escape
// character, and an escape that differs from the quote.
type recordReader struct {
	r         *bufio.Reader
	separator rune
	quote     rune
	escape    rune
	line      int
	next      int
}

func newRecordReader(r io.Reader, ftc *controlfile.FileTypeControl, fileType string) *recordReader {
	rr := &recordReader{
		r:         bufio.NewReader(r),
		separator: ',',
		quote:     '"',
		next:      1,
	}
	if strings.EqualFold(fileType, controlfile.FileTypeTSV) {
		rr.separator = '\t'
	}
	if ftc != nil {
		if s := ftc.Separator; s == `\t` {
			rr.separator = '\t'
		} else if s != "" {
			rr.separator, _ = utf8.DecodeRuneInString(s)
		}
		if ftc.Quote != "" {
			rr.quote, _ = utf8.DecodeRuneInString(ftc.Quote)
		}
		if ftc.Escape != "" {
			rr.escape, _ = utf8.DecodeRuneInString(ftc.Escape)
		}
	}
	if rr.escape == 0 {
		rr.escape = rr.quote
	}
	if first, _, err := rr.r.ReadRune(); err == nil && first != '\uFEFF' {
		_ = rr.r.UnreadRune()
	}
	return rr
}

// Line is the physical line the last record started on.
func (rr *recordReader) Line() int {
	return rr.line
}

// Read returns the next record, io.EOF after the last one.
func (rr *recordReader) Read() ([]string, error) {
	var fields []string
	var field strings.Builder
	inQuotes := false
	started := false
	rr.line = rr.next

	for {
		r, _, err := rr.r.ReadRune()
		if err == io.EOF {
			if inQuotes {
				return nil, &ParseError{Line: rr.line, Message: "unterminated quoted field"}
			}
			if !started {
				return nil, io.EOF
			}
			return append(fields, field.String()), nil
		}
		if err != nil {
			return nil, err
		}
		started = true

		if inQuotes {
			switch {
			case r == rr.escape && rr.escape != rr.quote:
				n, err := rr.escaped()
				if err != nil {
					return nil, &ParseError{Line: rr.line, Message: "unterminated quoted field"}
				}
				field.WriteRune(n)
			case r == rr.quote:
				n, _, err := rr.r.ReadRune()
				if err == nil && n == rr.quote {
					field.WriteRune(rr.quote)
					continue
				}
				if err == nil {
					_ = rr.r.UnreadRune()
				}
				inQuotes = false
			default:
				if r == '\n' {
					rr.next++
				}
				field.WriteRune(r)
			}
			continue
		}

		switch {
		case r == rr.quote && strings.TrimSpace(field.String()) == "":
			field.Reset()
			inQuotes = true
		case r == rr.escape && rr.escape != rr.quote:
			if n, err := rr.escaped(); err == nil {
				field.WriteRune(n)
			}
		case r == rr.separator:
			fields = append(fields, field.String())
			field.Reset()
		case r == '\r':
			if n, _, err := rr.r.ReadRune(); err == nil && n != '\n' {
				_ = rr.r.UnreadRune()
			}
			rr.next++
			return append(fields, field.String()), nil
		case r == '\n':
			rr.next++
			return append(fields, field.String()), nil
		default:
			field.WriteRune(r)
		}
	}
}

// escaped reads the rune after an escape. An escaped line break is kept as a single newline and
// still counts towards the line number.
func (rr *recordReader) escaped() (rune, error) {
	n, _, err := rr.r.ReadRune()
	if err != nil {
		return 0, err
	}
	switch n {
	case '\r':
		if m, _, err := rr.r.ReadRune(); err == nil && m != '\n' {
			_ = rr.r.UnreadRune()
		}
		rr.next++
		return '\n', nil
	case '\n':
		rr.next++
	}
	return n, nil
}

func blank(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}
