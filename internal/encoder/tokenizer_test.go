package encoder

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

func readAll(t *testing.T, input string, ftc *controlfile.FileTypeControl, fileType string) [][]string {
	t.Helper()
	rr := newRecordReader(strings.NewReader(input), ftc, fileType)
	var res [][]string
	for {
		rec, err := rr.Read()
		if err == io.EOF {
			return res
		}
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, rec)
	}
}

func TestRecordReader(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		ftc      *controlfile.FileTypeControl
		fileType string
		expected [][]string
	}{
		{
			name:     "plain csv",
			input:    "a,b\n1,2\n",
			expected: [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:     "doubled quotes and embedded newline",
			input:    "\"say \"\"hi\"\"\",\"two\nlines\"\r\nx,y",
			expected: [][]string{{`say "hi"`, "two\nlines"}, {"x", "y"}},
		},
		{
			name:     "custom quote and escape",
			input:    "'it\\'s',b;c\n",
			ftc:      &controlfile.FileTypeControl{Separator: ",", Quote: "'", Escape: "\\"},
			expected: [][]string{{"it's", "b;c"}},
		},
		{
			name:     "tab separated",
			input:    "a\tb,c\n",
			fileType: "tsv",
			expected: [][]string{{"a", "b,c"}},
		},
		{
			name:     "escaped tab separator",
			input:    "a\tb\n",
			ftc:      &controlfile.FileTypeControl{Separator: `\t`},
			expected: [][]string{{"a", "b"}},
		},
		{
			name:     "byte order mark",
			input:    "\uFEFFid,name\n",
			expected: [][]string{{"id", "name"}},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fileType := c.fileType
			if fileType == "" {
				fileType = "csv"
			}
			got := readAll(t, c.input, c.ftc, fileType)
			if len(got) != len(c.expected) {
				t.Fatalf("expected %v, got %v", c.expected, got)
			}
			for i := range got {
				if strings.Join(got[i], "|") != strings.Join(c.expected[i], "|") {
					t.Errorf("record %d: expected %q, got %q", i, c.expected[i], got[i])
				}
			}
		})
	}
}

func TestRecordReaderLines(t *testing.T) {
	rr := newRecordReader(strings.NewReader("a,\"b\nc\"\nd,e\n"), nil, "csv")
	if _, err := rr.Read(); err != nil || rr.Line() != 1 {
		t.Fatalf("expected line 1, got %d (%v)", rr.Line(), err)
	}
	if _, err := rr.Read(); err != nil || rr.Line() != 3 {
		t.Fatalf("expected line 3, got %d (%v)", rr.Line(), err)
	}
}

func TestRecordReaderEscapedLineBreaks(t *testing.T) {
	ftc := controlfile.NewDefault(controlfile.Upsert, "csv").Csv
	ftc.Escape = "\\"
	rr := newRecordReader(strings.NewReader("a\\\nb,c\nd\\\r\ne,f\ng,h\n"), ftc, "csv")
	expected := []struct {
		record []string
		line   int
	}{
		{[]string{"a\nb", "c"}, 1},
		{[]string{"d\ne", "f"}, 3},
		{[]string{"g", "h"}, 5},
	}
	for i, e := range expected {
		rec, err := rr.Read()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if strings.Join(rec, "|") != strings.Join(e.record, "|") || rr.Line() != e.line {
			t.Errorf("record %d: expected %q on line %d, got %q on line %d", i, e.record, e.line, rec, rr.Line())
		}
	}
}

func TestRecordReaderUnterminated(t *testing.T) {
	rr := newRecordReader(strings.NewReader("a,\"b\n"), nil, "csv")
	_, err := rr.Read()
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 1 {
		t.Errorf("expected a parse error on line 1, got %v", err)
	}
}
