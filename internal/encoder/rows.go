package encoder

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
	"github.com/mimiro-io/dataset-publisher/internal/schema"
)

const (
	floatingLayout = "2006-01-02T15:04:05.000"
	fixedLayout    = time.RFC3339
)

var (
	floatingTypes = map[string]bool{"calendar_date": true, "floating_timestamp": true}
	fixedTypes    = map[string]bool{"date": true, "fixed_timestamp": true}
)

// RowReader streams the data rows of a delimited file as field name to value maps, ready to be sent
// to a dataset.
type RowReader struct {
	file      *os.File
	records   *recordReader
	ftc       *controlfile.FileTypeControl
	headers   []string
	fields    []string
	types     []string
	location  *time.Location
	// synthetic column names as the dataset spells them
	synthetic map[string]string
}

func openRecords(path string, ftc *controlfile.FileTypeControl, fileType string) (*os.File, *recordReader, error) {
	charset, err := controlfile.Charset(ftc.Encoding)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	records := newRecordReader(charset.NewDecoder().Reader(f), ftc, fileType)
	for i := 0; i < ftc.Skip; i++ {
		if _, err := records.Read(); err != nil {
			_ = f.Close()
			if err == io.EOF {
				return nil, nil, fmt.Errorf("file %s has fewer than %d rows to skip", path, ftc.Skip)
			}
			return nil, nil, err
		}
	}
	return f, records, nil
}

// ReadHeader returns the first row after the skipped ones.
func ReadHeader(path string, ftc *controlfile.FileTypeControl, fileType string) ([]string, error) {
	f, records, err := openRecords(path, ftc, fileType)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	header, err := records.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file %s has no header row", path)
	}
	return header, err
}

func NewRowReader(path string, ftc *controlfile.FileTypeControl, fileType string, ds *schema.DatasetSchema) (*RowReader, error) {
	f, records, err := openRecords(path, ftc, fileType)
	if err != nil {
		return nil, err
	}
	rr := &RowReader{
		file:     f,
		records:  records,
		ftc:      ftc,
		location: time.UTC,
	}
	if ftc.Timezone != "" {
		if rr.location, err = time.LoadLocation(ftc.Timezone); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if ftc.HasHeaderRow() {
		if rr.headers, err = records.Read(); err != nil {
			_ = f.Close()
			if err == io.EOF {
				return nil, fmt.Errorf("file %s has no header row", path)
			}
			return nil, err
		}
	} else {
		rr.headers = ftc.Columns
	}

	rr.fields = make([]string, len(rr.headers))
	rr.types = make([]string, len(rr.headers))
	for i, h := range rr.headers {
		if ftc.IsIgnored(h) {
			continue
		}
		rr.fields[i] = h
		if ds == nil {
			continue
		}
		if col, ok := ds.Column(h); ok {
			rr.fields[i] = col.FieldName
			rr.types[i] = strings.ToLower(col.DataTypeName)
		}
	}

	rr.synthetic = make(map[string]string, len(ftc.SyntheticLocations)+len(ftc.SyntheticPoints))
	for _, columns := range []map[string]controlfile.SyntheticColumn{ftc.SyntheticLocations, ftc.SyntheticPoints} {
		for name := range columns {
			rr.synthetic[name] = name
			if ds == nil {
				continue
			}
			if col, ok := ds.Column(name); ok {
				rr.synthetic[name] = col.FieldName
			}
		}
	}
	return rr, nil
}

// Next returns the next row, or io.EOF when the file is exhausted.
func (rr *RowReader) Next() (map[string]interface{}, error) {
	record, err := rr.records.Read()
	for err == nil && blank(record) && len(rr.headers) > 1 {
		record, err = rr.records.Read()
	}
	if err != nil {
		return nil, err
	}
	if len(record) != len(rr.headers) {
		return nil, &ParseError{
			Line:    rr.records.Line(),
			Message: fmt.Sprintf("expected %d columns but found %d", len(rr.headers), len(record)),
		}
	}

	raw := make(map[string]string, len(record))
	row := make(map[string]interface{}, len(record))
	for i, value := range record {
		if rr.ftc.TrimWhitespace {
			value = strings.TrimSpace(value)
		}
		raw[rr.headers[i]] = value
		if rr.fields[i] == "" {
			continue
		}
		row[rr.fields[i]] = rr.convert(value, rr.types[i])
	}
	for name, sc := range rr.ftc.SyntheticLocations {
		row[rr.synthetic[name]] = locationValue(sc, raw)
	}
	for name, sc := range rr.ftc.SyntheticPoints {
		row[rr.synthetic[name]] = pointValue(sc, raw, rr.ftc.UseSocrataGeocoding)
	}
	return row, nil
}

// Line is the physical line the last row started on.
func (rr *RowReader) Line() int {
	return rr.records.Line()
}

func (rr *RowReader) Close() error {
	return rr.file.Close()
}

func (rr *RowReader) convert(value string, dataType string) interface{} {
	if value == "" && rr.ftc.EmptyTextIsNull {
		return nil
	}
	switch {
	case floatingTypes[dataType]:
		if t, ok := controlfile.ParseTimestamp(value, rr.ftc.FloatingTimestampFormat, time.UTC); ok {
			return t.Format(floatingLayout)
		}
	case fixedTypes[dataType]:
		if t, ok := controlfile.ParseTimestamp(value, rr.ftc.FixedTimestampFormat, rr.location); ok {
			return t.Format(fixedLayout)
		}
	}
	return value
}
