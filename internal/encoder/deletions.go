package encoder

import (
	"io"
	"os"
	"strings"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

// ReadDeletionIDs reads row identifiers from the first column of a delimited file. A first row holding
// the identifier column name is treated as a header.
func ReadDeletionIDs(path string, rowIdentifier string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	fileType := controlfile.FileTypeCSV
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		fileType = controlfile.FileTypeTSV
	}
	records := newRecordReader(f, nil, fileType)
	var ids []string
	first := true
	for {
		record, err := records.Read()
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		if blank(record) {
			continue
		}
		id := strings.TrimSpace(record[0])
		if first && strings.EqualFold(id, rowIdentifier) {
			first = false
			continue
		}
		first = false
		ids = append(ids, id)
	}
}
