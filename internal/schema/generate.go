package schema

import "github.com/mimiro-io/dataset-publisher/internal/controlfile"

// GenerateControlFile builds a control file with default settings for publishing to ds. Files without
// a header row get the dataset's columns declared explicitly.
func GenerateControlFile(ds *DatasetSchema, action controlfile.Action, fileType string, hasHeader bool) *controlfile.ControlFile {
	cf := controlfile.NewDefault(action, fileType)
	if hasHeader {
		return cf
	}
	columns := ds.FieldNames()
	if action == controlfile.Delete && ds.HasRowIdentifier() {
		columns = []string{ds.RowIdentifier}
	}
	ftc := cf.Csv
	if ftc == nil {
		ftc = cf.Tsv
	}
	ftc.Columns = columns
	return cf
}
