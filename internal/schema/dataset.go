package schema

import "strings"

// Column is one field of a remote dataset.
type Column struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	FieldName    string `json:"fieldName"`
	DataTypeName string `json:"dataTypeName"`
}

// DatasetSchema is the read-only view of a remote dataset's columns.
type DatasetSchema struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Columns       []Column `json:"columns"`
	RowIdentifier string   `json:"rowIdentifier,omitempty"`
}

func (ds *DatasetSchema) HasRowIdentifier() bool {
	return ds.RowIdentifier != ""
}

// Column looks up a column by field name, ignoring case.
func (ds *DatasetSchema) Column(fieldName string) (Column, bool) {
	for _, c := range ds.Columns {
		if strings.EqualFold(c.FieldName, fieldName) {
			return c, true
		}
	}
	return Column{}, false
}

func (ds *DatasetSchema) FieldNames() []string {
	names := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		names = append(names, c.FieldName)
	}
	return names
}
