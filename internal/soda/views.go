package soda

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bcicen/jstream"
	"github.com/spf13/cast"

	"github.com/mimiro-io/dataset-publisher/internal/schema"
)

// Schema reads the columns and row identifier of a dataset. Results are cached per domain and dataset.
func (c *Client) Schema(datasetID string) (*schema.DatasetSchema, error) {
	key := c.baseURL + "/" + datasetID
	if cached, ok := c.schemas.GetIfPresent(key); ok {
		return cached.(*schema.DatasetSchema), nil
	}

	req, err := c.newRequest(http.MethodGet, fmt.Sprintf("/api/views/%s.json", datasetID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.reader, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	ds := &schema.DatasetSchema{ID: datasetID}
	var rowIdentifierColumn interface{}
	decoder := jstream.NewDecoder(resp.Body, 1).EmitKV()
	for mv := range decoder.Stream() {
		kv, ok := mv.Value.(jstream.KV)
		if !ok {
			continue
		}
		switch kv.Key {
		case "name":
			ds.Name = cast.ToString(kv.Value)
		case "rowIdentifierColumnId":
			rowIdentifierColumn = kv.Value
		case "columns":
			for _, raw := range cast.ToSlice(kv.Value) {
				col := cast.ToStringMap(raw)
				ds.Columns = append(ds.Columns, schema.Column{
					ID:           cast.ToInt(col["id"]),
					Name:         cast.ToString(col["name"]),
					FieldName:    cast.ToString(col["fieldName"]),
					DataTypeName: cast.ToString(col["dataTypeName"]),
				})
			}
		}
	}
	if err := decoder.Err(); err != nil {
		return nil, fmt.Errorf("unable to read schema of %s: %w", datasetID, err)
	}
	if rowIdentifierColumn != nil {
		id := cast.ToInt(rowIdentifierColumn)
		for _, col := range ds.Columns {
			if col.ID == id {
				ds.RowIdentifier = col.FieldName
			}
		}
	}
	c.logger.Debugw("Read schema", "dataset", datasetID, "columns", len(ds.Columns), "rowIdentifier", ds.RowIdentifier)
	c.schemas.Put(key, ds)
	return ds, nil
}

// SupportedEncodings lists the charsets the service accepts for imports.
func (c *Client) SupportedEncodings() ([]string, error) {
	req, err := c.newRequest(http.MethodGet, "/api/imports2.json?method=encodings", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.reader, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var encodings []string
	if err := json.NewDecoder(resp.Body).Decode(&encodings); err != nil {
		return nil, err
	}
	return encodings, nil
}

// Region reads the region the domain is hosted in from its version endpoint.
func (c *Client) Region(domain string) (string, error) {
	target := c.ForDomain(domain)
	req, err := target.newRequest(http.MethodGet, "/api/version.json", nil)
	if err != nil {
		return "", err
	}
	resp, err := target.do(target.reader, req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	region := resp.Header.Get(regionHeader)
	if region == "" {
		return "", fmt.Errorf("%s did not report a region", Host(domain))
	}
	return region, nil
}
