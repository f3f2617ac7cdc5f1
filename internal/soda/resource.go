package soda

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cast"

	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

// Upsert creates, updates and deletes rows. Rows carrying the deleted marker are removed.
func (c *Client) Upsert(datasetID string, rows []map[string]interface{}) (*upload.Response, error) {
	return c.write(http.MethodPost, datasetID, rows)
}

// Replace swaps the content of the dataset for rows.
func (c *Client) Replace(datasetID string, rows []map[string]interface{}) (*upload.Response, error) {
	return c.write(http.MethodPut, datasetID, rows)
}

func (c *Client) write(method string, datasetID string, rows []map[string]interface{}) (*upload.Response, error) {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	req, err := c.newRequest(method, fmt.Sprintf("/resource/%s.json", datasetID), rows)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.writer, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("unable to read response for %s: %w", datasetID, err)
	}
	return parseResponse(body), nil
}

func parseResponse(body map[string]interface{}) *upload.Response {
	res := &upload.Response{
		Created: cast.ToInt(body["Rows Created"]),
		Updated: cast.ToInt(body["Rows Updated"]),
		Deleted: cast.ToInt(body["Rows Deleted"]),
	}
	for _, raw := range cast.ToSlice(body["Row Errors"]) {
		e := cast.ToStringMap(raw)
		index := -1
		if v, ok := e["index"]; ok {
			index = cast.ToInt(v)
		}
		res.Errors = append(res.Errors, upload.RowError{Index: index, Message: cast.ToString(e["message"])})
	}
	if failed := cast.ToInt(body["Errors"]); failed > 0 && len(res.Errors) == 0 {
		res.Errors = append(res.Errors, upload.RowError{Index: -1, Message: fmt.Sprintf("%d rows could not be published", failed)})
	}
	return res
}
