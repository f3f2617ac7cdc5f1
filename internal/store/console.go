package store

import (
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

// ConsoleStorage logs the rows it is given instead of sending them anywhere. Used for dry runs.
type ConsoleStorage struct {
	Logger *zap.SugaredLogger
}

func NewConsoleStorage(logger *zap.SugaredLogger) *ConsoleStorage {
	return &ConsoleStorage{Logger: logger.Named("console-store")}
}

func (consoleStorage *ConsoleStorage) Upsert(datasetID string, rows []map[string]interface{}) (*upload.Response, error) {
	res := &upload.Response{}
	for _, row := range rows {
		if deleted, ok := row[upload.DeletedKey].(bool); ok && deleted {
			res.Deleted++
		} else {
			res.Created++
		}
	}
	consoleStorage.log("upsert", datasetID, rows)
	return res, nil
}

func (consoleStorage *ConsoleStorage) Replace(datasetID string, rows []map[string]interface{}) (*upload.Response, error) {
	consoleStorage.log("replace", datasetID, rows)
	return &upload.Response{Created: len(rows)}, nil
}

func (consoleStorage *ConsoleStorage) log(method string, datasetID string, rows []map[string]interface{}) {
	consoleStorage.Logger.Infof("Got: %d rows to %s into %s", len(rows), method, datasetID)
	for _, row := range rows {
		consoleStorage.Logger.Debugw("Row", "dataset", datasetID, "row", row)
	}
}
