package job

import (
	"os"
	"sync"
	"time"

	"github.com/olivere/ndjson"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

// Entry is one line of the run log.
type Entry struct {
	Time      time.Time         `json:"time"`
	Dataset   string            `json:"dataset"`
	File      string            `json:"file"`
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Deleted   int               `json:"deleted"`
	RowErrors []upload.RowError `json:"rowErrors,omitempty"`
}

// RunLog appends the outcome of every run to a newline delimited json file. Without a path nothing
// is written.
type RunLog struct {
	path string
	lock sync.Mutex
}

func NewRunLog(env *conf.Env) *RunLog {
	return &RunLog{path: env.RunLog}
}

func (l *RunLog) Append(o Outcome, at time.Time) error {
	if l == nil || l.path == "" {
		return nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	err = ndjson.NewWriter(f).Encode(Entry{
		Time:      at.UTC(),
		Dataset:   o.DatasetID,
		File:      o.File,
		Kind:      o.Kind,
		Message:   o.Message,
		Created:   o.Created,
		Updated:   o.Updated,
		Deleted:   o.Deleted,
		RowErrors: o.RowErrors,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadRunLog returns every entry of the run log at path, oldest first.
func ReadRunLog(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	var entries []Entry
	r := ndjson.NewReader(f)
	for r.Next() {
		var e Entry
		if err := r.Decode(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, r.Err()
}
