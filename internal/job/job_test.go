package job

import (
	"errors"
	"testing"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
	"github.com/mimiro-io/dataset-publisher/internal/dropbox"
	"github.com/mimiro-io/dataset-publisher/internal/encoder"
	"github.com/mimiro-io/dataset-publisher/internal/schema"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

func validJob() Job {
	return Job{Domain: "data.example.org", DatasetID: "abcd-1234", FileToPublish: "trees.csv", PublishMethod: controlfile.Upsert}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(j *Job){
		"empty domain":         func(j *Job) { j.Domain = " " },
		"bad dataset id":       func(j *Job) { j.DatasetID = "ABCD-1234" },
		"short dataset id":     func(j *Job) { j.DatasetID = "abc-1234" },
		"no file":              func(j *Job) { j.FileToPublish = "" },
		"wrong extension":      func(j *Job) { j.FileToPublish = "trees.xlsx" },
		"unknown method":       func(j *Job) { j.PublishMethod = "Merge" },
		"ftp upsert":           func(j *Job) { j.PublishViaFTP = true; j.ControlFileLocation = "control.json" },
		"ftp without control":  func(j *Job) { j.PublishViaFTP = true; j.PublishMethod = controlfile.Replace },
		"ftp with deletions":   func(j *Job) { j.PublishViaFTP = true; j.PublishMethod = controlfile.Replace; j.ControlFileLocation = "c.json"; j.DeletionFile = "d.csv" },
		"no method or control": func(j *Job) { j.PublishMethod = "" },
	}
	for name, change := range cases {
		j := validJob()
		change(&j)
		if err := j.Validate(); !errors.Is(err, ErrInvalidJob) {
			t.Errorf("%s: expected invalid job, got %v", name, err)
		}
	}

	j := validJob()
	if err := j.Validate(); err != nil {
		t.Errorf("expected valid job, got %v", err)
	}
	j.FileToPublish = "s3://bucket/exports/TREES.TSV"
	j.PublishMethod = ""
	j.ControlFileLocation = "control.json"
	if err := j.Validate(); err != nil {
		t.Errorf("expected valid job, got %v", err)
	}
	j.PublishViaFTP = true
	j.PublishMethod = controlfile.Replace
	if err := j.Validate(); err != nil {
		t.Errorf("expected valid ftp job, got %v", err)
	}
}

func TestFileType(t *testing.T) {
	cases := map[string]string{
		"trees.csv":                         "csv",
		"/data/Trees.TSV":                   "tsv",
		"azure://exports/trees.csv?sv=2020": "csv",
		"trees":                             "",
	}
	for location, expected := range cases {
		j := Job{FileToPublish: location}
		if got := j.FileType(); got != expected {
			t.Errorf("%s: expected %q, got %q", location, expected, got)
		}
	}
}

func TestAgree(t *testing.T) {
	j := validJob()
	cf := &controlfile.ControlFile{}
	method, err := agree(&j, cf)
	if err != nil || method != controlfile.Upsert || cf.Action != controlfile.Upsert {
		t.Errorf("expected the job method to fill in the action, got %v %v", method, err)
	}

	j.PublishMethod = controlfile.Replace
	if _, err := agree(&j, &controlfile.ControlFile{Action: controlfile.Upsert}); kindOf(err) != Validation {
		t.Errorf("expected disagreement to fail validation, got %v", err)
	}

	j.PublishMethod = ""
	j.PublishViaFTP = true
	if _, err := agree(&j, &controlfile.ControlFile{Action: controlfile.Append}); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("expected ftp append to be rejected, got %v", err)
	}
	if _, err := agree(&j, &controlfile.ControlFile{Action: "Merge"}); kindOf(err) != Validation {
		t.Errorf("expected unknown action to fail validation, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err      error
		kind     Kind
		category Category
		code     int
	}{
		{err: ErrInvalidJob, kind: Validation, category: CategoryValidation, code: 1},
		{err: &schema.ValidationError{Code: schema.ExtraColumn}, kind: Validation, category: CategoryValidation, code: 1},
		{err: &encoder.ParseError{Line: 3}, kind: Validation, category: CategoryValidation, code: 1},
		{err: &upload.TransportError{Chunk: 2, Err: errors.New("timeout")}, kind: Transport, category: CategoryTransport, code: 2},
		{err: &upload.RowLevelError{Chunk: 1}, kind: RowLevel, category: CategoryTransport, code: 3},
		{err: &dropbox.Error{Kind: dropbox.KindConnect}, kind: Transport, category: CategoryTransport, code: 2},
		{err: &dropbox.Error{Kind: dropbox.KindSizeMismatch}, kind: Transport, category: CategoryTransport, code: 2},
		{err: &dropbox.Error{Kind: dropbox.KindStatusFailure}, kind: Protocol, category: CategoryTransport, code: 4},
		{err: &dropbox.Error{Kind: dropbox.KindPollExhausted}, kind: Protocol, category: CategoryTransport, code: 4},
		{err: errors.New("boom"), kind: Transport, category: CategoryTransport, code: 2},
	}
	j := validJob()
	for _, c := range cases {
		o := failed(&j, &upload.UpsertResult{Created: 4}, c.err)
		if o.Kind != c.kind || o.Category() != c.category || o.ExitCode() != c.code {
			t.Errorf("%v: got %s %s %d", c.err, o.Kind, o.Category(), o.ExitCode())
		}
		if o.Created != 4 || o.Success() {
			t.Errorf("%v: partial counts lost", c.err)
		}
	}

	o := succeeded(&j, &upload.UpsertResult{Created: 1, Updated: 2}, "")
	if !o.Success() || o.ExitCode() != 0 || o.Category() != CategorySuccess || o.Message == "" {
		t.Errorf("unexpected success outcome %v", o)
	}
}
