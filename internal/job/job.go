package job

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

var (
	ErrInvalidJob = errors.New("invalid job")

	datasetIDPattern = regexp.MustCompile(`^[a-z0-9]{4}-[a-z0-9]{4}$`)
)

// Job is one file to publish into one dataset.
type Job struct {
	Domain        string
	DatasetID     string
	FileToPublish string
	// PublishMethod may be left empty when the control file names the action.
	PublishMethod    controlfile.Action
	FileHasHeaderRow bool
	// ControlFileLocation is a path or url, ControlFile an already parsed control file. ControlFile
	// wins when both are set.
	ControlFileLocation string
	ControlFile         *controlfile.ControlFile
	PublishViaFTP       bool
	DeletionFile        string
}

// FileType is the extension of the file to publish, without the dot.
func (j *Job) FileType() string {
	location := j.FileToPublish
	if i := strings.IndexAny(location, "?#"); i >= 0 && strings.Contains(location, "://") {
		location = location[:i]
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(location)), ".")
}

// Validate checks the parameters of the job that can be checked without touching any file.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Domain) == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidJob)
	}
	if !datasetIDPattern.MatchString(j.DatasetID) {
		return fmt.Errorf("%w: dataset id %q must look like abcd-1234", ErrInvalidJob, j.DatasetID)
	}
	if strings.TrimSpace(j.FileToPublish) == "" {
		return fmt.Errorf("%w: no file to publish", ErrInvalidJob)
	}
	switch j.FileType() {
	case controlfile.FileTypeCSV, controlfile.FileTypeTSV:
	default:
		return fmt.Errorf("%w: %s must be a .csv or .tsv file", ErrInvalidJob, j.FileToPublish)
	}
	if j.PublishMethod != "" && !j.PublishMethod.Valid() {
		return fmt.Errorf("%w: unknown publish method %q", ErrInvalidJob, j.PublishMethod)
	}
	if j.PublishViaFTP {
		if j.PublishMethod != "" && j.PublishMethod != controlfile.Replace {
			return fmt.Errorf("%w: the ftp dropbox only supports replace, not %s", ErrInvalidJob, j.PublishMethod)
		}
		if j.ControlFile == nil && j.ControlFileLocation == "" {
			return fmt.Errorf("%w: publishing through the ftp dropbox needs a control file", ErrInvalidJob)
		}
		if j.DeletionFile != "" {
			return fmt.Errorf("%w: deletion files are not supported by the ftp dropbox", ErrInvalidJob)
		}
	}
	if j.PublishMethod == "" && j.ControlFile == nil && j.ControlFileLocation == "" {
		return fmt.Errorf("%w: either a publish method or a control file is required", ErrInvalidJob)
	}
	return nil
}
