package job

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cast"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

// CurrentFileVersion is the version SaveJobFile writes.
const CurrentFileVersion = 2

type jobFile struct {
	FileVersion      int    `json:"fileVersion"`
	Domain           string `json:"domain"`
	DatasetID        string `json:"datasetId"`
	FileToPublish    string `json:"fileToPublish"`
	PublishMethod    string `json:"publishMethod,omitempty"`
	FileHasHeaderRow bool   `json:"fileHasHeaderRow"`
	ControlFile      string `json:"controlFile,omitempty"`
	PublishViaFTP    bool   `json:"publishViaFtp"`
	DeletionFile     string `json:"deletionFile,omitempty"`
}

// upgrades[v] turns a version v document into a version v+1 document.
var upgrades = map[int]func(doc map[string]interface{}) error{
	1: upgradeV1,
}

// upgradeV1 renames the fields of the first job file format and normalises the publish method,
// which was written in any casing.
func upgradeV1(doc map[string]interface{}) error {
	if v, ok := doc["fileToPublishHasHeaderRow"]; ok {
		doc["fileHasHeaderRow"] = cast.ToBool(v)
		delete(doc, "fileToPublishHasHeaderRow")
	}
	if v, ok := doc["pathToControlFile"]; ok {
		doc["controlFile"] = cast.ToString(v)
		delete(doc, "pathToControlFile")
	}
	if v, ok := doc["publishViaFTP"]; ok {
		doc["publishViaFtp"] = cast.ToBool(v)
		delete(doc, "publishViaFTP")
	}
	if v, ok := doc["publishMethod"]; ok && cast.ToString(v) != "" {
		method, err := controlfile.ParseAction(cast.ToString(v))
		if err != nil {
			return err
		}
		doc["publishMethod"] = string(method)
	}
	doc["fileVersion"] = 2
	return nil
}

// ParseJobFile reads a job file of any known version. Documents without a version are version 1.
func ParseJobFile(data []byte) (*Job, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: unable to parse job file: %v", ErrInvalidJob, err)
	}
	version := cast.ToInt(doc["fileVersion"])
	if version == 0 {
		version = 1
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: unknown job file version %d", ErrInvalidJob, version)
	}
	if version > CurrentFileVersion {
		return nil, fmt.Errorf("%w: job file version %d is newer than %d", ErrInvalidJob, version, CurrentFileVersion)
	}
	for ; version < CurrentFileVersion; version++ {
		upgrade, ok := upgrades[version]
		if !ok {
			return nil, fmt.Errorf("%w: no upgrade from job file version %d", ErrInvalidJob, version)
		}
		if err := upgrade(doc); err != nil {
			return nil, fmt.Errorf("%w: unable to upgrade job file from version %d: %v", ErrInvalidJob, version, err)
		}
	}

	upgraded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var f jobFile
	if err := json.Unmarshal(upgraded, &f); err != nil {
		return nil, fmt.Errorf("%w: unable to read job file: %v", ErrInvalidJob, err)
	}
	j := &Job{
		Domain:              f.Domain,
		DatasetID:           f.DatasetID,
		FileToPublish:       f.FileToPublish,
		FileHasHeaderRow:    f.FileHasHeaderRow,
		ControlFileLocation: f.ControlFile,
		PublishViaFTP:       f.PublishViaFTP,
		DeletionFile:        f.DeletionFile,
	}
	if f.PublishMethod != "" {
		if j.PublishMethod, err = controlfile.ParseAction(f.PublishMethod); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
	}
	return j, nil
}

// LoadJobFile reads a job file from a path or url.
func LoadJobFile(loader DocumentLoader, location string) (*Job, error) {
	data, err := loader.Load(location)
	if err != nil {
		return nil, err
	}
	return ParseJobFile(data)
}

// SaveJobFile writes j in the current job file format. An inline control file is not saved.
func SaveJobFile(path string, j *Job) error {
	data, err := json.MarshalIndent(jobFile{
		FileVersion:      CurrentFileVersion,
		Domain:           j.Domain,
		DatasetID:        j.DatasetID,
		FileToPublish:    j.FileToPublish,
		PublishMethod:    string(j.PublishMethod),
		FileHasHeaderRow: j.FileHasHeaderRow,
		ControlFile:      j.ControlFileLocation,
		PublishViaFTP:    j.PublishViaFTP,
		DeletionFile:     j.DeletionFile,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
