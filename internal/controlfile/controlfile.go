package controlfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	FileTypeCSV = "csv"
	FileTypeTSV = "tsv"

	// ISO8601 is accepted in place of a date-time pattern and matches any ISO-8601 timestamp.
	ISO8601 = "ISO8601"
)

var (
	ErrMissingFileTypeBlock = errors.New("control file has no settings for the file type")
	ErrAmbiguousFileType    = errors.New("control file declares both csv and tsv settings")
)

type ControlFile struct {
	Action Action           `json:"action"`
	Csv    *FileTypeControl `json:"csv,omitempty"`
	Tsv    *FileTypeControl `json:"tsv,omitempty"`
}

type FileTypeControl struct {
	UseSocrataGeocoding     bool                       `json:"useSocrataGeocoding"`
	Columns                 []string                   `json:"columns"`
	Skip                    int                        `json:"skip"`
	FixedTimestampFormat    []string                   `json:"fixedTimestampFormat,omitempty"`
	FloatingTimestampFormat []string                   `json:"floatingTimestampFormat,omitempty"`
	Timezone                string                     `json:"timezone,omitempty"`
	Separator               string                     `json:"separator"`
	Quote                   string                     `json:"quote"`
	Escape                  string                     `json:"escape"`
	Encoding                string                     `json:"encoding"`
	EmptyTextIsNull         bool                       `json:"emptyTextIsNull"`
	TrimWhitespace          bool                       `json:"trimWhitespace"`
	IgnoreColumns           []string                   `json:"ignoreColumns,omitempty"`
	SyntheticLocations      map[string]SyntheticColumn `json:"syntheticLocations,omitempty"`
	SyntheticPoints         map[string]SyntheticColumn `json:"syntheticPoints,omitempty"`
}

// SyntheticColumn names the source columns a location or point value is assembled from.
type SyntheticColumn struct {
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// Component is one named part of a synthetic column and the source column it reads from.
type Component struct {
	Name   string
	Column string
}

// Components returns the populated components in a stable order.
func (s SyntheticColumn) Components() []Component {
	all := []Component{
		{"address", s.Address},
		{"city", s.City},
		{"state", s.State},
		{"zip", s.Zip},
		{"country", s.Country},
		{"latitude", s.Latitude},
		{"longitude", s.Longitude},
	}
	res := make([]Component, 0, len(all))
	for _, c := range all {
		if c.Column != "" {
			res = append(res, c)
		}
	}
	return res
}

func Parse(data []byte) (*ControlFile, error) {
	cf := &ControlFile{}
	if err := json.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("unable to parse control file: %w", err)
	}
	return cf, nil
}

func Marshal(cf *ControlFile) ([]byte, error) {
	return json.MarshalIndent(cf, "", "  ")
}

// FileTypeControl returns the settings block for the given file type. Exactly one block must be present
// and it must match the file type.
func (cf *ControlFile) FileTypeControl(fileType string) (*FileTypeControl, error) {
	if cf.Csv != nil && cf.Tsv != nil {
		return nil, ErrAmbiguousFileType
	}
	switch strings.ToLower(fileType) {
	case FileTypeCSV:
		if cf.Csv != nil {
			return cf.Csv, nil
		}
	case FileTypeTSV:
		if cf.Tsv != nil {
			return cf.Tsv, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingFileTypeBlock, fileType)
}

// HasHeaderRow reports whether the header row of the file carries the column names.
func (ftc *FileTypeControl) HasHeaderRow() bool {
	return ftc.Columns == nil
}

// IsIgnored matches the ignore list exactly, casing included.
func (ftc *FileTypeControl) IsIgnored(column string) bool {
	for _, c := range ftc.IgnoreColumns {
		if c == column {
			return true
		}
	}
	return false
}

// NewDefault returns the settings a generated control file carries for the file type.
func NewDefault(action Action, fileType string) *ControlFile {
	ftc := &FileTypeControl{
		UseSocrataGeocoding:     true,
		FixedTimestampFormat:    DefaultTimestampFormats(),
		FloatingTimestampFormat: DefaultTimestampFormats(),
		Timezone:                "UTC",
		Separator:               ",",
		Quote:                   "\"",
		Escape:                  "\"",
		Encoding:                "utf-8",
		EmptyTextIsNull:         true,
		TrimWhitespace:          true,
	}
	cf := &ControlFile{Action: action}
	if strings.EqualFold(fileType, FileTypeTSV) {
		ftc.Separator = "\t"
		cf.Tsv = ftc
	} else {
		cf.Csv = ftc
	}
	return cf
}

func DefaultTimestampFormats() []string {
	return []string{ISO8601, "MM/dd/yy", "MM/dd/yyyy", "dd-MMM-yyyy", "MM/dd/yyyy hh:mm:ss a", "MM/dd/yyyy HH:mm:ss"}
}
