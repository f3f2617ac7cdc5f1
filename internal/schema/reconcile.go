package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/juliangruber/go-intersect"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

// Request carries everything a reconciliation looks at. RawHeaders is the header row parsed from the
// file and is ignored when the control file declares its columns. SupportedEncodings is the remote
// charset catalog; nil means it could not be fetched and only the local charset check applies.
type Request struct {
	Schema             *DatasetSchema
	Control            *controlfile.ControlFile
	FileType           string
	RawHeaders         []string
	SupportedEncodings []string
}

type Result struct {
	RawHeaders          []string
	IntermediateHeaders []string
	FinalHeaders        []string
	// SyntheticFields maps every synthetic field name to the block it was declared in.
	SyntheticFields map[string]string
}

const (
	syntheticLocation = "location"
	syntheticPoint    = "point"
)

var componentTypes = map[string][]string{
	"zip":       {"text", "number", "numeric"},
	"latitude":  {"text", "number", "numeric"},
	"longitude": {"text", "number", "numeric"},
}

// Reconcile checks that the file described by the control file can be published to the dataset.
// Checks run in a fixed order and the first failure is returned.
func Reconcile(req Request) (*Result, error) {
	cf := req.Control
	if cf == nil {
		return nil, newValidationError(InvalidControlFile, "no control file given")
	}
	ftc, err := cf.FileTypeControl(req.FileType)
	if err != nil {
		return nil, newValidationError(InvalidControlFile, "%s", err.Error())
	}

	res := &Result{SyntheticFields: map[string]string{}}
	if ftc.Columns != nil {
		res.RawHeaders = append([]string{}, ftc.Columns...)
	} else {
		res.RawHeaders = append([]string{}, req.RawHeaders...)
	}
	for _, h := range res.RawHeaders {
		if !ftc.IsIgnored(h) {
			res.IntermediateHeaders = append(res.IntermediateHeaders, h)
		}
	}
	res.FinalHeaders = append([]string{}, res.IntermediateHeaders...)
	for _, name := range sortedKeys(ftc.SyntheticLocations) {
		res.FinalHeaders = append(res.FinalHeaders, name)
		res.SyntheticFields[name] = syntheticLocation
	}
	for _, name := range sortedKeys(ftc.SyntheticPoints) {
		res.FinalHeaders = append(res.FinalHeaders, name)
		res.SyntheticFields[name] = syntheticPoint
	}

	checks := []func(*Request, *controlfile.FileTypeControl, *Result) error{
		checkAction,
		checkRowIdentifierForDelete,
		checkSyntheticCollisions,
		checkComponentsPresent,
		checkComponentTypes,
		checkExtraColumns,
		checkMissingColumns,
		checkTimestamps,
		checkEncoding,
	}
	for _, check := range checks {
		if err := check(&req, ftc, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func checkAction(req *Request, _ *controlfile.FileTypeControl, _ *Result) error {
	if !req.Control.Action.Valid() {
		return newValidationError(InvalidAction, "unknown action %q, must be one of Replace, Upsert, Append or Delete", req.Control.Action)
	}
	return nil
}

func checkRowIdentifierForDelete(req *Request, _ *controlfile.FileTypeControl, _ *Result) error {
	if req.Control.Action == controlfile.Delete && !req.Schema.HasRowIdentifier() {
		return newValidationError(NoRowIdentifier, "dataset %s has no row identifier for delete", req.Schema.ID)
	}
	return nil
}

func checkSyntheticCollisions(_ *Request, _ *controlfile.FileTypeControl, res *Result) error {
	seen := map[string]bool{}
	for _, h := range res.IntermediateHeaders {
		seen[strings.ToLower(h)] = true
	}
	for _, name := range res.FinalHeaders[len(res.IntermediateHeaders):] {
		if seen[strings.ToLower(name)] {
			return newValidationError(AmbiguousColumn, "synthetic column %q has the same name as a column in the file", name)
		}
		seen[strings.ToLower(name)] = true
	}
	return nil
}

func checkComponentsPresent(_ *Request, ftc *controlfile.FileTypeControl, res *Result) error {
	raw := map[string]bool{}
	for _, h := range res.RawHeaders {
		raw[h] = true
	}
	var missing []string
	forEachComponent(ftc, func(field string, c controlfile.Component) {
		if !raw[c.Column] {
			missing = append(missing, fmt.Sprintf("synthetic column %q references %s column %q which is not in the file", field, c.Name, c.Column))
		}
	})
	if len(missing) > 0 {
		return &ValidationError{Code: MissingComponent, Message: "synthetic columns reference missing columns", Details: missing}
	}
	return nil
}

// checkComponentTypes only looks at components that are themselves dataset columns.
func checkComponentTypes(req *Request, ftc *controlfile.FileTypeControl, _ *Result) error {
	var bad []string
	forEachComponent(ftc, func(field string, c controlfile.Component) {
		col, ok := req.Schema.Column(c.Column)
		if !ok {
			return
		}
		allowed, ok := componentTypes[c.Name]
		if !ok {
			allowed = []string{"text"}
		}
		for _, a := range allowed {
			if strings.EqualFold(a, col.DataTypeName) {
				return
			}
		}
		bad = append(bad, fmt.Sprintf("%s column %q of synthetic column %q has type %q, expected one of %s",
			c.Name, c.Column, field, col.DataTypeName, strings.Join(allowed, ", ")))
	})
	if len(bad) > 0 {
		return &ValidationError{Code: UnsupportedComponent, Message: "synthetic column components have unsupported types", Details: bad}
	}
	return nil
}

func checkExtraColumns(req *Request, _ *controlfile.FileTypeControl, res *Result) error {
	known := map[string]bool{}
	for _, v := range intersect.Hash(lower(res.FinalHeaders), lower(req.Schema.FieldNames())) {
		known[v.(string)] = true
	}
	for _, h := range res.FinalHeaders {
		if known[strings.ToLower(h)] {
			continue
		}
		if kind, ok := res.SyntheticFields[h]; ok {
			return newValidationError(UnknownSyntheticTarget, "synthetic %s column %q does not exist in dataset %s", kind, h, req.Schema.ID)
		}
		return newValidationError(ExtraColumn, "column %q in the file does not exist in dataset %s", h, req.Schema.ID)
	}
	return nil
}

func checkMissingColumns(req *Request, _ *controlfile.FileTypeControl, res *Result) error {
	present := map[string]bool{}
	for _, h := range res.FinalHeaders {
		present[strings.ToLower(h)] = true
	}
	if req.Schema.HasRowIdentifier() {
		if !present[strings.ToLower(req.Schema.RowIdentifier)] {
			return newValidationError(MissingRowIdentifier, "the file must contain the row identifier column %q", req.Schema.RowIdentifier)
		}
		return nil
	}
	var missing []string
	for _, f := range req.Schema.FieldNames() {
		if !present[strings.ToLower(f)] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Code:    MissingColumns,
			Message: fmt.Sprintf("dataset %s has no row identifier so the file must contain every column", req.Schema.ID),
			Details: missing,
		}
	}
	return nil
}

func checkTimestamps(_ *Request, ftc *controlfile.FileTypeControl, _ *Result) error {
	for _, formats := range [][]string{ftc.FixedTimestampFormat, ftc.FloatingTimestampFormat} {
		for _, f := range formats {
			if err := controlfile.ValidatePattern(f); err != nil {
				return &ValidationError{Code: InvalidTimestampFormat, Message: fmt.Sprintf("invalid timestamp format %q", f), Details: []string{err.Error()}}
			}
		}
	}
	if ftc.Timezone != "" {
		if _, err := time.LoadLocation(ftc.Timezone); err != nil {
			return newValidationError(InvalidTimezone, "invalid timezone %q", ftc.Timezone)
		}
	}
	return nil
}

func checkEncoding(req *Request, ftc *controlfile.FileTypeControl, _ *Result) error {
	if _, err := controlfile.Charset(ftc.Encoding); err != nil {
		return newValidationError(InvalidEncoding, "%s", err.Error())
	}
	if req.SupportedEncodings == nil || ftc.Encoding == "" {
		return nil
	}
	for _, e := range req.SupportedEncodings {
		if strings.EqualFold(e, ftc.Encoding) {
			return nil
		}
	}
	return newValidationError(InvalidEncoding, "encoding %q is not supported by the dataset service", ftc.Encoding)
}

func forEachComponent(ftc *controlfile.FileTypeControl, fn func(field string, c controlfile.Component)) {
	for _, name := range sortedKeys(ftc.SyntheticLocations) {
		for _, c := range ftc.SyntheticLocations[name].Components() {
			fn(name, c)
		}
	}
	for _, name := range sortedKeys(ftc.SyntheticPoints) {
		for _, c := range ftc.SyntheticPoints[name].Components() {
			fn(name, c)
		}
	}
}

func sortedKeys(m map[string]controlfile.SyntheticColumn) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lower(values []string) []string {
	res := make([]string, len(values))
	for i, v := range values {
		res[i] = strings.ToLower(v)
	}
	return res
}
