package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
	"github.com/mimiro-io/dataset-publisher/internal/dropbox"
	"github.com/mimiro-io/dataset-publisher/internal/encoder"
	"github.com/mimiro-io/dataset-publisher/internal/schema"
	"github.com/mimiro-io/dataset-publisher/internal/store"
	"github.com/mimiro-io/dataset-publisher/internal/upload"
)

// Catalog reads dataset metadata from a domain.
type Catalog interface {
	Schema(datasetID string) (*schema.DatasetSchema, error)
	SupportedEncodings() ([]string, error)
}

// Connector hands out the read and write side of the dataset service of a domain.
type Connector interface {
	Catalog(domain string) Catalog
	Writer(domain string) upload.DatasetWriter
}

type Publisher interface {
	Publish(req dropbox.Request) (*dropbox.Status, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, location string) (*store.LocalFile, error)
}

type DocumentLoader interface {
	Load(location string) ([]byte, error)
}

type State string

const (
	Validating   State = "validating"
	Reconciling  State = "reconciling"
	Transmitting State = "transmitting"
	Done         State = "done"
)

// Runner publishes jobs. A run blocks until it has an outcome, there is no way to cancel it.
type Runner struct {
	env       *conf.Env
	connector Connector
	uploader  *upload.Uploader
	dropbox   Publisher
	files     Fetcher
	loader    DocumentLoader
	runLog    *RunLog
	logger    *zap.SugaredLogger
	statsd    statsd.ClientInterface
	listeners []func(State)
}

func NewRunner(env *conf.Env, connector Connector, uploader *upload.Uploader, publisher Publisher, files Fetcher,
	loader DocumentLoader, runLog *RunLog, logger *zap.SugaredLogger, statsd statsd.ClientInterface) *Runner {
	return &Runner{
		env:       env,
		connector: connector,
		uploader:  uploader,
		dropbox:   publisher,
		files:     files,
		loader:    loader,
		runLog:    runLog,
		logger:    logger.Named("job"),
		statsd:    statsd,
	}
}

// OnStateChange registers fn to be called, on the running goroutine, whenever a run moves to a new state.
func (r *Runner) OnStateChange(fn func(State)) {
	r.listeners = append(r.listeners, fn)
}

func (r *Runner) notify(s State) {
	for _, fn := range r.listeners {
		fn(s)
	}
}

// Run publishes one job. Every failure, panics included, ends up in the returned outcome.
func (r *Runner) Run(j *Job) (outcome Outcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorw("Publishing failed unexpectedly", "dataset", j.DatasetID, "panic", p)
			outcome = failed(j, nil, fmt.Errorf("unexpected failure: %v", p))
		}
		tags := []string{"dataset:" + j.DatasetID, "kind:" + string(outcome.Kind)}
		_ = r.statsd.Timing("job.time", time.Since(start), tags, 1)
		_ = r.statsd.Incr("job.outcome", tags, 1)
		if outcome.Success() {
			r.logger.Infow(outcome.Message, "dataset", j.DatasetID, "file", j.FileToPublish)
		} else {
			r.logger.Warnw("Publishing failed", "dataset", j.DatasetID, "file", j.FileToPublish,
				"kind", outcome.Kind, "error", outcome.Message)
		}
		if err := r.runLog.Append(outcome, time.Now()); err != nil {
			r.logger.Warnw("Unable to write run log", "error", err)
		}
		r.notify(Done)
	}()
	return r.run(j)
}

func (r *Runner) run(j *Job) Outcome {
	r.notify(Validating)
	if err := j.Validate(); err != nil {
		return failed(j, nil, err)
	}
	cf, err := r.loadControlFile(j)
	if err != nil {
		return failed(j, nil, err)
	}
	method := j.PublishMethod
	if cf != nil {
		if method, err = agree(j, cf); err != nil {
			return failed(j, nil, err)
		}
	}

	file, err := r.files.Fetch(context.Background(), j.FileToPublish)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s does not exist", ErrInvalidJob, j.FileToPublish)
		}
		return failed(j, nil, err)
	}
	defer r.remove(file)

	catalog := r.connector.Catalog(j.Domain)
	ds, err := catalog.Schema(j.DatasetID)
	if err != nil {
		return failed(j, nil, fmt.Errorf("unable to read the schema of %s: %w", j.DatasetID, err))
	}
	fileType := j.FileType()
	if cf == nil {
		cf = schema.GenerateControlFile(ds, method, fileType, j.FileHasHeaderRow)
		r.logger.Infow("Generated control file", "dataset", j.DatasetID, "action", method)
	}

	r.notify(Reconciling)
	var headers []string
	ftc, err := cf.FileTypeControl(fileType)
	if err == nil && ftc.HasHeaderRow() {
		if headers, err = readHeader(file.Path, ftc, fileType); err != nil {
			return failed(j, nil, fmt.Errorf("%w: %v", ErrInvalidJob, err))
		}
	}
	encodings, err := catalog.SupportedEncodings()
	if err != nil {
		r.logger.Warnw("Unable to fetch supported encodings, only checking locally", "error", err)
		encodings = nil
	}
	if _, err := schema.Reconcile(schema.Request{
		Schema:             ds,
		Control:            cf,
		FileType:           fileType,
		RawHeaders:         headers,
		SupportedEncodings: encodings,
	}); err != nil {
		return failed(j, nil, err)
	}

	r.notify(Transmitting)
	if j.PublishViaFTP {
		return r.publishFTP(j, cf, file)
	}
	return r.publishHTTP(j, method, ftc, ds, file)
}

func (r *Runner) loadControlFile(j *Job) (*controlfile.ControlFile, error) {
	if j.ControlFile != nil {
		cf := *j.ControlFile
		return &cf, nil
	}
	if j.ControlFileLocation == "" {
		return nil, nil
	}
	data, err := r.loader.Load(j.ControlFileLocation)
	if err != nil {
		return nil, fmt.Errorf("unable to load control file %s: %w", j.ControlFileLocation, err)
	}
	cf, err := controlfile.Parse(data)
	if err != nil {
		return nil, &schema.ValidationError{Code: schema.InvalidControlFile, Message: fmt.Sprintf("unable to parse control file %s", j.ControlFileLocation), Details: []string{err.Error()}}
	}
	return cf, nil
}

// agree settles the action of the run from the job and the control file, filling in the one that is
// missing. cf is a copy owned by the run.
func agree(j *Job, cf *controlfile.ControlFile) (controlfile.Action, error) {
	switch {
	case cf.Action == "" && j.PublishMethod == "":
		return "", &schema.ValidationError{Code: schema.InvalidAction, Message: "the control file has no action and the job no publish method"}
	case cf.Action == "":
		cf.Action = j.PublishMethod
	case !cf.Action.Valid():
		return "", &schema.ValidationError{Code: schema.InvalidAction, Message: fmt.Sprintf("unknown action %q in control file", cf.Action)}
	case j.PublishMethod != "" && cf.Action != j.PublishMethod:
		return "", &schema.ValidationError{Code: schema.InvalidAction, Message: fmt.Sprintf("control file action %s does not match publish method %s", cf.Action, j.PublishMethod)}
	}
	if j.PublishViaFTP && cf.Action != controlfile.Replace {
		return "", fmt.Errorf("%w: the ftp dropbox only supports replace, not %s", ErrInvalidJob, cf.Action)
	}
	return cf.Action, nil
}

// readHeader reads the header as utf-8 when the declared encoding is unknown, leaving the encoding
// error to reconciliation.
func readHeader(path string, ftc *controlfile.FileTypeControl, fileType string) ([]string, error) {
	headerControl := *ftc
	if _, err := controlfile.Charset(headerControl.Encoding); err != nil {
		headerControl.Encoding = ""
	}
	return encoder.ReadHeader(path, &headerControl, fileType)
}

func (r *Runner) publishFTP(j *Job, cf *controlfile.ControlFile, file *store.LocalFile) Outcome {
	control, err := controlfile.Marshal(cf)
	if err != nil {
		return failed(j, nil, err)
	}
	status, err := r.dropbox.Publish(dropbox.Request{
		Domain:      j.Domain,
		Username:    r.env.Username,
		Password:    r.env.Password,
		DatasetID:   j.DatasetID,
		ControlFile: control,
		DataFile:    file.Path,
	})
	if err != nil {
		return failed(j, nil, err)
	}
	return succeeded(j, nil, fmt.Sprintf("published %s through the ftp dropbox: %s", j.FileToPublish, status.Message))
}

func (r *Runner) publishHTTP(j *Job, method controlfile.Action, ftc *controlfile.FileTypeControl, ds *schema.DatasetSchema, file *store.LocalFile) Outcome {
	var deletions []string
	if j.DeletionFile != "" {
		if !ds.HasRowIdentifier() {
			return failed(j, nil, &schema.ValidationError{Code: schema.NoRowIdentifier, Message: fmt.Sprintf("dataset %s has no row identifier, rows can not be deleted", j.DatasetID)})
		}
		deletionFile, err := r.files.Fetch(context.Background(), j.DeletionFile)
		if err != nil {
			return failed(j, nil, err)
		}
		defer r.remove(deletionFile)
		if deletions, err = encoder.ReadDeletionIDs(deletionFile.Path, ds.RowIdentifier); err != nil {
			return failed(j, nil, err)
		}
	}

	rows, err := encoder.NewRowReader(file.Path, ftc, j.FileType(), ds)
	if err != nil {
		return failed(j, nil, fmt.Errorf("%w: %v", ErrInvalidJob, err))
	}
	defer func() {
		_ = rows.Close()
	}()
	res, err := r.uploader.Upload(r.connector.Writer(j.Domain), upload.Request{
		DatasetID:     j.DatasetID,
		Method:        method,
		Rows:          rows,
		FileSize:      file.Size,
		HasHeaderRow:  ftc.HasHeaderRow(),
		Skip:          ftc.Skip,
		RowIdentifier: ds.RowIdentifier,
		Deletions:     deletions,
	})
	if err != nil {
		return failed(j, res, err)
	}
	return succeeded(j, res, "")
}

func (r *Runner) remove(f *store.LocalFile) {
	if err := f.Remove(); err != nil {
		r.logger.Warnw("Unable to remove temporary file", "file", f.Path, "error", err)
	}
}
