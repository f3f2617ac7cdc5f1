package dropbox

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
	"github.com/mimiro-io/dataset-publisher/internal/encoder"
)

const (
	controlFileName = "control.json"
	statusFileName  = "status.txt"
	requestIDFile   = "requestId"
	enqueueDir      = "move-files-here-to-enqueue-job"

	successPrefix = "SUCCESS"
	failurePrefix = "FAILURE"
)

// RegionResolver finds the region a domain is hosted in.
type RegionResolver interface {
	Region(domain string) (string, error)
}

type Request struct {
	Domain      string
	Username    string
	Password    string
	DatasetID   string
	ControlFile []byte
	DataFile    string
}

// Status is the final line the dropbox wrote for the data file, without the request id.
type Status struct {
	Message string
}

type Client struct {
	cfg          conf.FtpConfig
	dial         Dialer
	regions      RegionResolver
	logger       *zap.SugaredLogger
	statsd       statsd.ClientInterface
	sleep        func(time.Duration)
	newRequestID func() string
	compress     func(string) (string, error)
}

func NewClient(env *conf.Env, regions RegionResolver, logger *zap.SugaredLogger, statsd statsd.ClientInterface) *Client {
	return &Client{
		cfg:          env.Ftp,
		dial:         DialFTPS(env.Ftp.DialTimeout),
		regions:      regions,
		logger:       logger.Named("dropbox"),
		statsd:       statsd,
		sleep:        time.Sleep,
		newRequestID: NewRequestID,
		compress:     encoder.CompressFile,
	}
}

// NewRequestID returns 32 random hex characters.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Publish uploads the control file and then the data file, waiting for the dropbox to process each.
// The connection is closed on every return.
func (c *Client) Publish(req Request) (*Status, error) {
	tags := []string{"dataset:" + req.DatasetID}
	start := time.Now()
	defer func() {
		_ = c.statsd.Timing("dropbox.transfer.time", time.Since(start), tags, 1)
	}()

	host, err := c.host(req.Domain)
	if err != nil {
		return nil, &Error{Kind: KindResolveHost, Err: err}
	}
	conn, err := c.dial(host, c.cfg.ControlPort, req.Username, req.Password)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Path: host, Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.logger.Warnw("Unable to close ftp connection", "host", host, "error", err)
		}
	}()
	c.logger.Infow("Connected to dropbox", "host", host, "dataset", req.DatasetID)

	root := c.root(conn, req.Domain)
	datasetDir := path.Join(root, req.DatasetID)
	if err := c.ensureDir(conn, datasetDir); err != nil {
		return nil, err
	}

	if _, err := c.transfer(conn, root, datasetDir, controlFileName, bytes.NewReader(req.ControlFile), -1); err != nil {
		return nil, err
	}

	local := req.DataFile
	name := filepath.Base(local)
	if compressed, err := c.compress(local); err != nil {
		c.logger.Warnw("Unable to compress data file, sending it as is", "file", local, "error", err)
	} else {
		defer func() {
			_ = os.RemoveAll(filepath.Dir(compressed))
		}()
		local = compressed
		name = name + ".gz"
	}
	f, err := os.Open(local)
	if err != nil {
		return nil, &Error{Kind: KindStore, Path: local, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	info, err := f.Stat()
	if err != nil {
		return nil, &Error{Kind: KindStore, Path: local, Err: err}
	}
	return c.transfer(conn, root, datasetDir, name, f, info.Size())
}

func (c *Client) host(domain string) (string, error) {
	region, err := c.regions.Region(domain)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.ftp.%s", region, c.cfg.ProviderDomain), nil
}

// root is the home directory, or /<domain> for accounts that see several domains. Those accounts
// have no root marker in their home.
func (c *Client) root(conn Conn, domain string) string {
	home, err := conn.CurrentDir()
	if err != nil || home == "" {
		home = "/"
	}
	if _, err := conn.Size(path.Join(home, c.cfg.RootMarker)); err == nil {
		return home
	}
	return "/" + hostOf(domain)
}

func (c *Client) ensureDir(conn Conn, dir string) error {
	if _, err := conn.Size(path.Join(dir, statusFileName)); err == nil {
		return nil
	}
	if err := conn.MakeDir(dir); err != nil {
		return &Error{Kind: KindMkdir, Path: dir, Err: err}
	}
	return nil
}

// transfer stores one payload under a fresh request id, enqueues it and waits for its status. A
// non-negative size is checked against the stored file before enqueueing.
func (c *Client) transfer(conn Conn, root string, datasetDir string, name string, content io.Reader, size int64) (*Status, error) {
	id := c.newRequestID()
	idPath := path.Join(root, requestIDFile)
	if err := conn.Store(idPath, strings.NewReader(id)); err != nil {
		return nil, &Error{Kind: KindRequestID, Path: idPath, Err: err}
	}

	target := path.Join(datasetDir, name)
	if err := conn.Store(target, content); err != nil {
		return nil, &Error{Kind: KindStore, Path: target, Err: err}
	}
	if size >= 0 {
		stored, err := conn.Size(target)
		if err != nil {
			return nil, &Error{Kind: KindSizeMismatch, Path: target, Err: err}
		}
		if stored != size {
			return nil, &Error{Kind: KindSizeMismatch, Path: target, Detail: fmt.Sprintf("stored %d bytes, expected %d", stored, size)}
		}
	}
	queued := path.Join(datasetDir, enqueueDir, name)
	if err := conn.Rename(target, queued); err != nil {
		return nil, &Error{Kind: KindEnqueue, Path: target, Err: err}
	}
	c.logger.Infow("Enqueued file", "file", queued, "requestId", id)
	return c.poll(conn, datasetDir, id)
}

// poll reads the status file until it mentions id with a final state. Read failures are tolerated
// until MaxPollFailures happen in a row.
func (c *Client) poll(conn Conn, datasetDir string, id string) (*Status, error) {
	statusPath := path.Join(datasetDir, statusFileName)
	failures := 0
	for {
		content, err := conn.Read(statusPath)
		_ = c.statsd.Incr("dropbox.poll", nil, 1)
		if err != nil {
			failures++
			c.logger.Debugw("Unable to read status", "file", statusPath, "failures", failures, "error", err)
			if failures >= c.cfg.MaxPollFailures {
				return nil, &Error{Kind: KindPollExhausted, Path: statusPath, Err: err}
			}
		} else {
			failures = 0
			if status, done, err := interpret(string(content), id); done {
				return status, err
			}
		}
		c.sleep(c.cfg.PollInterval)
	}
}

// interpret looks for "<id> : SUCCESS" or "<id> : FAILURE: detail" in the status file.
func interpret(content string, id string) (*Status, bool, error) {
	i := strings.Index(content, id)
	if i < 0 {
		return nil, false, nil
	}
	rest := content[i+len(id):]
	if nl := strings.IndexAny(rest, "\r\n"); nl >= 0 {
		rest = rest[:nl]
	}
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
	upper := strings.ToUpper(rest)
	switch {
	case strings.HasPrefix(upper, successPrefix):
		return &Status{Message: rest}, true, nil
	case strings.HasPrefix(upper, failurePrefix):
		detail := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest[len(failurePrefix):]), ":"))
		return nil, true, &Error{Kind: KindStatusFailure, Detail: detail}
	}
	return nil, false, nil
}

func hostOf(domain string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(domain), "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}
