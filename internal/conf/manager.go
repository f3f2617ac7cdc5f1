package conf

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gojektech/heimdall/v6/httpclient"
	"go.uber.org/zap"
)

// Loader reads control files and job files from disk or over http.
type Loader struct {
	logger  *zap.SugaredLogger
	timeout time.Duration
	retries int
}

func NewLoader(env *Env) *Loader {
	return &Loader{
		logger:  env.Logger.Named("loader"),
		timeout: 10000 * time.Millisecond,
		retries: env.HTTPRetryCount,
	}
}

// Load reads the document at location, which is a plain path, a file:// url or an http(s) url.
func (l *Loader) Load(location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return l.loadUrl(location)
	}
	return l.loadFile(location)
}

func (l *Loader) loadUrl(endpoint string) ([]byte, error) {
	client := httpclient.NewClient(httpclient.WithHTTPTimeout(l.timeout), httpclient.WithRetryCount(l.retries))

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		l.logger.Warnw("Unable to open url", "url", endpoint, "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		l.logger.Infof("Endpoint returned %s", resp.Status)
		return nil, fmt.Errorf("unable to load %s: %s", endpoint, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (l *Loader) loadFile(location string) ([]byte, error) {
	fileName := strings.TrimPrefix(location, "file://")

	content, err := os.ReadFile(fileName)
	if err != nil {
		l.logger.Warnw("Unable to open file", "file", fileName, "error", err)
		return nil, err
	}
	return content, nil
}
