package soda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/goburrow/cache"
	"github.com/gojektech/heimdall/v6/httpclient"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
)

const (
	appTokenHeader = "X-App-Token"
	regionHeader   = "X-Socrata-Region"
)

// Client talks to the http api of a hosted dataset service.
type Client struct {
	baseURL  string
	username string
	password string
	appToken string
	reader   *httpclient.Client
	writer   *httpclient.Client
	schemas  cache.Cache
	logger   *zap.SugaredLogger
	statsd   statsd.ClientInterface
}

func NewClient(env *conf.Env, logger *zap.SugaredLogger, statsd statsd.ClientInterface) *Client {
	return &Client{
		baseURL:  BaseURL(env.Domain),
		username: env.Username,
		password: env.Password,
		appToken: env.AppToken,
		reader:   httpclient.NewClient(httpclient.WithHTTPTimeout(env.HTTPTimeout), httpclient.WithRetryCount(env.HTTPRetryCount)),
		writer:   httpclient.NewClient(httpclient.WithHTTPTimeout(env.HTTPTimeout), httpclient.WithRetryCount(0)),
		schemas:  cache.New(cache.WithMaximumSize(128), cache.WithExpireAfterWrite(5*time.Minute)),
		logger:   logger.Named("soda"),
		statsd:   statsd,
	}
}

// ForDomain returns a client for another domain sharing credentials, http clients and schema cache.
func (c *Client) ForDomain(domain string) *Client {
	clone := *c
	clone.baseURL = BaseURL(domain)
	return &clone
}

// BaseURL turns a domain with or without scheme into the service root url.
func BaseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// Host strips scheme and path from a domain.
func Host(domain string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(domain), "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}

func (c *Client) newRequest(method string, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if c.appToken != "" {
		req.Header.Set(appTokenHeader, c.appToken)
	}
	return req, nil
}

// do runs the request and returns the response when the status is 2xx. The caller closes the body.
func (c *Client) do(client *httpclient.Client, req *http.Request) (*http.Response, error) {
	tags := []string{"method:" + req.Method}
	start := time.Now()
	defer func() {
		_ = c.statsd.Timing("soda.request.time", time.Since(start), tags, 1)
	}()

	resp, err := client.Do(req)
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}
