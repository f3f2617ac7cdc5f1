package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"go.uber.org/zap"

	"github.com/mimiro-io/dataset-publisher/internal/conf"
)

const (
	schemeLocal = "file"
	schemeS3    = "s3"
	schemeAzure = "azure"
)

// StorageEngine fetches source files from the local disk, s3 (s3://bucket/key) or azure blob
// storage (azure://container/blob). Backends are created on first use.
type StorageEngine struct {
	statsd   statsd.ClientInterface
	logger   *zap.SugaredLogger
	storages map[string]StorageInterface
	env      *conf.Env
	lock     *sync.Mutex
}

func NewStorageEngine(logger *zap.SugaredLogger, env *conf.Env, statsd statsd.ClientInterface) *StorageEngine {
	return &StorageEngine{
		statsd:   statsd,
		logger:   logger.Named("store"),
		env:      env,
		storages: make(map[string]StorageInterface),
		lock:     &sync.Mutex{},
	}
}

// Fetch makes location available as a local file. Temp files must be removed by the caller.
func (engine *StorageEngine) Fetch(ctx context.Context, location string) (*LocalFile, error) {
	scheme, container, key, err := parseLocation(location)
	if err != nil {
		return nil, err
	}
	storage, err := engine.Storage(scheme)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	f, err := storage.Fetch(ctx, container, key)
	tags := []string{"scheme:" + scheme}
	_ = engine.statsd.Timing("store.fetch.time", time.Since(start), tags, 1)
	if err != nil {
		_ = engine.statsd.Incr("store.fetch.error", tags, 1)
		return nil, fmt.Errorf("unable to fetch %s: %w", location, err)
	}
	return f, nil
}

// Storage returns the backend for a scheme, creating it if needed.
func (engine *StorageEngine) Storage(scheme string) (StorageInterface, error) {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	if s, ok := engine.storages[scheme]; ok {
		return s, nil
	}
	s, err := engine.initBackend(scheme)
	if err != nil {
		return nil, err
	}
	engine.storages[scheme] = s
	return s, nil
}

func (engine *StorageEngine) initBackend(scheme string) (StorageInterface, error) {
	switch scheme {
	case schemeS3:
		return NewS3Storage(engine.logger, engine.env)
	case schemeAzure:
		return NewAzureStorage(engine.logger, engine.env)
	case schemeLocal:
		return NewLocalStorage(engine.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

func parseLocation(location string) (scheme string, container string, key string, err error) {
	if !strings.Contains(location, "://") {
		return schemeLocal, "", location, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", err
	}
	scheme = strings.ToLower(u.Scheme)
	switch scheme {
	case schemeLocal:
		return scheme, "", u.Path, nil
	case schemeS3, schemeAzure:
		key = strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return "", "", "", fmt.Errorf("%s must name both container and object", location)
		}
		return scheme, u.Host, key, nil
	}
	return "", "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
}
