package store

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

type LocalStorage struct {
	logger *zap.SugaredLogger
}

func NewLocalStorage(logger *zap.SugaredLogger) *LocalStorage {
	return &LocalStorage{logger: logger.Named("local")}
}

func (ls *LocalStorage) Fetch(_ context.Context, _ string, key string) (*LocalFile, error) {
	info, err := os.Stat(key)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", key)
	}
	ls.logger.Debugw("Using local file", "file", key, "size", info.Size())
	return &LocalFile{Path: key, Size: info.Size()}, nil
}
