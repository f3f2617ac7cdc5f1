package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

var ErrUnsupportedScheme = errors.New("unsupported storage scheme")

// LocalFile is a source file available on the local disk. Files downloaded from object storage are
// Temp and live in their own directory until Remove is called.
type LocalFile struct {
	Path string
	Size int64
	Temp bool
}

func (f *LocalFile) Remove() error {
	if f == nil || !f.Temp {
		return nil
	}
	return os.RemoveAll(filepath.Dir(f.Path))
}

// StorageInterface fetches one object of a storage backend to the local disk. For local storage the
// container is empty and key is the path.
type StorageInterface interface {
	Fetch(ctx context.Context, container string, key string) (*LocalFile, error)
}

// tempTarget creates a fresh directory for a download, keeping the object's base name so the file
// extension survives.
func tempTarget(key string) (*os.File, error) {
	dir, err := os.MkdirTemp("", "publish-source-*")
	if err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, filepath.Base(key)))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return f, nil
}

func finish(f *os.File, err error) (*LocalFile, error) {
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(f.Name()))
		return nil, err
	}
	info, err := os.Stat(f.Name())
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(f.Name()))
		return nil, err
	}
	return &LocalFile{Path: f.Name(), Size: info.Size(), Temp: true}, nil
}
