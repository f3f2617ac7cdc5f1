package encoder

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// CompressFile writes a gzip copy of path into a temporary directory and returns its location. The
// caller removes the directory of the returned file when done.
func CompressFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = src.Close()
	}()

	dir, err := os.MkdirTemp("", "publish-gz-")
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, filepath.Base(path)+".gz")
	dst, err := os.Create(target)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err = io.Copy(zw, src); err == nil {
		err = zw.Close()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return target, nil
}
