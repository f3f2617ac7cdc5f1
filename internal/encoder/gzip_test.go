package encoder

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestCompressFile(t *testing.T) {
	path := writeFile(t, "data.csv", []byte("id,name\n1,Ann\n"))
	target, err := CompressFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(filepath.Dir(target))
	if filepath.Base(target) != "data.csv.gz" {
		t.Errorf("unexpected name %s", target)
	}
	f, _ := os.Open(target)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	content, _ := io.ReadAll(zr)
	if string(content) != "id,name\n1,Ann\n" {
		t.Errorf("unexpected content %q", content)
	}
	if _, err := CompressFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected missing file to fail")
	}
}

func TestReadDeletionIDs(t *testing.T) {
	path := writeFile(t, "deletes.csv", []byte("ID\n17\n\n 18 \n"))
	ids, err := ReadDeletionIDs(path, "id")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "17" || ids[1] != "18" {
		t.Errorf("unexpected ids %v", ids)
	}
}
