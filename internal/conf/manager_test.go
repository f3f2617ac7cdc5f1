package conf

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLoader() *Loader {
	return &Loader{
		logger:  zap.NewNop().Sugar(),
		timeout: time.Second,
	}
}

func TestLoadFile(t *testing.T) {
	loader := testLoader()

	_, err := loader.Load("file://../../resources/test/control.json")
	if err != nil {
		t.FailNow()
	}
	_, err = loader.Load("../../resources/test/control.json")
	if err != nil {
		t.FailNow()
	}
	_, err = loader.Load("file://../../resources/test/missing.json")
	if err == nil {
		t.Error("expected missing file to fail")
	}
}

func TestLoadUrl(t *testing.T) {
	srv := serverMock()
	defer srv.Close()

	loader := testLoader()

	res, err := loader.Load(fmt.Sprintf("%s/test/control.json", srv.URL))
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	expected, _ := os.ReadFile("../../resources/test/control.json")
	if string(res) != string(expected) {
		t.Errorf("unexpected content %s", res)
	}

	_, err = loader.Load(fmt.Sprintf("%s/test/missing.json", srv.URL))
	if err == nil {
		t.Error("expected a 404 to fail")
	}
}

func serverMock() *httptest.Server {
	handler := http.NewServeMux()
	handler.HandleFunc("/test/control.json", configMock)

	srv := httptest.NewServer(handler)

	return srv
}

func configMock(w http.ResponseWriter, r *http.Request) {
	res, _ := testLoader().Load("file://../../resources/test/control.json")
	_, _ = w.Write(res)
}
