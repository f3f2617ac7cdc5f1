package main

import (
	"os"

	"github.com/mimiro-io/dataset-publisher/internal/app"
)

func main() {
	os.Exit(app.Run())
}
