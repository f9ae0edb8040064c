package main

import (
	"os"

	"go.uber.org/zap"

	tistorybatch "github.com/temirov/tistory-batch/cmd/tistory-batch"
)

func main() {
	logger := zap.Must(zap.NewProduction())

	executionErr := tistorybatch.Execute()
	if executionErr != nil {
		logger.Error("command execution failed", zap.Error(executionErr))
		_ = logger.Sync()
		os.Exit(1)
	}

	_ = logger.Sync()
}
