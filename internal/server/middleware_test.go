package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/tistory-batch/internal/server"
)

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testCases := []struct {
		name          string
		status        int
		expectedLevel zapcore.Level
		expectedMsg   string
	}{
		{name: "success", status: http.StatusOK, expectedLevel: zapcore.DebugLevel, expectedMsg: "request served"},
		{name: "client error", status: http.StatusConflict, expectedLevel: zapcore.WarnLevel, expectedMsg: "request rejected"},
		{name: "server error", status: http.StatusInternalServerError, expectedLevel: zapcore.ErrorLevel, expectedMsg: "request failed"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			engine := gin.New()
			engine.Use(server.RequestLogger(zap.New(core)))
			engine.GET("/items/:id", func(c *gin.Context) { c.Status(testCase.status) })

			engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7?verbose=1", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one log entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != testCase.expectedLevel || entry.Message != testCase.expectedMsg {
				t.Fatalf("unexpected entry %s %q", entry.Level, entry.Message)
			}
			fields := entry.ContextMap()
			if fields["route"] != "/items/:id" || fields["path"] != "/items/7" || fields["query"] != "verbose=1" || fields["status"] != int64(testCase.status) {
				t.Fatalf("unexpected fields %v", fields)
			}
		})
	}
}
