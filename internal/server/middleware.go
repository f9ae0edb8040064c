package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/tistory-batch/internal/metrics"
)

const (
	unmatchedRoute = "unmatched"

	runIDContextKey        = "tistory_batch.run_id"
	errorMessageContextKey = "tistory_batch.error"
)

// RequestLogger writes one entry per served request. Batch handlers tag the
// context with the run they touched, so entries join the orchestrator's logs
// on run_id.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", routeOf(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(startedAt)),
			zap.String("client_ip", c.ClientIP()),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if runID := c.GetString(runIDContextKey); runID != "" {
			fields = append(fields, zap.String("run_id", runID))
		}
		if message := c.GetString(errorMessageContextKey); message != "" {
			fields = append(fields, zap.String("error", message))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("gin_errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Debug("request served", fields...)
		}
	}
}

// RequestMetrics counts requests by route pattern.
func RequestMetrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		recorder.ObserveHTTP(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

func tagRun(c *gin.Context, runID string) {
	if runID != "" {
		c.Set(runIDContextKey, runID)
	}
}
