package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/llm"
	"github.com/temirov/tistory-batch/internal/metrics"
)

func resultEvent(result content.Result) batch.Event {
	record := batch.Record{Topic: "topic", Result: result, Duration: 2 * time.Second}
	return batch.Event{Kind: batch.EventResult, Record: &record}
}

func TestRecorderObserveBatchEvents(t *testing.T) {
	recorder := metrics.NewRecorder()

	recorder.Observe(batch.Event{Kind: batch.EventProgress, Total: 2})
	recorder.Observe(resultEvent(content.Succeeded(&content.Article{Text: "본문", CharCount: 2500})))
	recorder.Observe(resultEvent(content.Failed("API error: 500", llm.KindProvider)))
	recorder.Observe(batch.Event{Kind: batch.EventCompleted})

	expected := `
# HELP tistory_batch_generation_total Generated topics by outcome and failure cause
# TYPE tistory_batch_generation_total counter
tistory_batch_generation_total{cause="none",status="success"} 1
tistory_batch_generation_total{cause="provider",status="failure"} 1
# HELP tistory_batch_generation_characters_total Characters of cleaned article text produced
# TYPE tistory_batch_generation_characters_total counter
tistory_batch_generation_characters_total 2500
# HELP tistory_batch_batch_runs_total Finished batch runs by outcome
# TYPE tistory_batch_batch_runs_total counter
tistory_batch_batch_runs_total{outcome="completed"} 1
# HELP tistory_batch_batch_in_progress 1 while a batch is running
# TYPE tistory_batch_batch_in_progress gauge
tistory_batch_batch_in_progress 0
`
	if err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected),
		"tistory_batch_generation_total",
		"tistory_batch_generation_characters_total",
		"tistory_batch_batch_runs_total",
		"tistory_batch_batch_in_progress",
	); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	if count := testutil.CollectAndCount(recorder.Registry(), "tistory_batch_generation_duration_seconds"); count != 2 {
		t.Fatalf("expected two duration series, got %d", count)
	}
}

func TestRecorderTextfileAndHandler(t *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.Observe(batch.Event{Kind: batch.EventStopped})
	recorder.ObserveHTTP(http.MethodGet, "/api/batch", http.StatusOK, 5*time.Millisecond)

	path := filepath.Join(t.TempDir(), "tistory_batch.prom")
	if err := recorder.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	written, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read textfile: %v", readErr)
	}
	if !strings.Contains(string(written), `tistory_batch_batch_runs_total{outcome="stopped"} 1`) {
		t.Fatalf("textfile missing stopped run:\n%s", written)
	}

	responseRecorder := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(responseRecorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := responseRecorder.Body.String()
	if !strings.Contains(body, `tistory_batch_http_requests_total{method="GET",path="/api/batch",status="200"} 1`) {
		t.Fatalf("handler output missing request counter:\n%s", body)
	}
}

func TestRecorderAsOrchestratorListener(t *testing.T) {
	recorder := metrics.NewRecorder()
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	unsubscribe := orchestrator.Subscribe(recorder.Observe)
	defer unsubscribe()

	generator := generatorFunc(func(request content.Request) content.Result {
		return content.Succeeded(content.NewArticle("짧은 글", request))
	})
	if _, err := orchestrator.Start(t.Context(), []string{"a", "b"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := orchestrator.Wait(t.Context()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	expected := `
# HELP tistory_batch_generation_characters_total Characters of cleaned article text produced
# TYPE tistory_batch_generation_characters_total counter
tistory_batch_generation_characters_total 8
`
	if err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "tistory_batch_generation_characters_total"); err != nil {
		t.Fatalf("unexpected characters total: %v", err)
	}
}

type generatorFunc func(request content.Request) content.Result

func (function generatorFunc) Generate(_ context.Context, request content.Request) content.Result {
	return function(request)
}
