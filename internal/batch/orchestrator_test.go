package batch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/llm"
)

type scriptedGenerator struct {
	mu       sync.Mutex
	requests []content.Request
	respond  func(request content.Request) content.Result
}

func (generator *scriptedGenerator) Generate(ctx context.Context, request content.Request) content.Result {
	generator.mu.Lock()
	generator.requests = append(generator.requests, request)
	generator.mu.Unlock()
	return generator.respond(request)
}

func (generator *scriptedGenerator) topics() []string {
	generator.mu.Lock()
	defer generator.mu.Unlock()
	topics := make([]string, 0, len(generator.requests))
	for _, request := range generator.requests {
		topics = append(topics, request.Topic)
	}
	return topics
}

func succeedWithText(request content.Request) content.Result {
	return content.Succeeded(content.NewArticle("post about "+request.Topic, request))
}

func waitForRun(t *testing.T, orchestrator *batch.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orchestrator.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestOrchestratorMixedOutcomes(t *testing.T) {
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		if request.Topic == "A" {
			return content.Succeeded(content.NewArticle(strings.Repeat("가", 2500), request))
		}
		return content.Failed("API error: 500", llm.KindProvider)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))

	_, err := orchestrator.Start(context.Background(), []string{"A", "B"}, batch.Settings{Generator: generator, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	snapshot := orchestrator.Snapshot()
	if snapshot.State != batch.StateCompleted {
		t.Fatalf("expected completed, got %s", snapshot.State)
	}
	stats := snapshot.Stats
	if stats.Succeeded != 1 || stats.Failed != 1 || stats.TotalChars != 2500 || stats.Total != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(snapshot.Records) != 2 || snapshot.Records[0].Topic != "A" || snapshot.Records[1].Topic != "B" {
		t.Fatalf("unexpected records %+v", snapshot.Records)
	}
	if snapshot.Records[1].Result.Failure == nil || snapshot.Records[1].Result.Failure.Cause != llm.KindProvider {
		t.Fatalf("expected provider failure for B, got %+v", snapshot.Records[1].Result)
	}
}

func TestOrchestratorRecordsFollowTopicOrder(t *testing.T) {
	generator := &scriptedGenerator{respond: succeedWithText}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))

	var (
		eventsMu sync.Mutex
		kinds    []batch.EventKind
	)
	orchestrator.Subscribe(func(event batch.Event) {
		eventsMu.Lock()
		kinds = append(kinds, event.Kind)
		eventsMu.Unlock()
	})

	topics := []string{" one ", "", "two", "   ", "three", "four"}
	if _, err := orchestrator.Start(context.Background(), topics, batch.Settings{Generator: generator, Category: content.CategoryNews}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	records := orchestrator.Results()
	expectedTopics := []string{"one", "two", "three", "four"}
	if len(records) != len(expectedTopics) {
		t.Fatalf("expected %d records, got %d", len(expectedTopics), len(records))
	}
	for index, record := range records {
		if record.Index != index || record.Topic != expectedTopics[index] {
			t.Fatalf("record %d out of order: %+v", index, record)
		}
		if record.CompletedAt.IsZero() {
			t.Fatalf("record %d has no completion time", index)
		}
	}
	if strings.Join(generator.topics(), ",") != strings.Join(expectedTopics, ",") {
		t.Fatalf("generator saw %v", generator.topics())
	}

	eventsMu.Lock()
	defer eventsMu.Unlock()
	if len(kinds) != 2*len(expectedTopics)+1 {
		t.Fatalf("expected %d events, got %d", 2*len(expectedTopics)+1, len(kinds))
	}
	for index := 0; index < len(expectedTopics); index++ {
		if kinds[2*index] != batch.EventProgress || kinds[2*index+1] != batch.EventResult {
			t.Fatalf("unexpected event sequence %v", kinds)
		}
	}
	if kinds[len(kinds)-1] != batch.EventCompleted {
		t.Fatalf("expected completed last, got %v", kinds[len(kinds)-1])
	}
}

func TestOrchestratorStopYieldsPrefix(t *testing.T) {
	entered := make(chan string, 10)
	release := make(chan struct{})
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		entered <- request.Topic
		if request.Topic == "t2" {
			<-release
		}
		return succeedWithText(request)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))

	topics := []string{"t1", "t2", "t3", "t4", "t5"}
	if _, err := orchestrator.Start(context.Background(), topics, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-entered
	<-entered
	orchestrator.Stop()
	orchestrator.Stop()
	close(release)
	waitForRun(t, orchestrator)

	snapshot := orchestrator.Snapshot()
	if snapshot.State != batch.StateStopped {
		t.Fatalf("expected stopped, got %s", snapshot.State)
	}
	if len(snapshot.Records) != 2 {
		t.Fatalf("expected the in-flight topic to complete and nothing after, got %d records", len(snapshot.Records))
	}
	for index, record := range snapshot.Records {
		if record.Topic != topics[index] {
			t.Fatalf("records are not a prefix: %+v", snapshot.Records)
		}
	}
	if snapshot.Stats.Succeeded != 2 || snapshot.Stats.Total != len(topics) {
		t.Fatalf("unexpected stats %+v", snapshot.Stats)
	}
}

func TestOrchestratorStopIsNoOpWhenIdle(t *testing.T) {
	orchestrator := batch.NewOrchestrator()
	orchestrator.Stop()
	if orchestrator.Snapshot().State != batch.StateIdle {
		t.Fatalf("expected idle")
	}
}

func TestOrchestratorLimitTruncates(t *testing.T) {
	generator := &scriptedGenerator{respond: succeedWithText}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	if _, err := orchestrator.Start(context.Background(), []string{"a", "b", "c"}, batch.Settings{Generator: generator, Limit: 2}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)
	if got := len(orchestrator.Results()); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}
	if orchestrator.Snapshot().Total != 2 {
		t.Fatalf("expected total 2, got %d", orchestrator.Snapshot().Total)
	}
}

func TestOrchestratorStartValidation(t *testing.T) {
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))

	if _, err := orchestrator.Start(context.Background(), []string{" ", ""}, batch.Settings{Generator: &scriptedGenerator{respond: succeedWithText}}); !errors.Is(err, batch.ErrNoTopics) {
		t.Fatalf("expected ErrNoTopics, got %v", err)
	}
	_, err := orchestrator.Start(context.Background(), []string{"a"}, batch.Settings{})
	if llm.KindOf(err) != llm.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if orchestrator.Snapshot().State != batch.StateIdle {
		t.Fatalf("failed start must leave the orchestrator idle")
	}
}

func TestOrchestratorRejectsConcurrentStart(t *testing.T) {
	release := make(chan struct{})
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		<-release
		return succeedWithText(request)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	if _, err := orchestrator.Start(context.Background(), []string{"a"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := orchestrator.Start(context.Background(), []string{"b"}, batch.Settings{Generator: generator}); !errors.Is(err, batch.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	close(release)
	waitForRun(t, orchestrator)

	if _, err := orchestrator.Start(context.Background(), []string{"c"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	waitForRun(t, orchestrator)
	records := orchestrator.Results()
	if len(records) != 1 || records[0].Topic != "c" {
		t.Fatalf("expected results to be reset on start, got %+v", records)
	}
}

func TestOrchestratorClearDiscardsInFlightRun(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		if request.Topic == "slow" {
			entered <- struct{}{}
			<-release
		}
		return succeedWithText(request)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	if _, err := orchestrator.Start(context.Background(), []string{"slow", "never"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-entered
	orchestrator.Clear()

	snapshot := orchestrator.Snapshot()
	if snapshot.State != batch.StateIdle || len(snapshot.Records) != 0 || snapshot.RunID != "" {
		t.Fatalf("expected cleared state, got %+v", snapshot)
	}
	if _, err := orchestrator.Start(context.Background(), []string{"next"}, batch.Settings{Generator: generator}); !errors.Is(err, batch.ErrStillStopping) {
		t.Fatalf("expected ErrStillStopping, got %v", err)
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := orchestrator.Start(context.Background(), []string{"next"}, batch.Settings{Generator: generator})
		if err == nil {
			break
		}
		if !errors.Is(err, batch.ErrStillStopping) || time.Now().After(deadline) {
			t.Fatalf("restart after clear: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	waitForRun(t, orchestrator)

	records := orchestrator.Results()
	if len(records) != 1 || records[0].Topic != "next" {
		t.Fatalf("stale results leaked into new run: %+v", records)
	}
	for _, topic := range generator.topics() {
		if topic == "never" {
			t.Fatalf("cleared run kept processing")
		}
	}
}

func TestOrchestratorRecoversGeneratorPanic(t *testing.T) {
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		if request.Topic == "boom" {
			panic("kaboom")
		}
		return succeedWithText(request)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	if _, err := orchestrator.Start(context.Background(), []string{"boom", "fine"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	records := orchestrator.Results()
	if len(records) != 2 {
		t.Fatalf("expected both topics recorded, got %d", len(records))
	}
	failure := records[0].Result.Failure
	if failure == nil || failure.Cause != llm.KindUnexpected || !strings.Contains(failure.Message, "kaboom") {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if !records[1].Result.Succeeded() {
		t.Fatalf("expected the batch to continue after a panic")
	}
}

func TestOrchestratorCourtesyDelayBetweenTopics(t *testing.T) {
	const delay = 40 * time.Millisecond
	generator := &scriptedGenerator{respond: succeedWithText}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(delay))

	startedAt := time.Now()
	if _, err := orchestrator.Start(context.Background(), []string{"a", "b", "c"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	if elapsed := time.Since(startedAt); elapsed < 2*delay {
		t.Fatalf("expected at least %s between three topics, took %s", 2*delay, elapsed)
	}
	records := orchestrator.Results()
	if gap := records[1].CompletedAt.Sub(records[0].CompletedAt); gap < delay {
		t.Fatalf("expected a pause of at least %s, got %s", delay, gap)
	}
}

func TestOrchestratorContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		if request.Topic == "first" {
			cancel()
		}
		return succeedWithText(request)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	if _, err := orchestrator.Start(ctx, []string{"first", "second"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	snapshot := orchestrator.Snapshot()
	if snapshot.State != batch.StateStopped || len(snapshot.Records) != 1 {
		t.Fatalf("expected stop after first topic, got state=%s records=%d", snapshot.State, len(snapshot.Records))
	}
}

func TestOrchestratorDropsTopicInterruptedByCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	generator := &scriptedGenerator{respond: func(request content.Request) content.Result {
		if request.Topic == "second" {
			cancel()
			return content.Failed("unexpected error: context canceled", llm.KindUnexpected)
		}
		return succeedWithText(request)
	}}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	if _, err := orchestrator.Start(ctx, []string{"first", "second", "third"}, batch.Settings{Generator: generator}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	snapshot := orchestrator.Snapshot()
	if snapshot.State != batch.StateStopped {
		t.Fatalf("expected stopped, got %s", snapshot.State)
	}
	if len(snapshot.Records) != 1 || snapshot.Records[0].Topic != "first" {
		t.Fatalf("expected only the completed topic, got %+v", snapshot.Records)
	}
	if snapshot.Stats.Failed != 0 || snapshot.Stats.Succeeded != 1 {
		t.Fatalf("unexpected stats %+v", snapshot.Stats)
	}
}

func TestOrchestratorPassesSettingsToGenerator(t *testing.T) {
	generator := &scriptedGenerator{respond: succeedWithText}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(0))
	settings := batch.Settings{
		Generator: generator,
		Keywords:  "k1, k2",
		Category:  content.CategoryGuide,
		Tone:      content.ToneHumorous,
		Model:     "gpt-4-turbo",
	}
	if _, err := orchestrator.Start(context.Background(), []string{"topic"}, settings); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRun(t, orchestrator)

	generator.mu.Lock()
	defer generator.mu.Unlock()
	request := generator.requests[0]
	expected := content.Request{Topic: "topic", Keywords: "k1, k2", Category: content.CategoryGuide, Tone: content.ToneHumorous, Model: "gpt-4-turbo"}
	if request != expected {
		t.Fatalf("expected %+v, got %+v", expected, request)
	}
}
