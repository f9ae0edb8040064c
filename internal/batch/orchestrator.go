package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/llm"
)

const (
	DefaultDelay = time.Second

	missingGeneratorErrorMessage = "no content generator configured; set an API key first"
	panicFailureFormat           = "unexpected error: %v"
)

var (
	ErrNoTopics       = errors.New("no topics to process")
	ErrAlreadyRunning = errors.New("a batch is already running")
	ErrStillStopping  = errors.New("the previous batch is still finishing its current topic")
)

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	State   State
	RunID   string
	Current int
	Total   int
	Topics  []string
	Records []Record
	Stats   Stats
}

type subscription struct {
	identifier int
	listener   Listener
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDelay sets the pause between consecutive topics.
func WithDelay(delay time.Duration) Option {
	return func(orchestrator *Orchestrator) {
		if delay >= 0 {
			orchestrator.delay = delay
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(orchestrator *Orchestrator) {
		if now != nil {
			orchestrator.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(orchestrator *Orchestrator) {
		if logger != nil {
			orchestrator.logger = logger
		}
	}
}

// Orchestrator runs one batch at a time. A worker goroutine processes topics
// and sends events over a buffered channel; a dispatcher goroutine applies
// them to the orchestrator state and then notifies listeners. The worker
// never touches the record list.
type Orchestrator struct {
	delay  time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu            sync.Mutex
	state         State
	run           *Run
	current       int
	records       []Record
	stats         Stats
	subscriptions []subscription
	nextListener  int
	workerDone    chan struct{}
	runDone       chan struct{}
}

func NewOrchestrator(options ...Option) *Orchestrator {
	orchestrator := &Orchestrator{
		delay:  DefaultDelay,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(orchestrator)
	}
	return orchestrator
}

// Start validates the input, resets previous results and launches a run. It
// returns as soon as the worker is started.
func (orchestrator *Orchestrator) Start(ctx context.Context, topics []string, settings Settings) (string, error) {
	cleaned := CleanTopics(topics)
	if len(cleaned) == 0 {
		return "", ErrNoTopics
	}
	if settings.Generator == nil {
		return "", llm.NewConfigurationError(missingGeneratorErrorMessage)
	}
	if limit := effectiveLimit(settings.Limit); len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}

	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()

	if orchestrator.state == StateRunning {
		return "", ErrAlreadyRunning
	}
	if orchestrator.workerDone != nil {
		switch orchestrator.state {
		case StateCompleted, StateStopped:
			// the terminal event was already sent; the worker is returning
			<-orchestrator.workerDone
		default:
			select {
			case <-orchestrator.workerDone:
			default:
				return "", ErrStillStopping
			}
		}
	}

	run := newRun(uuid.NewString(), cleaned, settings)
	events := make(chan Event, 2*run.Total()+1)
	workerDone := make(chan struct{})
	runDone := make(chan struct{})

	orchestrator.run = run
	orchestrator.state = StateRunning
	orchestrator.current = 0
	orchestrator.records = nil
	orchestrator.stats = Stats{Total: run.Total()}
	orchestrator.workerDone = workerDone
	orchestrator.runDone = runDone

	orchestrator.logger.Info("batch started",
		zap.String("run_id", run.ID),
		zap.Int("topics", run.Total()),
		zap.String("model", settings.Model),
	)

	go orchestrator.work(ctx, run, events, workerDone)
	go orchestrator.dispatch(run, events, runDone)
	return run.ID, nil
}

// Stop asks the running batch to finish after the in-flight topic. It is a
// no-op unless a batch is running.
func (orchestrator *Orchestrator) Stop() {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	if orchestrator.state != StateRunning || orchestrator.run == nil {
		return
	}
	orchestrator.run.requestStop()
}

// Clear stops any running batch, forgets its results and returns to idle.
// Events still in flight from the cleared run are discarded.
func (orchestrator *Orchestrator) Clear() {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	if orchestrator.run != nil {
		orchestrator.run.requestStop()
	}
	orchestrator.run = nil
	orchestrator.state = StateIdle
	orchestrator.current = 0
	orchestrator.records = nil
	orchestrator.stats = Stats{}
	orchestrator.runDone = nil
}

func (orchestrator *Orchestrator) Snapshot() Snapshot {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	snapshot := Snapshot{
		State:   orchestrator.state,
		Current: orchestrator.current,
		Records: append([]Record(nil), orchestrator.records...),
		Stats:   orchestrator.stats,
	}
	if orchestrator.run != nil {
		snapshot.RunID = orchestrator.run.ID
		snapshot.Total = orchestrator.run.Total()
		snapshot.Topics = append([]string(nil), orchestrator.run.Topics...)
	}
	return snapshot
}

// Results returns a copy of the records accumulated so far.
func (orchestrator *Orchestrator) Results() []Record {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	return append([]Record(nil), orchestrator.records...)
}

// Wait blocks until the current run's terminal event has been applied and
// delivered, or ctx ends.
func (orchestrator *Orchestrator) Wait(ctx context.Context) error {
	orchestrator.mu.Lock()
	runDone := orchestrator.runDone
	orchestrator.mu.Unlock()
	if runDone == nil {
		return nil
	}
	select {
	case <-runDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers listener and returns a function that removes it.
func (orchestrator *Orchestrator) Subscribe(listener Listener) func() {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	orchestrator.nextListener++
	identifier := orchestrator.nextListener
	orchestrator.subscriptions = append(orchestrator.subscriptions, subscription{identifier: identifier, listener: listener})
	return func() {
		orchestrator.mu.Lock()
		defer orchestrator.mu.Unlock()
		kept := orchestrator.subscriptions[:0]
		for _, existing := range orchestrator.subscriptions {
			if existing.identifier != identifier {
				kept = append(kept, existing)
			}
		}
		orchestrator.subscriptions = kept
	}
}

func (orchestrator *Orchestrator) work(ctx context.Context, run *Run, events chan<- Event, done chan<- struct{}) {
	defer close(events)
	defer close(done)

	startedAt := orchestrator.now()
	stats := Stats{Total: run.Total()}
	for index, topic := range run.Topics {
		if run.stopRequested() || ctx.Err() != nil {
			break
		}
		events <- Event{Kind: EventProgress, RunID: run.ID, Index: index, Total: run.Total(), Preview: Preview(topic)}

		topicStartedAt := orchestrator.now()
		result := orchestrator.generate(ctx, run, topic)
		completedAt := orchestrator.now()
		// A call cut short by cancellation is not a result.
		if ctx.Err() != nil && !result.Succeeded() {
			break
		}
		stats.add(result)

		record := Record{
			Index:       index,
			Topic:       topic,
			Result:      result,
			CompletedAt: completedAt,
			Duration:    completedAt.Sub(topicStartedAt),
		}
		events <- Event{Kind: EventResult, RunID: run.ID, Index: index, Total: run.Total(), Preview: Preview(topic), Record: &record}

		if index < run.Total()-1 {
			orchestrator.pause(ctx, run)
		}
	}
	stats.Elapsed = orchestrator.now().Sub(startedAt)

	terminal := EventCompleted
	if run.stopRequested() || ctx.Err() != nil {
		terminal = EventStopped
	}
	events <- Event{Kind: terminal, RunID: run.ID, Index: stats.Processed(), Total: run.Total(), Stats: stats}
}

func (orchestrator *Orchestrator) generate(ctx context.Context, run *Run, topic string) (result content.Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			orchestrator.logger.Error("generator panicked",
				zap.String("run_id", run.ID),
				zap.String("topic", topic),
				zap.Any("panic", recovered),
			)
			result = content.Failed(fmt.Sprintf(panicFailureFormat, recovered), llm.KindUnexpected)
		}
	}()
	return run.Settings.Generator.Generate(ctx, content.Request{
		Topic:    topic,
		Keywords: run.Settings.Keywords,
		Category: run.Settings.Category,
		Tone:     run.Settings.Tone,
		Model:    run.Settings.Model,
	})
}

// pause waits out the courtesy delay; a stop request or ctx ends it early.
func (orchestrator *Orchestrator) pause(ctx context.Context, run *Run) {
	if orchestrator.delay <= 0 {
		return
	}
	timer := time.NewTimer(orchestrator.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-run.stopped:
	case <-ctx.Done():
	}
}

func (orchestrator *Orchestrator) dispatch(run *Run, events <-chan Event, done chan<- struct{}) {
	defer close(done)
	for event := range events {
		listeners, current := orchestrator.apply(run, event)
		if !current {
			continue
		}
		for _, listener := range listeners {
			listener(event)
		}
	}
}

// apply folds event into the state. Events of a replaced or cleared run are
// reported as stale.
func (orchestrator *Orchestrator) apply(run *Run, event Event) ([]Listener, bool) {
	orchestrator.mu.Lock()
	defer orchestrator.mu.Unlock()
	if orchestrator.run != run {
		return nil, false
	}

	switch event.Kind {
	case EventProgress:
		orchestrator.current = event.Index + 1
	case EventResult:
		orchestrator.records = append(orchestrator.records, *event.Record)
		orchestrator.stats.add(event.Record.Result)
	case EventCompleted, EventStopped:
		orchestrator.stats = event.Stats
		orchestrator.state = StateCompleted
		if event.Kind == EventStopped {
			orchestrator.state = StateStopped
		}
		orchestrator.logger.Info("batch finished",
			zap.String("run_id", run.ID),
			zap.String("state", orchestrator.state.String()),
			zap.Int("succeeded", event.Stats.Succeeded),
			zap.Int("failed", event.Stats.Failed),
			zap.Int("total_chars", event.Stats.TotalChars),
			zap.Duration("elapsed", event.Stats.Elapsed),
		)
	}

	listeners := make([]Listener, 0, len(orchestrator.subscriptions))
	for _, existing := range orchestrator.subscriptions {
		listeners = append(listeners, existing.listener)
	}
	return listeners, true
}
