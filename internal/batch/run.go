package batch

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/temirov/tistory-batch/internal/content"
)

const (
	DefaultLimit = 100

	previewRuneLimit = 30
)

// Generator produces one Result per Request. *content.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, request content.Request) content.Result
}

// Settings are fixed for the lifetime of a run.
type Settings struct {
	Generator Generator
	Keywords  string
	Category  content.Category
	Tone      content.Tone
	Model     string
	Limit     int
}

// Run is one batch. Only its worker reads the topics and settings after Start.
type Run struct {
	ID       string
	Topics   []string
	Settings Settings

	stopOnce sync.Once
	stopped  chan struct{}
}

func newRun(identifier string, topics []string, settings Settings) *Run {
	return &Run{ID: identifier, Topics: topics, Settings: settings, stopped: make(chan struct{})}
}

func (run *Run) Total() int {
	return len(run.Topics)
}

func (run *Run) requestStop() {
	run.stopOnce.Do(func() { close(run.stopped) })
}

func (run *Run) stopRequested() bool {
	select {
	case <-run.stopped:
		return true
	default:
		return false
	}
}

// Record is the outcome of one topic, in run order.
type Record struct {
	Index       int
	Topic       string
	Result      content.Result
	CompletedAt time.Time
	Duration    time.Duration
}

// Stats summarizes a run. TotalChars counts successful articles only.
type Stats struct {
	Total      int
	Succeeded  int
	Failed     int
	TotalChars int
	Elapsed    time.Duration
}

func (stats Stats) Processed() int {
	return stats.Succeeded + stats.Failed
}

func (stats *Stats) add(result content.Result) {
	if result.Succeeded() {
		stats.Succeeded++
		stats.TotalChars += result.Article.CharCount
		return
	}
	stats.Failed++
}

// SummarizeRecords recomputes statistics from records, with elapsed left zero.
func SummarizeRecords(records []Record) Stats {
	stats := Stats{Total: len(records)}
	for _, record := range records {
		stats.add(record.Result)
	}
	return stats
}

// ParseTopics splits text into trimmed, non-blank lines.
func ParseTopics(text string) []string {
	return CleanTopics(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}

// CleanTopics trims every entry and drops the blank ones, keeping order.
func CleanTopics(lines []string) []string {
	topics := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}

// ResolveLimit parses a user supplied limit; anything unparsable or not
// positive means DefaultLimit.
func ResolveLimit(raw string) int {
	parsed, parseErr := strconv.Atoi(strings.TrimSpace(raw))
	if parseErr != nil || parsed <= 0 {
		return DefaultLimit
	}
	return parsed
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// Preview shortens a topic for progress display.
func Preview(topic string) string {
	runes := []rune(topic)
	if len(runes) <= previewRuneLimit {
		return topic
	}
	return string(runes[:previewRuneLimit]) + "..."
}
