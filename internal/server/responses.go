package server

import (
	"strings"
	"time"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/export"
)

type errorResponse struct {
	Error string `json:"error"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type credentialsRequest struct {
	APIKey string `json:"api_key"`
}

type credentialsResponse struct {
	APIKey string `json:"api_key"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

// limitField accepts the limit as a JSON number or string; parsing is left
// to batch.ResolveLimit so that junk falls back to the default.
type limitField string

func (field *limitField) UnmarshalJSON(data []byte) error {
	*field = limitField(strings.Trim(strings.TrimSpace(string(data)), `"`))
	return nil
}

type startBatchRequest struct {
	Topics   []string   `json:"topics"`
	Text     string     `json:"text"`
	Keywords *string    `json:"keywords"`
	Category string     `json:"category"`
	Tone     string     `json:"tone"`
	Model    string     `json:"model"`
	Limit    limitField `json:"limit"`
}

type startBatchResponse struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`
}

type statsResponse struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	TotalChars int   `json:"total_chars"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}

type recordResponse struct {
	Index        int       `json:"index"`
	Topic        string    `json:"topic"`
	Status       string    `json:"status"`
	CharCount    int       `json:"char_count,omitempty"`
	WordCount    int       `json:"word_count,omitempty"`
	Model        string    `json:"model,omitempty"`
	Content      string    `json:"content,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Cause        string    `json:"cause,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMS   int64     `json:"duration_ms"`
}

type statusResponse struct {
	State   string           `json:"state"`
	RunID   string           `json:"run_id,omitempty"`
	Current int              `json:"current"`
	Total   int              `json:"total"`
	Stats   statsResponse    `json:"stats"`
	Records []recordResponse `json:"records"`
}

func newStatusResponse(snapshot batch.Snapshot) statusResponse {
	records := make([]recordResponse, 0, len(snapshot.Records))
	for _, record := range snapshot.Records {
		records = append(records, newRecordResponse(record))
	}
	return statusResponse{
		State:   snapshot.State.String(),
		RunID:   snapshot.RunID,
		Current: snapshot.Current,
		Total:   snapshot.Total,
		Stats: statsResponse{
			Total:      snapshot.Stats.Total,
			Succeeded:  snapshot.Stats.Succeeded,
			Failed:     snapshot.Stats.Failed,
			TotalChars: snapshot.Stats.TotalChars,
			ElapsedMS:  snapshot.Stats.Elapsed.Milliseconds(),
		},
		Records: records,
	}
}

func newRecordResponse(record batch.Record) recordResponse {
	response := recordResponse{
		Index:       record.Index,
		Topic:       record.Topic,
		CompletedAt: record.CompletedAt,
		DurationMS:  record.Duration.Milliseconds(),
	}
	if article := record.Result.Article; article != nil {
		response.Status = export.StatusSuccess
		response.CharCount = article.CharCount
		response.WordCount = article.WordCount
		response.Model = article.Model
		response.Content = article.Text
		return response
	}
	response.Status = export.StatusFailure
	if failure := record.Result.Failure; failure != nil {
		response.ErrorMessage = failure.Message
		response.Cause = failure.Cause.String()
	}
	return response
}
