package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/temirov/tistory-batch/internal/batch"
)

const (
	byteOrderMark = "\ufeff"

	StatusSuccess = "success"
	StatusFailure = "failure"

	csvWriteErrorFormat = "write csv row %d: %w"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"topic", "status", "char_count", "word_count", "model", "timestamp", "content", "error_message"}

// WriteCSV writes one row per record behind a UTF-8 byte order mark so
// spreadsheet tools detect the encoding. Failure rows leave the count, model
// and content columns empty.
func WriteCSV(writer io.Writer, records []batch.Record) error {
	if len(records) == 0 {
		return ErrNoResults
	}
	if _, err := io.WriteString(writer, byteOrderMark); err != nil {
		return fmt.Errorf(csvWriteErrorFormat, 0, err)
	}
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(CSVHeader); err != nil {
		return fmt.Errorf(csvWriteErrorFormat, 0, err)
	}
	for index, record := range records {
		if err := csvWriter.Write(csvRow(record)); err != nil {
			return fmt.Errorf(csvWriteErrorFormat, index+1, err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func csvRow(record batch.Record) []string {
	timestamp := record.CompletedAt.Format(timestampLayout)
	if article := record.Result.Article; article != nil {
		return []string{
			record.Topic,
			StatusSuccess,
			strconv.Itoa(article.CharCount),
			strconv.Itoa(article.WordCount),
			article.Model,
			timestamp,
			article.Text,
			"",
		}
	}
	message := ""
	if record.Result.Failure != nil {
		message = record.Result.Failure.Message
	}
	return []string{record.Topic, StatusFailure, "", "", "", timestamp, "", message}
}
