package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/temirov/tistory-batch/internal/batch"
)

var (
	majorRule   = strings.Repeat("=", 80)
	minorRule   = strings.Repeat("-", 60)
	postDivider = strings.Repeat("●", 60)
)

// WriteReport writes every record, successes with their full text and
// failures with their error message.
func WriteReport(writer io.Writer, records []batch.Record, generatedAt time.Time) error {
	if len(records) == 0 {
		return ErrNoResults
	}
	stats := batch.SummarizeRecords(records)

	var builder strings.Builder
	builder.WriteString("# Tistory content generation results\n\n")
	fmt.Fprintf(&builder, "Generated at: %s\n", generatedAt.Format(timestampLayout))
	fmt.Fprintf(&builder, "Processed topics: %d\n\n", stats.Processed())
	fmt.Fprintf(&builder, "Succeeded: %d, Failed: %d\n\n", stats.Succeeded, stats.Failed)
	builder.WriteString(majorRule + "\n\n")

	for position, record := range records {
		fmt.Fprintf(&builder, "[%d] %s\n", position+1, record.Topic)
		fmt.Fprintf(&builder, "Completed at: %s\n", record.CompletedAt.Format(timestampLayout))
		if article := record.Result.Article; article != nil {
			fmt.Fprintf(&builder, "Status: success (%s chars, %s words)\n", groupThousands(article.CharCount), groupThousands(article.WordCount))
			fmt.Fprintf(&builder, "Model: %s\n", orNotAvailable(article.Model))
			builder.WriteString("\nContent:\n")
			builder.WriteString(minorRule + "\n")
			builder.WriteString(article.Text)
			builder.WriteString("\n" + minorRule + "\n\n")
		} else {
			builder.WriteString("Status: failure\n")
			fmt.Fprintf(&builder, "Error: %s\n\n", failureMessage(record))
		}
		builder.WriteString(majorRule + "\n\n")
	}

	_, err := io.WriteString(writer, builder.String())
	return err
}

// WriteDigestText writes only the successful posts, numbered from 001, as a
// single document ready for reading or copying.
func WriteDigestText(writer io.Writer, records []batch.Record, generatedAt time.Time) error {
	if len(records) == 0 {
		return ErrNoResults
	}
	successful := successfulRecords(records)
	if len(successful) == 0 {
		return ErrNoSuccessfulResults
	}
	stats := batch.SummarizeRecords(successful)

	var builder strings.Builder
	builder.WriteString(majorRule + "\n")
	builder.WriteString("              Tistory blog post collection\n")
	builder.WriteString(majorRule + "\n\n")
	fmt.Fprintf(&builder, "Generated at: %s\n", generatedAt.Format(timestampLayout))
	fmt.Fprintf(&builder, "Posts: %d\n", len(successful))
	fmt.Fprintf(&builder, "Total characters: %s\n\n", groupThousands(stats.TotalChars))
	builder.WriteString(majorRule + "\n\n")

	for position, record := range successful {
		article := record.Result.Article
		heading := fmt.Sprintf("[%03d] %s", position+1, record.Topic)
		builder.WriteString("\n\n" + heading + "\n")
		builder.WriteString(strings.Repeat("-", len([]rune(heading))) + "\n")
		fmt.Fprintf(&builder, "Written: %s\n", record.CompletedAt.Format(timestampLayout))
		fmt.Fprintf(&builder, "Characters: %s\n", groupThousands(article.CharCount))
		fmt.Fprintf(&builder, "Model: %s\n\n", orNotAvailable(article.Model))
		builder.WriteString(strings.TrimSpace(article.Text))
		builder.WriteString("\n\n" + postDivider + "\n")
	}

	builder.WriteString("\n\n" + majorRule + "\n")
	builder.WriteString("                        End of collection\n")
	builder.WriteString(majorRule + "\n")
	fmt.Fprintf(&builder, "\nFile created: %s\n", generatedAt.Format(timestampLayout))

	_, err := io.WriteString(writer, builder.String())
	return err
}

func failureMessage(record batch.Record) string {
	if record.Result.Failure == nil {
		return ""
	}
	return record.Result.Failure.Message
}

func orNotAvailable(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
