package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/temirov/tistory-batch/internal/batch"
)

// Format names an export target.
type Format string

const (
	FormatCSV        Format = "csv"
	FormatReport     Format = "txt"
	FormatDigestText Format = "digest-txt"
	FormatDigestHTML Format = "digest-html"
	FormatPosts      Format = "posts"

	timestampLayout     = "2006-01-02 15:04:05"
	fileTimestampLayout = "20060102_150405"

	unknownFormatErrorFormat = "unknown export format %q (valid: %s)"
)

var (
	ErrNoResults           = errors.New("there are no results to export")
	ErrNoSuccessfulResults = errors.New("there are no successful results to export")
)

func Formats() []Format {
	return []Format{FormatCSV, FormatReport, FormatDigestText, FormatDigestHTML, FormatPosts}
}

func ParseFormat(raw string) (Format, error) {
	normalized := Format(strings.ToLower(strings.TrimSpace(raw)))
	for _, format := range Formats() {
		if normalized == format {
			return format, nil
		}
	}
	names := make([]string, 0, len(Formats()))
	for _, format := range Formats() {
		names = append(names, string(format))
	}
	return "", fmt.Errorf(unknownFormatErrorFormat, raw, strings.Join(names, ", "))
}

// ContentType is the media type served for the format. Posts are bundled as
// a single HTML document when served over HTTP.
func (format Format) ContentType() string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatDigestHTML, FormatPosts:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// DefaultFileName is the timestamped name used when no path is given. Posts
// export into a directory of that name.
func DefaultFileName(format Format, now time.Time) string {
	stamp := now.Format(fileTimestampLayout)
	switch format {
	case FormatCSV:
		return "tistory_contents_" + stamp + ".csv"
	case FormatDigestText:
		return "tistory_digest_" + stamp + ".txt"
	case FormatDigestHTML:
		return "tistory_digest_" + stamp + ".html"
	case FormatPosts:
		return "tistory_posts_" + stamp
	default:
		return "tistory_contents_" + stamp + ".txt"
	}
}

func successfulRecords(records []batch.Record) []batch.Record {
	successful := make([]batch.Record, 0, len(records))
	for _, record := range records {
		if record.Result.Succeeded() {
			successful = append(successful, record)
		}
	}
	return successful
}

var countPrinter = message.NewPrinter(language.English)

// groupThousands renders 2500 as "2,500".
func groupThousands(value int) string {
	return countPrinter.Sprintf("%d", value)
}
