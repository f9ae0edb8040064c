package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/fsops"
)

const (
	postFileNameFormat = "%03d_%s.html"
	slugRuneLimit      = 40

	exportFileErrorFormat = "export %s to %s: %w"
)

// Exporter writes records to files through fsops. Failed writes never touch
// the records themselves.
type Exporter struct {
	ops    fsops.Ops
	now    func() time.Time
	logger *zap.Logger
}

func NewExporter(fileSystem fsops.FS, logger *zap.Logger) Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Exporter{ops: fsops.NewOps(fileSystem), now: time.Now, logger: logger}
}

// WithClock returns a copy using now for generation timestamps.
func (exporter Exporter) WithClock(now func() time.Time) Exporter {
	exporter.now = now
	return exporter
}

// Render serializes records in format. Posts render as one concatenated
// document.
func Render(format Format, records []batch.Record, generatedAt time.Time) ([]byte, error) {
	var buffer bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(&buffer, records)
	case FormatReport:
		err = WriteReport(&buffer, records, generatedAt)
	case FormatDigestText:
		err = WriteDigestText(&buffer, records, generatedAt)
	case FormatDigestHTML:
		err = WriteDigestHTML(&buffer, records, generatedAt)
	case FormatPosts:
		err = WritePostsHTML(&buffer, records)
	default:
		_, err = ParseFormat(string(format))
	}
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Export writes records in format under path and returns the written file
// paths. An empty path means DefaultFileName inside directory.
func (exporter Exporter) Export(format Format, path string, directory string, records []batch.Record) ([]string, error) {
	generatedAt := exporter.now()
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(directory, DefaultFileName(format, generatedAt))
	}
	if format == FormatPosts {
		return exporter.exportPosts(path, records)
	}

	data, renderErr := Render(format, records, generatedAt)
	if renderErr != nil {
		return nil, renderErr
	}
	if err := exporter.ops.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf(exportFileErrorFormat, format, path, err)
	}
	exporter.logger.Info("export written", zap.String("format", string(format)), zap.String("path", path), zap.Int("records", len(records)))
	return []string{path}, nil
}

func (exporter Exporter) exportPosts(directory string, records []batch.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, ErrNoResults
	}
	successful := successfulRecords(records)
	if len(successful) == 0 {
		return nil, ErrNoSuccessfulResults
	}
	written := make([]string, 0, len(successful))
	for position, record := range successful {
		fragment, renderErr := RenderPostHTML(record)
		if renderErr != nil {
			return written, renderErr
		}
		target := filepath.Join(directory, fmt.Sprintf(postFileNameFormat, position+1, Slug(record.Topic)))
		if err := exporter.ops.WriteFileAtomic(target, []byte(fragment), 0o644); err != nil {
			return written, fmt.Errorf(exportFileErrorFormat, FormatPosts, target, err)
		}
		written = append(written, target)
	}
	exporter.logger.Info("posts exported", zap.String("directory", directory), zap.Int("posts", len(written)))
	return written, nil
}

// Slug keeps letters and digits of any script and joins the rest with
// underscores.
func Slug(topic string) string {
	var builder strings.Builder
	pendingSeparator := false
	written := 0
	for _, character := range strings.TrimSpace(topic) {
		if written >= slugRuneLimit {
			break
		}
		if unicode.IsLetter(character) || unicode.IsDigit(character) {
			if pendingSeparator && builder.Len() > 0 {
				builder.WriteRune('_')
				written++
			}
			builder.WriteRune(unicode.ToLower(character))
			written++
			pendingSeparator = false
			continue
		}
		pendingSeparator = true
	}
	if builder.Len() == 0 {
		return "post"
	}
	return builder.String()
}
