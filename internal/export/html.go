package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/temirov/tistory-batch/internal/batch"
)

const (
	digestTemplateName = "digest.html.tmpl"

	renderDigestErrorFormat = "render html digest: %w"
	renderPostErrorFormat   = "render post %q: %w"
)

//go:embed templates/digest.html.tmpl
var templateFiles embed.FS

var digestTemplate = template.Must(template.ParseFS(templateFiles, "templates/"+digestTemplateName))

// Hard wraps keep the single line breaks of generated text. Raw HTML in the
// text is never passed through.
var postRenderer = goldmark.New(goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()))

type digestPost struct {
	Number    int
	Label     string
	Topic     string
	Timestamp string
	CharCount string
	Model     string
	Text      string
}

type digestPage struct {
	GeneratedAt string
	PostCount   string
	TotalChars  string
	Posts       []digestPost
}

// WriteDigestHTML renders the successful posts as one standalone page with a
// table of contents linking to #post-N anchors. All topics and texts are
// escaped by html/template.
func WriteDigestHTML(writer io.Writer, records []batch.Record, generatedAt time.Time) error {
	if len(records) == 0 {
		return ErrNoResults
	}
	successful := successfulRecords(records)
	if len(successful) == 0 {
		return ErrNoSuccessfulResults
	}

	page := digestPage{
		GeneratedAt: generatedAt.Format(timestampLayout),
		PostCount:   groupThousands(len(successful)),
		TotalChars:  groupThousands(batch.SummarizeRecords(successful).TotalChars),
		Posts:       make([]digestPost, 0, len(successful)),
	}
	for position, record := range successful {
		article := record.Result.Article
		page.Posts = append(page.Posts, digestPost{
			Number:    position + 1,
			Label:     fmt.Sprintf("%03d", position+1),
			Topic:     record.Topic,
			Timestamp: record.CompletedAt.Format(timestampLayout),
			CharCount: groupThousands(article.CharCount),
			Model:     orNotAvailable(article.Model),
			Text:      strings.TrimSpace(article.Text),
		})
	}

	var buffer bytes.Buffer
	if err := digestTemplate.ExecuteTemplate(&buffer, digestTemplateName, page); err != nil {
		return fmt.Errorf(renderDigestErrorFormat, err)
	}
	_, err := buffer.WriteTo(writer)
	return err
}

// RenderPostHTML converts one cleaned article into an HTML fragment of
// paragraphs suitable for pasting into the Tistory editor.
func RenderPostHTML(record batch.Record) (string, error) {
	article := record.Result.Article
	if article == nil {
		return "", ErrNoSuccessfulResults
	}
	var buffer bytes.Buffer
	buffer.WriteString("<h2>" + template.HTMLEscapeString(record.Topic) + "</h2>\n")
	if err := postRenderer.Convert([]byte(article.Text), &buffer); err != nil {
		return "", fmt.Errorf(renderPostErrorFormat, record.Topic, err)
	}
	return buffer.String(), nil
}

// WritePostsHTML concatenates every successful post fragment, separated by
// horizontal rules. It backs the single-response posts download.
func WritePostsHTML(writer io.Writer, records []batch.Record) error {
	if len(records) == 0 {
		return ErrNoResults
	}
	successful := successfulRecords(records)
	if len(successful) == 0 {
		return ErrNoSuccessfulResults
	}
	var buffer bytes.Buffer
	for position, record := range successful {
		if position > 0 {
			buffer.WriteString("<hr>\n")
		}
		fragment, err := RenderPostHTML(record)
		if err != nil {
			return err
		}
		buffer.WriteString(fragment)
	}
	_, err := buffer.WriteTo(writer)
	return err
}
