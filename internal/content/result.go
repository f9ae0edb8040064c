package content

import (
	"strings"
	"unicode/utf8"

	"github.com/temirov/tistory-batch/internal/llm"
)

const DefaultModel = "gpt-4o"

// Request describes one post to generate.
type Request struct {
	Topic    string
	Keywords string
	Category Category
	Tone     Tone
	Model    string
}

// Article is a successfully generated post.
type Article struct {
	Text      string
	CharCount int
	WordCount int
	Topic     string
	Keywords  string
	Model     string
}

// Failure carries a user-facing message and the classified cause.
type Failure struct {
	Message string
	Cause   llm.ErrorKind
}

// Result is exactly one of Article or Failure.
type Result struct {
	Article *Article
	Failure *Failure
}

func (result Result) Succeeded() bool {
	return result.Article != nil
}

// NewArticle cleans text and computes its counts.
func NewArticle(text string, request Request) *Article {
	cleaned := StripMarkdown(text)
	return &Article{
		Text:      cleaned,
		CharCount: utf8.RuneCountInString(cleaned),
		WordCount: len(strings.Fields(cleaned)),
		Topic:     request.Topic,
		Keywords:  request.Keywords,
		Model:     request.Model,
	}
}

func Succeeded(article *Article) Result {
	return Result{Article: article}
}

func Failed(message string, cause llm.ErrorKind) Result {
	return Result{Failure: &Failure{Message: message, Cause: cause}}
}

// FailedWith converts err into a Failure using the llm taxonomy.
func FailedWith(err error) Result {
	classified := llm.Classify(err)
	return Failed(classified.Error(), classified.Kind)
}
