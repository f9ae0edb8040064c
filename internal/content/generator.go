package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/tistory-batch/internal/llm"
)

const (
	DefaultMaxTokens         = 4000
	DefaultTemperature       = 0.7
	DefaultCompletionTimeout = 120 * time.Second
	DefaultModelsTimeout     = 30 * time.Second

	missingClientErrorMessage = "content generator has no chat client; configure an API key"
	timeoutFailureFormat      = "%s (%s)"
)

// Options tunes the completion request.
type Options struct {
	MaxTokens         int
	Temperature       float64
	CompletionTimeout time.Duration
	ModelsTimeout     time.Duration
	Language          string
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		CompletionTimeout: DefaultCompletionTimeout,
		ModelsTimeout:     DefaultModelsTimeout,
		Language:          DefaultLanguage,
	}
}

// Generator turns one Request into one Result with a single completion call.
// It holds no per-call state and is safe for concurrent use.
type Generator struct {
	client  llm.ChatClient
	logger  *zap.Logger
	options Options
}

func NewGenerator(client llm.ChatClient, logger *zap.Logger, options Options) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if options.MaxTokens <= 0 {
		options.MaxTokens = defaults.MaxTokens
	}
	if options.CompletionTimeout <= 0 {
		options.CompletionTimeout = defaults.CompletionTimeout
	}
	if options.ModelsTimeout <= 0 {
		options.ModelsTimeout = defaults.ModelsTimeout
	}
	if strings.TrimSpace(options.Language) == "" {
		options.Language = defaults.Language
	}
	return &Generator{client: client, logger: logger, options: options}
}

// Generate never returns an error; failures are reported in the Result.
func (generator *Generator) Generate(ctx context.Context, request Request) Result {
	if generator == nil || generator.client == nil {
		return Failed(missingClientErrorMessage, llm.KindConfiguration)
	}
	if strings.TrimSpace(request.Model) == "" {
		request.Model = DefaultModel
	}
	if request.Category == "" {
		request.Category = CategoryGeneral
	}
	if request.Tone == "" {
		request.Tone = ToneFriendly
	}

	temperature := generator.options.Temperature
	completionRequest := llm.ChatCompletionRequest{
		Model: request.Model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: BuildPrompt(request, generator.options.Language)},
		},
		MaxTokens:   generator.options.MaxTokens,
		Temperature: &temperature,
	}

	callContext, cancel := context.WithTimeout(ctx, generator.options.CompletionTimeout)
	defer cancel()

	startedAt := time.Now()
	text, completionErr := generator.client.CreateChatCompletion(callContext, completionRequest)
	if completionErr != nil {
		classified := llm.Classify(completionErr)
		message := classified.Error()
		if classified.Timeout && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			message = timeoutMessage(message, generator.options.CompletionTimeout)
		}
		generator.logger.Warn("generation failed",
			zap.String("topic", request.Topic),
			zap.String("model", request.Model),
			zap.String("cause", classified.Kind.String()),
			zap.Error(classified),
		)
		return Failed(message, classified.Kind)
	}

	article := NewArticle(text, request)
	generator.logger.Info("generation succeeded",
		zap.String("topic", request.Topic),
		zap.String("model", request.Model),
		zap.Int("char_count", article.CharCount),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	return Succeeded(article)
}

func timeoutMessage(message string, timeout time.Duration) string {
	return fmt.Sprintf(timeoutFailureFormat, strings.TrimSpace(message), timeout.Round(time.Second))
}
