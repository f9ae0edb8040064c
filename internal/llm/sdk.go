package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// SDKClient implements ChatClient on top of the official openai-go SDK.
type SDKClient struct {
	client openai.Client
}

// NewSDKClient configures the SDK with retries disabled so that every call is
// attempted exactly once.
func NewSDKClient(baseURL string, apiKey string, httpClient *http.Client) *SDKClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(trimmed, "/")+"/"))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &SDKClient{client: openai.NewClient(opts...)}
}

func (s *SDKClient) CreateChatCompletion(ctx context.Context, requestPayload ChatCompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(requestPayload.Messages))
	for _, message := range requestPayload.Messages {
		switch message.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(message.Content))
		case "assistant":
			messages = append(messages, openai.ChatCompletionMessageParamOfAssistant(message.Content))
		default:
			messages = append(messages, openai.UserMessage(message.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(requestPayload.Model),
		Messages: messages,
	}
	if requestPayload.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(requestPayload.MaxTokens))
	}
	if requestPayload.Temperature != nil {
		params.Temperature = openai.Float(*requestPayload.Temperature)
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifySDKError(err)
	}
	if len(completion.Choices) == 0 {
		return "", NewUnexpectedError(errors.New("chat completion returned no choices"))
	}
	trimmed := strings.TrimSpace(completion.Choices[0].Message.Content)
	if trimmed == "" {
		if refusal := strings.TrimSpace(string(completion.Choices[0].Message.Refusal)); refusal != "" {
			return "", NewUnexpectedError(errors.New("chat completion refusal: " + refusal))
		}
		return "", NewUnexpectedError(errors.New("chat completion returned empty message (finish_reason=" + string(completion.Choices[0].FinishReason) + ")"))
	}
	return trimmed, nil
}

func (s *SDKClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := s.client.Models.List(ctx)
	if err != nil {
		return nil, classifySDKError(err)
	}
	identifiers := make([]string, 0, len(page.Data))
	for _, model := range page.Data {
		identifiers = append(identifiers, model.ID)
	}
	return identifiers, nil
}

func classifySDKError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return NewProviderError(apiErr.StatusCode, strings.TrimSpace(apiErr.Message), apiErr.RawJSON())
	}
	return Classify(err)
}
