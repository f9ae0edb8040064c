package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	chatCompletionsPath = "/chat/completions"
	modelsPath          = "/models"
)

// Client is the plain net/http transport for OpenAI-compatible endpoints.
type Client struct {
	HTTPBaseURL string
	APIKey      string
	HTTPClient  *http.Client
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessageResponse struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Refusal   json.RawMessage `json:"refusal,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

type chatCompletionChoice struct {
	Message      chatMessageResponse `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
}

type modelListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type providerErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func truncateForLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// CreateChatCompletion performs exactly one POST and returns the trimmed
// assistant text. Every returned error is an *Error.
func (c Client) CreateChatCompletion(ctx context.Context, requestPayload ChatCompletionRequest) (string, error) {
	requestBytes, marshalErr := json.Marshal(requestPayload)
	if marshalErr != nil {
		return "", NewUnexpectedError(marshalErr)
	}
	bodyBytes, statusCode, doErr := c.do(ctx, http.MethodPost, chatCompletionsPath, bytes.NewReader(requestBytes))
	if doErr != nil {
		return "", doErr
	}
	if statusCode != http.StatusOK {
		return "", providerErrorFromBody(statusCode, bodyBytes)
	}
	bodyPreview := truncateForLog(string(bodyBytes), 512)

	var completion ChatCompletionResponse
	if decodeErr := json.Unmarshal(bodyBytes, &completion); decodeErr != nil {
		return "", NewUnexpectedError(fmt.Errorf("decode chat completion: %w (body=%s)", decodeErr, bodyPreview))
	}
	if len(completion.Choices) == 0 {
		return "", NewUnexpectedError(fmt.Errorf("chat completion returned no choices (body=%s)", bodyPreview))
	}

	choice := completion.Choices[0]
	content, extractErr := extractMessageContent(choice.Message)
	if extractErr != nil {
		return "", NewUnexpectedError(fmt.Errorf("chat completion parse error: %w", extractErr))
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		if refusal := decodeRefusal(choice.Message.Refusal); refusal != "" {
			return "", NewUnexpectedError(fmt.Errorf("chat completion refusal: %s", refusal))
		}
		return "", NewUnexpectedError(fmt.Errorf("chat completion returned empty message (finish_reason=%s)", choice.FinishReason))
	}
	return trimmed, nil
}

// ListModels returns the raw model identifiers exposed by the provider.
func (c Client) ListModels(ctx context.Context) ([]string, error) {
	bodyBytes, statusCode, doErr := c.do(ctx, http.MethodGet, modelsPath, nil)
	if doErr != nil {
		return nil, doErr
	}
	if statusCode != http.StatusOK {
		return nil, providerErrorFromBody(statusCode, bodyBytes)
	}
	var listing modelListResponse
	if decodeErr := json.Unmarshal(bodyBytes, &listing); decodeErr != nil {
		return nil, NewUnexpectedError(fmt.Errorf("decode model list: %w", decodeErr))
	}
	identifiers := make([]string, 0, len(listing.Data))
	for _, model := range listing.Data {
		identifiers = append(identifiers, model.ID)
	}
	return identifiers, nil
}

func (c Client) do(ctx context.Context, method string, path string, body io.Reader) ([]byte, int, error) {
	httpRequest, buildErr := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.HTTPBaseURL, "/")+path, body)
	if buildErr != nil {
		return nil, 0, NewUnexpectedError(buildErr)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpResponse, httpErr := httpClient.Do(httpRequest)
	if httpErr != nil {
		return nil, 0, Classify(httpErr)
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, httpResponse.StatusCode, Classify(readErr)
	}
	return bodyBytes, httpResponse.StatusCode, nil
}

func providerErrorFromBody(statusCode int, bodyBytes []byte) *Error {
	var envelope providerErrorEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err == nil && envelope.Error != nil {
		if message := strings.TrimSpace(envelope.Error.Message); message != "" {
			return NewProviderError(statusCode, message, "")
		}
	}
	return NewProviderError(statusCode, "", string(bodyBytes))
}

func extractMessageContent(message chatMessageResponse) (string, error) {
	if len(message.Content) == 0 || string(message.Content) == "null" {
		refusal := decodeRefusal(message.Refusal)
		if refusal != "" {
			return "", fmt.Errorf("chat completion refusal: %s", refusal)
		}
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(message.Content, &asString); err == nil {
		return asString, nil
	}

	if text, ok := extractRichText(message.Content); ok {
		return text, nil
	}

	refusal := decodeRefusal(message.Refusal)
	if refusal != "" {
		return "", fmt.Errorf("chat completion refusal: %s", refusal)
	}

	if len(message.ToolCalls) > 0 && string(message.ToolCalls) != "null" {
		return "", errors.New("chat completion produced tool_calls: " + truncateForLog(string(message.ToolCalls), 240))
	}

	return "", fmt.Errorf("unsupported message content: %s", truncateForLog(string(message.Content), 240))
}

func extractRichText(raw json.RawMessage) (string, bool) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", false
	}
	fragments := flattenText(data)
	if len(fragments) == 0 {
		return "", false
	}
	combined := strings.TrimSpace(strings.Join(fragments, "\n"))
	if combined == "" {
		return "", false
	}
	return combined, true
}

func flattenText(value any) []string {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	case []any:
		var collected []string
		for _, item := range v {
			collected = append(collected, flattenText(item)...)
		}
		return collected
	case map[string]any:
		if text, ok := v["text"]; ok {
			return flattenText(text)
		}
		if content, ok := v["content"]; ok {
			return flattenText(content)
		}
		return nil
	default:
		return nil
	}
}

func decodeRefusal(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var refusalString string
	if err := json.Unmarshal(raw, &refusalString); err == nil {
		return strings.TrimSpace(refusalString)
	}
	if text, ok := extractRichText(raw); ok {
		return text
	}
	return strings.TrimSpace(truncateForLog(string(raw), 200))
}
