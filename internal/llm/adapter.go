package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	TransportHTTP = "http"
	TransportSDK  = "sdk"

	DefaultEndpoint = "https://api.openai.com/v1"

	missingAPIKeyErrorMessage       = "API key is not configured; run `key set` or export the API key variable"
	unsupportedTransportErrorFormat = "unsupported transport %q (want %s or %s)"
)

// ChatClient is the provider surface used by the content generator.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Settings selects and configures a ChatClient.
type Settings struct {
	Transport  string
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// NewChatClient builds the configured transport. A blank API key is a
// configuration error.
func NewChatClient(settings Settings) (ChatClient, error) {
	apiKey := strings.TrimSpace(settings.APIKey)
	if apiKey == "" {
		return nil, NewConfigurationError(missingAPIKeyErrorMessage)
	}
	endpoint := strings.TrimSpace(settings.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	switch strings.ToLower(strings.TrimSpace(settings.Transport)) {
	case "", TransportHTTP:
		return Client{HTTPBaseURL: endpoint, APIKey: apiKey, HTTPClient: settings.HTTPClient}, nil
	case TransportSDK:
		return NewSDKClient(endpoint, apiKey, settings.HTTPClient), nil
	default:
		return nil, NewConfigurationError(fmt.Sprintf(unsupportedTransportErrorFormat, settings.Transport, TransportHTTP, TransportSDK))
	}
}
