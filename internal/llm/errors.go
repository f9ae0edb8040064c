package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind classifies failures of a single provider call.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindConfiguration
	KindNetwork
	KindProvider
)

const (
	timeoutErrorMessage        = "request timed out; check your network connection"
	networkErrorMessage        = "network error; check your internet connection"
	providerErrorFormat        = "API error: %d"
	providerDetailSuffixFormat = "\ndetail: %s"
	providerBodySuffixFormat   = "\nresponse: %s"
	unexpectedErrorFormat      = "unexpected error: %s"
	providerBodyPreviewLimit   = 200
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindConfiguration:
		return "configuration"
	case KindNetwork:
		return "network"
	case KindProvider:
		return "provider"
	default:
		return "unexpected"
	}
}

// Error is the classified error returned by chat clients.
type Error struct {
	Kind       ErrorKind
	Timeout    bool
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError reports missing or invalid credentials and settings.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// NewProviderError builds the error for a non-200 response. The provider
// message wins over the raw body when present.
func NewProviderError(statusCode int, providerMessage string, rawBody string) *Error {
	message := fmt.Sprintf(providerErrorFormat, statusCode)
	switch {
	case providerMessage != "":
		message += fmt.Sprintf(providerDetailSuffixFormat, providerMessage)
	case rawBody != "":
		message += fmt.Sprintf(providerBodySuffixFormat, truncateRunes(rawBody, providerBodyPreviewLimit))
	}
	return &Error{Kind: KindProvider, StatusCode: statusCode, Message: message}
}

// NewUnexpectedError wraps anything that is neither transport nor provider related.
func NewUnexpectedError(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: fmt.Sprintf(unexpectedErrorFormat, err), Err: err}
}

// Classify maps an arbitrary error onto the taxonomy. Errors that are
// already classified are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if isTimeout(err) {
		return &Error{Kind: KindNetwork, Timeout: true, Message: timeoutErrorMessage, Err: err}
	}
	if isConnectionFailure(err) {
		return &Error{Kind: KindNetwork, Message: networkErrorMessage, Err: err}
	}
	return NewUnexpectedError(err)
}

// KindOf reports the kind of err, KindUnexpected for unclassified errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnexpected
	}
	return Classify(err).Kind
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && !errors.Is(err, context.Canceled) {
		return true
	}
	return false
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
