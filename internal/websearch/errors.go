package websearch

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindUnsupportedProvider
	KindUpstream
	KindTransport
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupportedProvider:
		return "unsupported_provider"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// ProviderError is returned by providers and the selector. Status is an
// HTTP-like code: the upstream status for KindUpstream, 400 for caller
// mistakes, 500 otherwise.
type ProviderError struct {
	Kind     Kind
	Status   int
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorKind returns the Kind of the first ProviderError in err's chain.
func ErrorKind(err error) Kind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

func configurationError(provider, message string) *ProviderError {
	return &ProviderError{
		Kind:     KindConfiguration,
		Status:   http.StatusInternalServerError,
		Provider: provider,
		Message:  message,
	}
}

func upstreamError(provider string, status int, message string) *ProviderError {
	return &ProviderError{
		Kind:     KindUpstream,
		Status:   status,
		Provider: provider,
		Message:  message,
	}
}

func transportError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Kind:     KindTransport,
		Status:   http.StatusInternalServerError,
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}
