package websearch

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Settings carries the credentials and endpoints providers are built from.
// Empty base URLs fall back to the public endpoints.
type Settings struct {
	GoogleAPIKey string
	GoogleCX     string
	BingAPIKey   string

	GoogleBaseURL     string
	BingBaseURL       string
	DuckDuckGoBaseURL string

	// UserAgent overrides the browser identification sent to DuckDuckGo.
	UserAgent string
	Timeout   time.Duration

	// HTTPClient is shared by every provider built from these settings.
	// When nil a client with Timeout is created per provider.
	HTTPClient *http.Client
}

func (s Settings) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Engines lists the supported engine names.
func Engines() []string {
	return []string{EngineGoogle, EngineBing, EngineDuckDuckGo}
}

// NewProvider returns the provider registered under name. Matching ignores
// case and surrounding whitespace. Missing credentials are not checked here;
// the returned provider reports them from Search.
func NewProvider(name string, s Settings) (Provider, error) {
	client := s.client()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EngineGoogle:
		return NewGoogleProvider(s.GoogleAPIKey, s.GoogleCX, s.GoogleBaseURL, client), nil
	case EngineDuckDuckGo:
		return NewDuckDuckGoProvider(s.DuckDuckGoBaseURL, s.UserAgent, client), nil
	case EngineBing:
		return NewBingProvider(s.BingAPIKey, s.BingBaseURL, client), nil
	default:
		return nil, &ProviderError{
			Kind:     KindUnsupportedProvider,
			Status:   http.StatusBadRequest,
			Provider: name,
			Message:  fmt.Sprintf("unsupported search engine: %s", name),
		}
	}
}
