package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultBingURL = "https://api.bing.microsoft.com/v7.0/search"
	bingMaxCount   = 50
)

// BingProvider implements the Bing Web Search v7 API.
type BingProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewBingProvider(apiKey, baseURL string, client *http.Client) *BingProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBingURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &BingProvider{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  client,
	}
}

func (p *BingProvider) Name() string {
	return EngineBing
}

type bingResponse struct {
	WebPages *struct {
		Value []struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			URL             string `json:"url"`
			Snippet         string `json:"snippet"`
			DisplayURL      string `json:"displayUrl"`
			DateLastCrawled string `json:"dateLastCrawled"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search issues a single call. A response without webPages yields no results.
func (p *BingProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if p.apiKey == "" {
		return nil, configurationError(p.Name(), "bing api key not configured")
	}

	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, transportError(p.Name(), "parse bing url", err)
	}
	params := endpoint.Query()
	params.Set("q", query)
	params.Set("count", strconv.Itoa(min(opts.Count, bingMaxCount)))
	params.Set("setLang", opts.Language)
	params.Set("cc", opts.Country)
	if opts.SafeSearch {
		params.Set("safeSearch", "Strict")
	} else {
		params.Set("safeSearch", "Off")
	}
	mergeExtra(params, opts.Extra)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, transportError(p.Name(), "create bing request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(p.Name(), "bing request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, upstreamError(p.Name(), resp.StatusCode,
			fmt.Sprintf("bing api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{
			Kind:     KindUpstream,
			Status:   http.StatusBadGateway,
			Provider: p.Name(),
			Message:  "decode bing response",
			Err:      err,
		}
	}
	if decoded.WebPages == nil {
		return []Result{}, nil
	}

	items := decoded.WebPages.Value
	if opts.Count < len(items) {
		items = items[:max(opts.Count, 0)]
	}
	results := make([]Result, 0, len(items))
	for i, item := range items {
		results = append(results, NewResult(item.Name, item.URL, item.Snippet, p.Name(), i+1, map[string]any{
			"id":              item.ID,
			"displayUrl":      item.DisplayURL,
			"dateLastCrawled": item.DateLastCrawled,
		}))
	}
	return results, nil
}
