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
	defaultGoogleURL = "https://www.googleapis.com/customsearch/v1"

	// googleBatchSize is the most items the Custom Search API returns per call.
	googleBatchSize  = 10
	googleMaxResults = 100
)

// GoogleProvider implements the Google Custom Search JSON API.
type GoogleProvider struct {
	apiKey  string
	cx      string
	baseURL string
	client  *http.Client
}

// NewGoogleProvider creates a Google provider. Credentials are checked on Search.
func NewGoogleProvider(apiKey, cx, baseURL string, client *http.Client) *GoogleProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultGoogleURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &GoogleProvider{
		apiKey:  strings.TrimSpace(apiKey),
		cx:      strings.TrimSpace(cx),
		baseURL: baseURL,
		client:  client,
	}
}

func (p *GoogleProvider) Name() string {
	return EngineGoogle
}

type googleItem struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	DisplayLink  string `json:"displayLink"`
	FormattedURL string `json:"formattedUrl"`
	HTMLSnippet  string `json:"htmlSnippet"`
	HTMLTitle    string `json:"htmlTitle"`
	Kind         string `json:"kind"`
	Mime         string `json:"mime"`
}

type googleResponse struct {
	Items []googleItem `json:"items"`
}

// Search pages through the API ten items at a time until count results are
// collected or a batch comes back short. A failed batch discards everything
// collected so far.
func (p *GoogleProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if p.apiKey == "" || p.cx == "" {
		return nil, configurationError(p.Name(), "google api key or cx not configured")
	}

	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, transportError(p.Name(), "parse google url", err)
	}

	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("cx", p.cx)
	params.Set("q", query)
	params.Set("hl", opts.Language)
	params.Set("gl", opts.Country)
	if opts.SafeSearch {
		params.Set("safe", "active")
	} else {
		params.Set("safe", "off")
	}
	mergeExtra(params, opts.Extra)

	remaining := min(opts.Count, googleMaxResults)
	start := 1
	results := make([]Result, 0, max(remaining, 0))

	for remaining > 0 {
		num := min(remaining, googleBatchSize)
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(num))
		endpoint.RawQuery = params.Encode()

		items, err := p.fetch(ctx, endpoint.String())
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for i, item := range items {
			results = append(results, NewResult(
				item.Title,
				item.Link,
				item.Snippet,
				p.Name(),
				start+i-1,
				googleExtras(item),
			))
		}

		start += len(items)
		remaining -= len(items)
		if len(items) < num {
			break
		}
	}

	if len(results) > opts.Count {
		results = results[:max(opts.Count, 0)]
	}
	return results, nil
}

func (p *GoogleProvider) fetch(ctx context.Context, target string) ([]googleItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, transportError(p.Name(), "create google request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(p.Name(), "google request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, upstreamError(p.Name(), resp.StatusCode,
			fmt.Sprintf("google api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{
			Kind:     KindUpstream,
			Status:   http.StatusBadGateway,
			Provider: p.Name(),
			Message:  "decode google response",
			Err:      err,
		}
	}
	return decoded.Items, nil
}

func googleExtras(item googleItem) map[string]any {
	data := map[string]any{}
	for key, value := range map[string]string{
		"displayLink":  item.DisplayLink,
		"formattedUrl": item.FormattedURL,
		"htmlSnippet":  item.HTMLSnippet,
		"htmlTitle":    item.HTMLTitle,
		"kind":         item.Kind,
		"mime":         item.Mime,
	} {
		if value != "" {
			data[key] = value
		}
	}
	return data
}
