package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

	// The HTML endpoint blocks or serves different markup to non-browser clients.
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	ddgResultSelector  = ".result"
	ddgTitleSelector   = ".result__title"
	ddgSnippetSelector = ".result__snippet"
	ddgURLSelector     = ".result__url"

	ddgNoTitle = "No title"
)

// DuckDuckGoProvider scrapes the DuckDuckGo HTML search page. It breaks if
// the page markup changes.
type DuckDuckGoProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewDuckDuckGoProvider(baseURL, userAgent string, client *http.Client) *DuckDuckGoProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultDuckDuckGoURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = desktopUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &DuckDuckGoProvider{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    client,
	}
}

func (p *DuckDuckGoProvider) Name() string {
	return EngineDuckDuckGo
}

// Search posts the query to the HTML endpoint and parses the first
// opts.Count result containers. Extra parameters are ignored.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", fmt.Sprintf("%s-%s", opts.Country, opts.Language))
	if opts.SafeSearch {
		form.Set("kp", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, transportError(p.Name(), "create duckduckgo request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(p.Name(), "duckduckgo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, upstreamError(p.Name(), resp.StatusCode,
			fmt.Sprintf("duckduckgo search failed with status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ProviderError{
			Kind:     KindUpstream,
			Status:   http.StatusBadGateway,
			Provider: p.Name(),
			Message:  "parse duckduckgo page",
			Err:      err,
		}
	}

	return parseDuckDuckGoResults(doc, opts.Count), nil
}

func parseDuckDuckGoResults(doc *goquery.Document, limit int) []Result {
	containers := doc.Find(ddgResultSelector)
	if limit < containers.Length() {
		containers = containers.Slice(0, max(limit, 0))
	}

	results := make([]Result, 0, containers.Length())
	containers.Each(func(i int, s *goquery.Selection) {
		title := ddgNoTitle
		link := ""
		titleEl := s.Find(ddgTitleSelector).First()
		if titleEl.Length() > 0 {
			title = cleanText(titleEl.Text())
			if href, ok := titleEl.Find("a").First().Attr("href"); ok {
				link = href
			}
		}

		snippet := ""
		if snippetEl := s.Find(ddgSnippetSelector).First(); snippetEl.Length() > 0 {
			snippet = cleanText(snippetEl.Text())
		}

		data := map[string]any{}
		if urlEl := s.Find(ddgURLSelector).First(); urlEl.Length() > 0 {
			if display := cleanText(urlEl.Text()); display != "" {
				data["displayUrl"] = display
			}
		}

		results = append(results, NewResult(title, link, snippet, EngineDuckDuckGo, i+1, data))
	})
	return results
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
