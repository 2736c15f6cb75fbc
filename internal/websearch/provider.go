// Package websearch fans a query out to one of several web search backends
// and normalizes their responses into a single result schema.
//
// Each backend implements [Provider]. [NewProvider] maps an engine name to a
// Provider and [Execute] wraps the whole call in a [Response] envelope that
// never carries a hard failure back to the caller.
package websearch

import (
	"context"
	"fmt"
	"net/url"
)

const (
	EngineGoogle     = "google"
	EngineBing       = "bing"
	EngineDuckDuckGo = "duckduckgo"
)

// Result is a single normalized search result.
type Result struct {
	Title          string         `json:"title"`
	Link           string         `json:"link"`
	Snippet        string         `json:"snippet"`
	Source         string         `json:"source"`
	Position       int            `json:"position"`
	AdditionalData map[string]any `json:"additional_data"`
}

// NewResult builds a Result. A nil data map is replaced by an empty one.
func NewResult(title, link, snippet, source string, position int, data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{
		Title:          title,
		Link:           link,
		Snippet:        snippet,
		Source:         source,
		Position:       position,
		AdditionalData: data,
	}
}

// Options are the per-call search parameters shared by every provider.
type Options struct {
	// Count is the number of results requested. Providers clamp it to
	// their own maximum.
	Count      int
	Language   string
	Country    string
	SafeSearch bool

	// Extra holds provider-specific query parameters. Providers that
	// accept them merge them over their built-in parameters.
	Extra map[string]any
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier used as Result.Source.
	Name() string

	// Search executes a query and returns normalized results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

func mergeExtra(params url.Values, extra map[string]any) {
	for key, value := range extra {
		params.Set(key, fmt.Sprint(value))
	}
}
