package websearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultEngine     = EngineGoogle
	DefaultNumResults = 10
	DefaultLanguage   = "en"
	DefaultCountry    = "us"
)

// Request is a normalized search request.
type Request struct {
	Query            string         `json:"query"`
	Engine           string         `json:"engine"`
	NumResults       int            `json:"num_results"`
	Language         string         `json:"language"`
	Country          string         `json:"country"`
	SafeSearch       bool           `json:"safe_search"`
	AdditionalParams map[string]any `json:"additional_params"`
}

// NewRequest returns a request for query with every other field at its default.
func NewRequest(query string) Request {
	return Request{
		Query:            query,
		Engine:           DefaultEngine,
		NumResults:       DefaultNumResults,
		Language:         DefaultLanguage,
		Country:          DefaultCountry,
		SafeSearch:       true,
		AdditionalParams: map[string]any{},
	}
}

// withDefaults fills empty string fields and the params map. NumResults and
// SafeSearch are left alone since their zero values are meaningful.
func (r Request) withDefaults() Request {
	if strings.TrimSpace(r.Engine) == "" {
		r.Engine = DefaultEngine
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Country == "" {
		r.Country = DefaultCountry
	}
	if r.AdditionalParams == nil {
		r.AdditionalParams = map[string]any{}
	}
	return r
}

// Validate checks the fields a provider cannot work without.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required, validation.By(notBlank)),
		validation.Field(&r.NumResults, validation.Min(0)),
	)
}

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}

// Response is the envelope returned for every search attempt.
type Response struct {
	Query        string   `json:"query"`
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
	SearchTime   float64  `json:"search_time"`
	Engine       string   `json:"engine"`
	Error        string   `json:"error,omitempty"`

	// err keeps the structured failure for in-process callers.
	err error
}

// Err returns the failure behind Error, if any.
func (r Response) Err() error {
	return r.err
}

// Execute resolves the requested engine, runs the search and wraps the
// outcome. It always returns a well-formed envelope: any failure, including
// a panic inside a provider, is reported through Error with no results.
func Execute(ctx context.Context, req Request, s Settings) Response {
	return execute(ctx, req, func(name string) (Provider, error) {
		return NewProvider(name, s)
	})
}

func execute(ctx context.Context, req Request, resolve func(string) (Provider, error)) (resp Response) {
	start := time.Now()
	req = req.withDefaults()

	defer func() {
		if r := recover(); r != nil {
			resp = failed(req, start, &ProviderError{
				Kind:     KindUnknown,
				Status:   http.StatusInternalServerError,
				Provider: req.Engine,
				Message:  fmt.Sprintf("search panicked: %v", r),
			})
		}
	}()

	if err := req.Validate(); err != nil {
		return failed(req, start, &ProviderError{
			Kind:     KindInvalidRequest,
			Status:   http.StatusBadRequest,
			Provider: req.Engine,
			Message:  "invalid search request",
			Err:      err,
		})
	}

	provider, err := resolve(req.Engine)
	if err != nil {
		return failed(req, start, err)
	}

	results, err := provider.Search(ctx, req.Query, Options{
		Count:      req.NumResults,
		Language:   req.Language,
		Country:    req.Country,
		SafeSearch: req.SafeSearch,
		Extra:      req.AdditionalParams,
	})
	if err != nil {
		return failed(req, start, err)
	}
	if results == nil {
		results = []Result{}
	}

	return Response{
		Query:        req.Query,
		Results:      results,
		TotalResults: len(results),
		SearchTime:   time.Since(start).Seconds(),
		Engine:       req.Engine,
	}
}

func failed(req Request, start time.Time, err error) Response {
	return Response{
		Query:        req.Query,
		Results:      []Result{},
		TotalResults: 0,
		SearchTime:   time.Since(start).Seconds(),
		Engine:       req.Engine,
		Error:        err.Error(),
		err:          err,
	}
}

// Searcher runs requests against a fixed set of provider settings.
type Searcher struct {
	settings Settings
}

func NewSearcher(s Settings) *Searcher {
	if s.HTTPClient == nil {
		s.HTTPClient = s.client()
	}
	return &Searcher{settings: s}
}

// Execute is the package-level Execute bound to the searcher's settings.
func (s *Searcher) Execute(ctx context.Context, req Request) Response {
	return Execute(ctx, req, s.settings)
}
