package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type panicProvider struct{}

func (panicProvider) Name() string { return "panic" }

func (panicProvider) Search(context.Context, string, Options) ([]Result, error) {
	panic("boom")
}

// countingServer answers every request with status and body and counts the hits.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func assertErrorEnvelope(t *testing.T, resp Response) {
	t.Helper()
	if resp.Error == "" {
		t.Fatal("expected an error in the envelope")
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %v", resp.Results)
	}
	if resp.TotalResults != 0 {
		t.Fatalf("expected zero count, got %d", resp.TotalResults)
	}
	if resp.SearchTime < 0 {
		t.Fatalf("negative search time %f", resp.SearchTime)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"google", EngineGoogle, false},
		{"GOOGLE", EngineGoogle, false},
		{" DuckDuckGo ", EngineDuckDuckGo, false},
		{"bing", EngineBing, false},
		{"yahoo", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.name, Settings{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if tt.wantErr {
				if ErrorKind(err) != KindUnsupportedProvider {
					t.Errorf("expected unsupported provider kind, got %v", ErrorKind(err))
				}
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("expected provider %s, got %s", tt.wantName, p.Name())
			}
		})
	}
}

func TestExecute_UnsupportedEngine(t *testing.T) {
	server, calls := countingServer(t, http.StatusOK, "{}")
	settings := Settings{
		GoogleAPIKey: "key", GoogleCX: "cx", BingAPIKey: "key",
		GoogleBaseURL: server.URL, BingBaseURL: server.URL, DuckDuckGoBaseURL: server.URL,
	}

	req := NewRequest("cats")
	req.Engine = "altavista"
	resp := Execute(context.Background(), req, settings)

	assertErrorEnvelope(t, resp)
	if ErrorKind(resp.Err()) != KindUnsupportedProvider {
		t.Errorf("expected unsupported provider kind, got %v", resp.Err())
	}
	if !strings.Contains(resp.Error, "altavista") {
		t.Errorf("error should name the engine, got %q", resp.Error)
	}
	if resp.Engine != "altavista" || resp.Query != "cats" {
		t.Errorf("envelope should echo request, got engine=%q query=%q", resp.Engine, resp.Query)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestExecute_GoogleMissingCredentials(t *testing.T) {
	server, calls := countingServer(t, http.StatusOK, "{}")

	resp := Execute(context.Background(), NewRequest("cats"), Settings{GoogleBaseURL: server.URL, GoogleCX: "cx"})
	assertErrorEnvelope(t, resp)
	if ErrorKind(resp.Err()) != KindConfiguration {
		t.Errorf("expected configuration kind, got %v", resp.Err())
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestExecute_UpstreamUnavailable(t *testing.T) {
	for _, engine := range Engines() {
		t.Run(engine, func(t *testing.T) {
			server, _ := countingServer(t, http.StatusServiceUnavailable, "service unavailable")
			settings := Settings{
				GoogleAPIKey: "key", GoogleCX: "cx", BingAPIKey: "key",
				GoogleBaseURL: server.URL, BingBaseURL: server.URL, DuckDuckGoBaseURL: server.URL,
				HTTPClient: server.Client(),
			}

			req := NewRequest("cats")
			req.Engine = engine
			resp := Execute(context.Background(), req, settings)

			assertErrorEnvelope(t, resp)
			if !strings.Contains(resp.Error, "503") {
				t.Errorf("expected 503 in error, got %q", resp.Error)
			}
			if ErrorKind(resp.Err()) != KindUpstream {
				t.Errorf("expected upstream kind, got %v", ErrorKind(resp.Err()))
			}
		})
	}
}

func TestExecute_DuckDuckGoEndToEnd(t *testing.T) {
	items := make([]string, 0, 8)
	for i := 1; i <= 8; i++ {
		items = append(items, ddgResultHTML(i))
	}
	server, _ := countingServer(t, http.StatusOK, ddgPage(items...))

	req := Request{Query: "cats", Engine: "duckduckgo", NumResults: 5, SafeSearch: true}
	resp := Execute(context.Background(), req, Settings{DuckDuckGoBaseURL: server.URL, HTTPClient: server.Client()})

	if resp.Error != "" {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	if resp.TotalResults != 5 || len(resp.Results) != 5 {
		t.Fatalf("expected 5 results, got %d (%d)", len(resp.Results), resp.TotalResults)
	}
	for i, r := range resp.Results {
		if r.Source != "duckduckgo" || r.Position != i+1 {
			t.Errorf("result %d: source=%q position=%d", i, r.Source, r.Position)
		}
	}
}

func TestExecute_GoogleEndToEnd(t *testing.T) {
	backend := &googleBackend{fullBatches: 3}
	server := httptest.NewServer(backend)
	defer server.Close()

	req := NewRequest("cats")
	req.NumResults = 25
	resp := Execute(context.Background(), req, Settings{
		GoogleAPIKey: "key", GoogleCX: "cx", GoogleBaseURL: server.URL, HTTPClient: server.Client(),
	})

	if resp.Error != "" {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	if resp.TotalResults != 25 {
		t.Fatalf("expected 25 results, got %d", resp.TotalResults)
	}
	for i, r := range resp.Results {
		if r.Position != i {
			t.Fatalf("result %d has position %d", i, r.Position)
		}
	}
	if resp.Engine != "google" {
		t.Errorf("unexpected engine %q", resp.Engine)
	}
}

func TestExecute_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty query", Request{Engine: "duckduckgo", NumResults: 5}},
		{"blank query", Request{Query: "   ", Engine: "duckduckgo", NumResults: 5}},
		{"negative count", Request{Query: "cats", Engine: "duckduckgo", NumResults: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := countingServer(t, http.StatusOK, ddgPage())
			resp := Execute(context.Background(), tt.req, Settings{DuckDuckGoBaseURL: server.URL})
			assertErrorEnvelope(t, resp)
			if ErrorKind(resp.Err()) != KindInvalidRequest {
				t.Errorf("expected invalid request kind, got %v", resp.Err())
			}
			if calls.Load() != 0 {
				t.Errorf("expected no network calls, got %d", calls.Load())
			}
		})
	}
}

func TestExecute_RecoversFromPanic(t *testing.T) {
	resp := execute(context.Background(), NewRequest("cats"), func(string) (Provider, error) {
		return panicProvider{}, nil
	})
	assertErrorEnvelope(t, resp)
	if !strings.Contains(resp.Error, "boom") {
		t.Errorf("expected panic value in error, got %q", resp.Error)
	}
}

func TestExecute_DefaultsEmptyFields(t *testing.T) {
	var engine string
	resp := execute(context.Background(), Request{Query: "cats", NumResults: 3}, func(name string) (Provider, error) {
		engine = name
		return panicProvider{}, nil
	})
	if engine != DefaultEngine {
		t.Errorf("expected default engine %q, got %q", DefaultEngine, engine)
	}
	if resp.Engine != DefaultEngine {
		t.Errorf("expected envelope engine %q, got %q", DefaultEngine, resp.Engine)
	}
}

func TestResponse_JSONShape(t *testing.T) {
	resp := Response{
		Query:        "cats",
		Results:      []Result{NewResult("t", "l", "s", "bing", 1, nil)},
		TotalResults: 1,
		SearchTime:   0.5,
		Engine:       "bing",
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"query", "results", "total_results", "search_time", "engine"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if _, ok := decoded["error"]; ok {
		t.Errorf("error should be omitted on success: %s", data)
	}
	result := decoded["results"].([]any)[0].(map[string]any)
	if extra, ok := result["additional_data"].(map[string]any); !ok || len(extra) != 0 {
		t.Errorf("additional_data should be an empty object, got %v", result["additional_data"])
	}
}

func TestSearcher_SharesClient(t *testing.T) {
	s := NewSearcher(Settings{})
	if s.settings.HTTPClient == nil {
		t.Fatal("searcher should hold a shared client")
	}
	if s.settings.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("expected default timeout, got %v", s.settings.HTTPClient.Timeout)
	}
}
