package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hession/searchbridge/internal/history"
	"github.com/hession/searchbridge/internal/metrics"
	"github.com/hession/searchbridge/internal/websearch"
)

// fakeSearcher records requests and answers with a fixed envelope.
type fakeSearcher struct {
	mu       sync.Mutex
	requests []websearch.Request
	ctxErr   error
	resp     websearch.Response
}

func (f *fakeSearcher) Execute(ctx context.Context, req websearch.Request) websearch.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.ctxErr = ctx.Err()
	resp := f.resp
	resp.Query = req.Query
	resp.Engine = req.Engine
	return resp
}

func (f *fakeSearcher) last(t *testing.T) websearch.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("Searcher was not called")
	}
	return f.requests[len(f.requests)-1]
}

func newTestServer(t *testing.T, searcher Searcher, withHistory bool) (*Server, history.Store) {
	t.Helper()
	opts := Options{
		Searcher: searcher,
		Metrics:  metrics.NewCollector("test"),
		GinMode:  gin.TestMode,
	}
	var store history.Store
	if withHistory {
		s, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		store = s
		opts.History = s
		opts.MaxHistory = 2
	}
	return New(opts), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Response is not JSON: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestRootAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	w := do(t, srv.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Web Search API is running") {
		t.Errorf("Unexpected root response %d %s", w.Code, w.Body.String())
	}

	w = do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"healthy"`) {
		t.Errorf("Unexpected health response %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected generated X-Request-ID header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("Expected request ID to be echoed, got %q", got)
	}
}

func TestPostSearch_AppliesDefaults(t *testing.T) {
	fake := &fakeSearcher{resp: websearch.Response{Results: []websearch.Result{}}}
	srv, _ := newTestServer(t, fake, false)

	w := do(t, srv.Handler(), http.MethodPost, "/search", `{"query":"golang","engine":"bing"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	req := fake.last(t)
	if req.Query != "golang" || req.Engine != "bing" {
		t.Errorf("Unexpected request %+v", req)
	}
	if req.NumResults != 10 || req.Language != "en" || req.Country != "us" || !req.SafeSearch {
		t.Errorf("Defaults not applied: %+v", req)
	}
	if fake.ctxErr != nil {
		t.Errorf("Search context should not be cancelled, got %v", fake.ctxErr)
	}
}

func TestSearch_ConfiguredDefaultEngine(t *testing.T) {
	fake := &fakeSearcher{}
	srv := New(Options{Searcher: fake, DefaultEngine: "bing", GinMode: gin.TestMode})

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantEngine string
	}{
		{"post without engine", http.MethodPost, "/search", `{"query":"cats"}`, "bing"},
		{"post with empty engine", http.MethodPost, "/search", `{"query":"cats","engine":""}`, "bing"},
		{"post with explicit engine", http.MethodPost, "/search", `{"query":"cats","engine":"duckduckgo"}`, "duckduckgo"},
		{"get without engine", http.MethodGet, "/search?query=cats", "", "bing"},
		{"get with explicit engine", http.MethodGet, "/search?query=cats&engine=google", "", "google"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv.Handler(), tt.method, tt.target, tt.body); w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			if got := fake.last(t).Engine; got != tt.wantEngine {
				t.Errorf("Expected engine %s, got %s", tt.wantEngine, got)
			}
		})
	}
}

func TestSearch_DefaultEngineFallsBackToGoogle(t *testing.T) {
	fake := &fakeSearcher{}
	srv := New(Options{Searcher: fake, GinMode: gin.TestMode})

	do(t, srv.Handler(), http.MethodPost, "/search", `{"query":"cats"}`)
	if got := fake.last(t).Engine; got != "google" {
		t.Errorf("Expected google, got %s", got)
	}
}

func TestPostSearch_ExplicitFields(t *testing.T) {
	fake := &fakeSearcher{}
	srv, _ := newTestServer(t, fake, false)

	body := `{"query":"q","engine":"google","num_results":0,"safe_search":false,"additional_params":{"dateRestrict":"d7"}}`
	if w := do(t, srv.Handler(), http.MethodPost, "/search", body); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	req := fake.last(t)
	if req.NumResults != 0 || req.SafeSearch {
		t.Errorf("Explicit zero values should survive binding: %+v", req)
	}
	if req.AdditionalParams["dateRestrict"] != "d7" {
		t.Errorf("Additional params not carried: %+v", req.AdditionalParams)
	}
}

func TestPostSearch_MalformedBody(t *testing.T) {
	fake := &fakeSearcher{}
	srv, _ := newTestServer(t, fake, false)

	w := do(t, srv.Handler(), http.MethodPost, "/search", `{"query":`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", w.Code)
	}
	if len(fake.requests) != 0 {
		t.Error("Searcher should not be called for undecodable input")
	}
}

func TestGetSearch(t *testing.T) {
	fake := &fakeSearcher{}
	srv, _ := newTestServer(t, fake, false)

	w := do(t, srv.Handler(), http.MethodGet, "/search?query=cats&engine=duckduckgo&num_results=3&safe_search=false&country=de", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req := fake.last(t)
	if req.Query != "cats" || req.Engine != "duckduckgo" || req.NumResults != 3 {
		t.Errorf("Unexpected request %+v", req)
	}
	if req.SafeSearch || req.Country != "de" || req.Language != "en" {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestGetSearch_MissingQuery(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	if w := do(t, srv.Handler(), http.MethodGet, "/search?engine=bing", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", w.Code)
	}
	if w := do(t, srv.Handler(), http.MethodGet, "/search?query=x&num_results=many", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for non-numeric num_results, got %d", w.Code)
	}
}

func TestSearch_ErrorEnvelopeIsStill200(t *testing.T) {
	searcher := websearch.NewSearcher(websearch.Settings{})
	srv, _ := newTestServer(t, searcher, false)

	w := do(t, srv.Handler(), http.MethodPost, "/search", `{"query":"q","engine":"altavista"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	env := decodeEnvelope(t, w)
	if env["error"] != "unsupported search engine: altavista" {
		t.Errorf("Unexpected error %v", env["error"])
	}
	if results, ok := env["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("Expected empty results array, got %v", env["results"])
	}
	if env["total_results"] != float64(0) {
		t.Errorf("Expected total_results 0, got %v", env["total_results"])
	}
}

func TestSearch_DuckDuckGoEndToEnd(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<html><body>")
		for i := 1; i <= 4; i++ {
			fmt.Fprintf(&b, `<div class="result"><h2 class="result__title"><a href="https://example.com/%d">Title %d</a></h2><a class="result__snippet">Snippet %d</a></div>`, i, i, i)
		}
		b.WriteString("</body></html>")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, b.String())
	}))
	defer backend.Close()

	searcher := websearch.NewSearcher(websearch.Settings{DuckDuckGoBaseURL: backend.URL, Timeout: 5 * time.Second})
	srv, store := newTestServer(t, searcher, true)

	w := do(t, srv.Handler(), http.MethodGet, "/search?query=cats&engine=duckduckgo&num_results=2", "")
	env := decodeEnvelope(t, w)
	if env["error"] != nil {
		t.Fatalf("Unexpected error %v", env["error"])
	}
	if env["total_results"] != float64(2) {
		t.Errorf("Expected 2 results, got %v", env["total_results"])
	}

	entries, err := store.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Query != "cats" || entries[0].TotalResults != 2 {
		t.Errorf("Unexpected history %+v", entries)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	fake := &fakeSearcher{}
	srv, _ := newTestServer(t, fake, true)

	for _, q := range []string{"one", "two", "three"} {
		do(t, srv.Handler(), http.MethodPost, "/search", fmt.Sprintf(`{"query":%q}`, q))
	}

	w := do(t, srv.Handler(), http.MethodGet, "/history?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var out struct {
		Entries []history.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	// MaxHistory is 2 in tests
	if out.Count != 2 || out.Entries[0].Query != "three" {
		t.Errorf("Unexpected history %+v", out)
	}

	if w := do(t, srv.Handler(), http.MethodGet, "/history?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", w.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	if w := do(t, srv.Handler(), http.MethodGet, "/history", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	do(t, srv.Handler(), http.MethodPost, "/search", `{"query":"q","engine":"bing"}`)

	w := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `searchbridge_searches_total{engine="bing",outcome="success"} 1`) {
		t.Errorf("Search metric missing:\n%s", w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("Expected CORS allow-origin header, got %v", w.Header())
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSearcher{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}
}
