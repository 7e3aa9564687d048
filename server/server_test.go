package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geocode-gateway/geocode"
	"geocode-gateway/middleware/ratelimit"
	"geocode-gateway/middleware/ratelimit/infra"
)

const stubMatches = `{"result":{"addressMatches":[{"matchedAddress":"123 MAIN ST"}]}}`

func newStubUpstream(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newSlowUpstream(d time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
		}
	}))
}

func testConfig() Config {
	return Config{
		AllowedOrigins: []string{"http://localhost:8090", "https://example.org"},
		DefaultOrigin:  "https://example.org",
	}
}

func newTestHandler(cfg Config, upstreamURL string, limit func(http.Handler) http.Handler) http.Handler {
	geo := geocode.NewClient(geocode.WithBaseURL(upstreamURL), geocode.WithTimeout(2*time.Second))
	return New(cfg, geo, limit, nil)
}

func get(t *testing.T, h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealth_ReturnsStatusAndVersion(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()
	h := newTestHandler(testConfig(), srv.URL, nil)

	w := get(t, h, "http://example/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok","version":"1.0"}` {
		t.Fatalf("unexpected health body: %s", got)
	}
}

func TestHealth_BypassesRateLimit(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()

	limit := ratelimit.Middleware(ratelimit.Options{
		Store: infra.NewWindowStore(time.Minute, 1),
	})
	h := newTestHandler(testConfig(), srv.URL, limit)

	// esgota a janela no caminho de API
	get(t, h, "http://example/api/geocode?address=x", nil)
	if w := get(t, h, "http://example/api/geocode?address=x", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected API to be limited, got %d", w.Code)
	}

	for i := 0; i < 3; i++ {
		if w := get(t, h, "http://example/health", nil); w.Code != http.StatusOK {
			t.Fatalf("expected /health to bypass rate limit, got %d", w.Code)
		}
	}
}

func TestRateLimited_Returns429WithRetryAfterAndCORS(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()

	limit := ratelimit.Middleware(ratelimit.Options{
		Store: infra.NewWindowStore(time.Minute, 1),
	})
	h := newTestHandler(testConfig(), srv.URL, limit)

	get(t, h, "http://example/api/geocode?address=x", nil)
	w := get(t, h, "http://example/api/geocode?address=x", map[string]string{"Origin": "https://example.org"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if !strings.Contains(w.Body.String(), `"retry_after"`) {
		t.Fatalf("expected retry_after in body, got %s", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.org" {
		t.Fatalf("expected CORS header on 429, got %q", got)
	}
}

func TestDispatch_PathTooLong(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()
	h := newTestHandler(testConfig(), srv.URL, nil)

	w := get(t, h, "http://example/"+strings.Repeat("a", 2001), nil)
	if w.Code != http.StatusRequestURITooLong {
		t.Fatalf("expected 414, got %d", w.Code)
	}
}

func TestDispatch_UnknownPathDeployedIs404(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()

	cfg := testConfig()
	cfg.Deployed = true
	h := newTestHandler(cfg, srv.URL, nil)

	w := get(t, h, "http://example/some/page.html", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 in deployed mode, got %d", w.Code)
	}
}

func TestDispatch_UnknownPathLocalServesStatic(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.html"), []byte("<html>hi</html>"), 0o644); err != nil {
		t.Fatalf("write static file: %v", err)
	}

	cfg := testConfig()
	cfg.StaticDir = dir
	h := newTestHandler(cfg, srv.URL, nil)

	w := get(t, h, "http://example/page.html", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for static file, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hi") {
		t.Fatalf("expected static file content, got %s", w.Body.String())
	}
}

func TestDispatch_MethodNotAllowedOnAPI(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()
	h := newTestHandler(testConfig(), srv.URL, nil)

	r := httptest.NewRequest(http.MethodPost, "http://example/api/geocode?address=x", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestCORS_EchoesAllowListedOrigin(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()
	h := newTestHandler(testConfig(), srv.URL, nil)

	w := get(t, h, "http://example/api/geocode?address=x", map[string]string{"Origin": "http://localhost:8090"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8090" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
}

func TestCORS_UnknownOriginGetsDefault(t *testing.T) {
	srv := newStubUpstream(http.StatusOK, stubMatches)
	defer srv.Close()
	h := newTestHandler(testConfig(), srv.URL, nil)

	w := get(t, h, "http://example/api/geocode?address=x", map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.org" {
		t.Fatalf("expected default origin, got %q", got)
	}

	// Origin ausente também cai no padrão
	w = get(t, h, "http://example/api/geocode?address=x", nil)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.org" {
		t.Fatalf("expected default origin without Origin header, got %q", got)
	}
}
