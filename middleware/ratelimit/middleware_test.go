package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"geocode-gateway/middleware/ratelimit/domain"
	"geocode-gateway/middleware/ratelimit/infra"
)

type rejectBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewWindowStore(60*time.Second, 1)
	stats := infra.NewMemoryStatsStore()
	rejected := 0

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Store:               store,
		Stats:               stats,
		RejectStatus:        http.StatusTooManyRequests,
		AddRateLimitHeaders: true,
		OnReject:            func(string) { rejected++ },
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/api/geocode", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}

	// 2) segunda bloqueia (capacidade 1, mesma janela)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/api/geocode", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "61" {
		t.Fatalf("expected Retry-After=61, got %q", got)
	}
	if ct := w2.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	var body rejectBody
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("reject body is not valid JSON: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("expected error field in reject body")
	}
	if body.RetryAfter != 61 {
		t.Fatalf("expected retry_after=61, got %d", body.RetryAfter)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if rejected != 1 {
		t.Fatalf("expected OnReject to fire once, got %d", rejected)
	}
	if total := stats.Total(); total.Admitted != 1 || total.Limited != 1 {
		t.Fatalf("expected stats admitted=1 limited=1, got %+v", total)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewWindowStore(60*time.Second, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:     store,
		KeyHeader: "X-Api-Key",
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem sua própria janela)
	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.Header.Set("X-Api-Key", "k1")
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k1, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.Header.Set("X-Api-Key", "k2")
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k2, got %d", w2.Code)
	}
}

type failingStatsStore struct{ err error }

func (f *failingStatsStore) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestMiddleware_StatsErrorIsReportedAndRequestProceeds(t *testing.T) {
	store := infra.NewWindowStore(60*time.Second, 1)
	wantErr := errors.New("redis down")

	var got []error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{
		Store:        store,
		Stats:        &failingStatsStore{err: wantErr},
		OnStatsError: func(err error) { got = append(got, err) },
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	// erro de stats não muda a decisão já tomada
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite stats error, got %d", w.Code)
	}
	if len(got) != 1 || !errors.Is(got[0], wantErr) {
		t.Fatalf("expected OnStatsError to receive the store error once, got %v", got)
	}
}

func TestMiddleware_RetryAfterNeverBelowOneSecond(t *testing.T) {
	store := infra.NewBucketStore(2, 1) // refill em 500ms, recomendação arredonda para 1s

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), r1)

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1 even for sub-second refill, got %q", got)
	}
}
