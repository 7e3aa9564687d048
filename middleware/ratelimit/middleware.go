package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"geocode-gateway/middleware/ratelimit/application"
	"geocode-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool

	// OnReject é chamado (se não nulo) a cada rejeição, depois de escrever
	// a resposta. Usado para contadores de observabilidade.
	OnReject func(key string)

	// OnStatsError recebe erros do StatsStore (se não nulo). A gravação é
	// best-effort: o erro nunca afeta a decisão já tomada.
	OnStatsError func(err error)
}

type capacityInfo interface {
	Capacity() int
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ci, ok := opts.Store.(capacityInfo); ok {
					w.Header().Set("X-RateLimit-Limit", formatInt(ci.Capacity()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      domain.Key(key),
					Admitted: dec.Allowed,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       time.Now(),
				})
				if err != nil && opts.OnStatsError != nil {
					opts.OnStatsError(err)
				}
			}
			if !dec.Allowed {
				retry := int(dec.RetryAfter / time.Second)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", formatInt(retry))
				w.WriteHeader(opts.RejectStatus)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded","retry_after":` + formatInt(retry) + `}`))
				if opts.OnReject != nil {
					opts.OnReject(key)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
