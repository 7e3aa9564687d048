package infra

import (
	"math"
	"sync"
	"time"

	"geocode-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// BucketStore é uma implementação de infra baseada em token-bucket (x/time/rate)
// com cache por chave e limpeza periódica. É a estratégia alternativa ao
// WindowStore (selecionável por RATE_STRATEGY=bucket no binário).
type BucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) RPS() float64  { return float64(s.rps) }
func (s *BucketStore) Burst() int    { return s.burst }
func (s *BucketStore) Capacity() int { return s.burst }

// Check implementa domain.LimiterStore.
//
// Usa Reserve em vez de Allow para conseguir calcular o RetryAfter real:
// se o token só estaria disponível no futuro, a reserva é cancelada (não
// consome) e o delay vira a recomendação, arredondada para cima em segundos.
func (s *BucketStore) Check(key domain.Key) domain.Decision {
	lim := s.limiter(string(key))

	res := lim.Reserve()
	if !res.OK() {
		return domain.Decision{Allowed: false, RetryAfter: time.Second}
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		retry := time.Duration(math.Ceil(delay.Seconds())) * time.Second
		if retry < time.Second {
			retry = time.Second
		}
		return domain.Decision{Allowed: false, RetryAfter: retry}
	}
	return domain.Decision{Allowed: true}
}

func (s *BucketStore) limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *BucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
