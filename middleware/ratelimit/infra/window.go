package infra

import (
	"math"
	"sync"
	"time"

	"geocode-gateway/middleware/ratelimit/domain"
)

// WindowStore é uma implementação de infra baseada em sliding window:
// admite no máximo `capacity` requisições por chave em qualquer intervalo
// de `window` segundos, guardando a lista de timestamps de cada chave.
//
// Um único mutex protege o mapa inteiro. Check faz apenas poda + verificação
// + append embaixo do lock; nunca segura o lock durante I/O. Isso serializa
// todas as decisões, o que é aceitável para o throughput esperado de um
// gateway pequeno (uma variação com shard por chave caberia aqui sem mudar
// o contrato).
type WindowStore struct {
	mu         sync.Mutex
	entries    map[string][]time.Time
	window     time.Duration
	capacity   int
	sweepEvery time.Duration

	now func() time.Time // injetável em teste
}

type WindowOption func(*WindowStore)

func WithSweepEvery(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.sweepEvery = d }
}

func WithWindowClock(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(window time.Duration, capacity int, opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		entries:    make(map[string][]time.Time),
		window:     window,
		capacity:   capacity,
		sweepEvery: 2 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Window() time.Duration     { return s.window }
func (s *WindowStore) Capacity() int             { return s.capacity }
func (s *WindowStore) SweepEvery() time.Duration { return s.sweepEvery }

// Check implementa domain.LimiterStore.
//
// Sequência sob o lock: poda timestamps fora da janela; se a chave já está
// na capacidade, calcula RetryAfter a partir do timestamp mais antigo que
// sobrou e NÃO registra a requisição rejeitada; senão registra agora e admite.
func (s *WindowStore) Check(key domain.Key) domain.Decision {
	now := s.now()
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.entries[string(key)]
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	ts = ts[i:]

	if len(ts) >= s.capacity {
		s.entries[string(key)] = ts
		// oldest ainda está dentro da janela, então wait ∈ (0, window].
		wait := s.window - now.Sub(ts[0])
		retry := time.Duration(math.Ceil(wait.Seconds()))*time.Second + time.Second
		return domain.Decision{Allowed: false, RetryAfter: retry}
	}

	s.entries[string(key)] = append(ts, now)
	return domain.Decision{Allowed: true}
}

// Sweep remove chaves cujo timestamp mais recente já saiu da janela.
// Sem isso o mapa só cresceria (uma entrada por IP já visto).
func (s *WindowStore) Sweep() {
	cutoff := s.now().Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ts := range s.entries {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len retorna o número de chaves rastreadas no momento.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia uma goroutine que remove chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	if s.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(s.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
