package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Decision é o resultado da admissão de uma requisição para uma chave.
//
// Quando Allowed=false, RetryAfter carrega a recomendação para o header
// Retry-After. Se 0, não há recomendação e o chamador aplica um padrão.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LimiterStore decide admissão por chave (ex: IP, API key).
//
// Observação: a implementação pode ser sliding-window, token-bucket, etc.
// Check precisa ser seguro para chamadas concorrentes (mesma chave ou chaves
// diferentes) e não pode bloquear em I/O de rede: ele roda no caminho quente
// de toda requisição.
type LimiterStore interface {
	Check(Key) Decision
}
