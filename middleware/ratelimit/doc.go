// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (sliding window, token bucket, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + wiring/extração de chave + tradução para status/headers
//
// Fluxo no proxy de geocodificação:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com Retry-After e corpo JSON {error, retry_after}
//  4. Se permitido, chama o próximo handler (os handlers de geocode)
//
// Variáveis de ambiente do binário geoproxy (cmd/geoproxy) controlam o comportamento,
// como RATE_WINDOW, RATE_MAX, RATE_STRATEGY e CONCURRENCY_MAX.
package ratelimit
