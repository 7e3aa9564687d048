// Package server monta o dispatcher HTTP do proxy de geocodificação:
// health check, endpoints /api/geocode e /api/geocode-reverse gated pelo
// rate limit, /metrics e arquivos estáticos em modo local.
//
// Cada requisição roda no worker da própria conexão; a única coisa
// compartilhada entre workers é o store do rate limiter (injetado pronto,
// nunca estado global).
package server
