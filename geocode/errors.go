package geocode

import "strconv"

// Taxonomia de erros do proxy. Cada variante mapeia para um status HTTP no
// handler; o que não casar com nenhuma delas é o caso 500.

// InputError é um parâmetro ausente/inválido/grande demais do cliente (400).
// A mensagem é sempre segura para mostrar, mesmo em modo deployed.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// UpstreamStatusError indica que o upstream respondeu não-2xx; o status é
// repassado ao cliente e o corpo só aparece em modo local.
type UpstreamStatusError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamStatusError) Error() string {
	return "upstream returned status " + strconv.Itoa(e.StatusCode)
}

// NetworkError indica falha de rede com o upstream (timeout, DNS, conexão
// recusada) e vira 502.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "upstream request failed: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }
