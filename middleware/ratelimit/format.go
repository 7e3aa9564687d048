// utilitário pequeno para formatação rápida/consistente de valores numéricos
// em headers e corpos de erro, sem puxar fmt só para isso.

package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }
