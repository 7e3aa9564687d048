package geocode

import (
	"regexp"
	"strings"
)

// Components é a decomposição best-effort de um endereço de uma linha,
// usada apenas no lookup de fallback por componentes. Não é persistida.
type Components struct {
	Street string
	City   string
	State  string // sigla de 2 letras, normalizada para maiúsculas
	Zip    string // 5 dígitos ou 5+4, pode ficar vazio
}

// stateZipRe casa "UF" ou "UF 12345" ou "UF 12345-6789" no FINAL da última
// parte do endereço. Ancorar no final (e não no início, como um re.match)
// evita que "Springfield IL 62704" vire estado "Sp".
var stateZipRe = regexp.MustCompile(`(?i)([a-z]{2})\s*(\d{5}(?:-\d{4})?)?\s*$`)

var letterRunRe = regexp.MustCompile(`^[A-Za-z\s]+$`)

// ParseAddress tenta decompor um endereço separado por vírgulas em
// street/city/state/zip. Retorna ok=false quando a última parte não contém
// um par estado(+zip) reconhecível; nesse caso o chamador fica só com a
// consulta de uma linha original.
//
// Heurística (na ordem):
//   - street = primeira parte
//   - city = segunda parte, quando existem 3+ partes
//   - state/zip = casados no final da última parte
//   - city vazia com 3+ partes → penúltima parte
//   - city ainda vazia → run de letras/espaços antes da sigla na última parte
func ParseAddress(raw string) (Components, bool) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return Components{}, false
	}

	street := parts[0]
	city := ""
	if len(parts) > 2 {
		city = parts[1]
	}
	stateZip := parts[len(parts)-1]

	loc := stateZipRe.FindStringSubmatchIndex(stateZip)
	if loc == nil {
		return Components{}, false
	}
	state := strings.ToUpper(stateZip[loc[2]:loc[3]])
	zip := ""
	if loc[4] >= 0 {
		zip = stateZip[loc[4]:loc[5]]
	}

	if city == "" && len(parts) >= 3 {
		city = parts[len(parts)-2]
	} else if city == "" {
		// a cidade pode estar embutida antes da sigla, ex: "Springfield IL 62704"
		lead := strings.TrimSpace(stateZip[:loc[2]])
		if lead != "" && letterRunRe.MatchString(lead) {
			city = lead
		}
	}

	return Components{Street: street, City: city, State: state, Zip: zip}, true
}
