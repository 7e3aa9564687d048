// Package geocode implementa o cliente do serviço de geocodificação do Census
// (endpoints onelineaddress, address por componentes e coordinates) e o parser
// heurístico de endereços usado no caminho de fallback.
//
// O corpo JSON do upstream é tratado como opaco: ele é repassado verbatim ao
// cliente final, exceto pela inspeção da lista de matches que decide se vale
// tentar o endpoint por componentes.
package geocode
