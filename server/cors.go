package server

// corsOrigin devolve o Origin da requisição quando ele está na allow-list;
// caso contrário (ou quando ausente), devolve a origem padrão de produção.
func corsOrigin(requestOrigin string, allowed []string, def string) string {
	if requestOrigin != "" {
		for _, o := range allowed {
			if o == requestOrigin {
				return requestOrigin
			}
		}
	}
	return def
}
