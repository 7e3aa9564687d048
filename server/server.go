package server

import (
	"net/http"
	"strings"

	"geocode-gateway/geocode"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Caminhos maiores que isso são rejeitados antes de qualquer roteamento.
const maxPathLen = 2000

type Config struct {
	// AllowedOrigins é a allow-list de CORS; DefaultOrigin é devolvido quando
	// o Origin da requisição está ausente ou fora da lista.
	AllowedOrigins []string
	DefaultOrigin  string

	// Deployed controla a exposição de detalhe de erro e o fallback de
	// caminhos desconhecidos (404 em vez de arquivos estáticos).
	Deployed  bool
	StaticDir string

	Version string
}

type Server struct {
	cfg Config
	geo *geocode.Client
	log *zap.Logger

	api     http.Handler
	static  http.Handler
	metrics http.Handler
}

// New monta o handler raiz. `limit` é o middleware de rate limit aplicado
// somente aos caminhos /api/* (health e metrics não passam por ele); nil
// desliga o gate.
func New(cfg Config, geo *geocode.Client, limit func(http.Handler) http.Handler, logger *zap.Logger) http.Handler {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	s := &Server{cfg: cfg, geo: geo, log: logger}
	s.api = limit(http.HandlerFunc(s.dispatchAPI))
	s.static = http.FileServer(http.Dir(cfg.StaticDir))
	s.metrics = promhttp.Handler()

	h := http.Handler(http.HandlerFunc(s.dispatch))
	h = Metrics(h)
	h = Logging(logger)(h)
	return h
}

// dispatch é a máquina de estados por requisição:
// 414 → /health → /metrics → /api/geocode* (com rate limit) → estático/404.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Path) > maxPathLen {
		writeError(w, http.StatusRequestURITooLong, "Request path too long")
		return
	}

	switch {
	case r.URL.Path == "/health":
		s.handleHealth(w, r)
	case r.URL.Path == "/metrics":
		s.metrics.ServeHTTP(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/geocode"):
		// CORS vale para toda resposta de API, inclusive 400/429/5xx.
		w.Header().Set("Access-Control-Allow-Origin",
			corsOrigin(r.Header.Get("Origin"), s.cfg.AllowedOrigins, s.cfg.DefaultOrigin))
		s.api.ServeHTTP(w, r)
	default:
		if s.cfg.Deployed {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		s.static.ServeHTTP(w, r)
	}
}

// dispatchAPI roda já depois do rate limit. O prefixo -reverse é testado
// primeiro porque /api/geocode também casa com ele.
func (s *Server) dispatchAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/geocode-reverse") {
		s.handleReverse(w, r)
		return
	}
	s.handleGeocode(w, r)
}
