package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"geocode-gateway/geocode"

	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", Version: s.cfg.Version})
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if err := geocode.ValidateAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	body, err := s.geo.Lookup(r.Context(), address)
	upstreamDuration.WithLabelValues("geocode").Observe(time.Since(start).Seconds())
	if err != nil {
		s.writeUpstreamError(w, "geocode", err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lng := q.Get("lat"), q.Get("lng")
	if err := geocode.ValidateCoordinates(lat, lng); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	body, err := s.geo.Reverse(r.Context(), lat, lng)
	upstreamDuration.WithLabelValues("geocode-reverse").Observe(time.Since(start).Seconds())
	if err != nil {
		s.writeUpstreamError(w, "geocode-reverse", err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

// writeUpstreamError converte a taxonomia do pacote geocode em respostas:
// não-2xx do upstream é repassado com o mesmo status, falha de rede vira 502
// e o resto 500. Em modo deployed o detalhe fica só no log.
func (s *Server) writeUpstreamError(w http.ResponseWriter, endpoint string, err error) {
	var stErr *geocode.UpstreamStatusError
	var netErr *geocode.NetworkError

	switch {
	case errors.As(err, &stErr):
		upstreamErrors.WithLabelValues("status").Inc()
		s.log.Error("upstream returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("upstream_status", stErr.StatusCode),
		)
		if s.cfg.Deployed {
			writeError(w, stErr.StatusCode, "Upstream geocoding error")
			return
		}
		writeError(w, stErr.StatusCode,
			fmt.Sprintf("upstream returned status %d: %s", stErr.StatusCode, stErr.Body))

	case errors.As(err, &netErr):
		upstreamErrors.WithLabelValues("network").Inc()
		s.log.Error("upstream request failed",
			zap.String("endpoint", endpoint),
			zap.Error(netErr.Err),
		)
		if s.cfg.Deployed {
			writeError(w, http.StatusBadGateway, "Upstream geocoding service unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, netErr.Error())

	default:
		upstreamErrors.WithLabelValues("internal").Inc()
		s.log.Error("unexpected geocode failure",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		if s.cfg.Deployed {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
