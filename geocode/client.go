package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://geocoding.geo.census.gov/geocoder/geographies"
	defaultTimeout = 15 * time.Second

	userAgent = "geocode-gateway/1.0"

	benchmark = "Public_AR_Current"
	vintage   = "Census2020_Current"
)

// Client fala com o serviço de geocodificação do Census.
//
// Cada chamada bloqueia o worker da requisição por até Timeout (15s por
// padrão); chamadas lentas não afetam outras conexões. Não há retry: uma
// falha é devolvida imediatamente ao chamador.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		baseURL:   defaultBaseURL,
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup consulta o endpoint de uma linha e, se a lista de matches vier
// vazia e o endereço tiver vírgula, tenta o endpoint por componentes.
// Quando o fallback acontece, a segunda resposta é adotada mesmo que também
// venha vazia (a primeira é descartada).
func (c *Client) Lookup(ctx context.Context, address string) ([]byte, error) {
	body, err := c.get(ctx, c.onelineURL(address))
	if err != nil {
		return nil, err
	}

	if !hasMatches(body) && strings.Contains(address, ",") {
		if comp, ok := ParseAddress(address); ok {
			body2, err := c.get(ctx, c.componentsURL(comp))
			if err != nil {
				return nil, err
			}
			body = body2
		}
	}

	return body, nil
}

// Reverse consulta o endpoint de coordenadas (lat/lng já validados).
func (c *Client) Reverse(ctx context.Context, lat, lng string) ([]byte, error) {
	return c.get(ctx, c.coordinatesURL(lat, lng))
}

func (c *Client) onelineURL(address string) string {
	q := baseQuery()
	q.Set("address", address)
	return c.baseURL + "/onelineaddress?" + q.Encode()
}

func (c *Client) componentsURL(comp Components) string {
	q := baseQuery()
	q.Set("street", comp.Street)
	q.Set("city", comp.City)
	q.Set("state", comp.State)
	if comp.Zip != "" {
		q.Set("zip", comp.Zip)
	}
	return c.baseURL + "/address?" + q.Encode()
}

func (c *Client) coordinatesURL(lat, lng string) string {
	q := baseQuery()
	q.Set("x", lng)
	q.Set("y", lat)
	return c.baseURL + "/coordinates?" + q.Encode()
}

func baseQuery() url.Values {
	q := url.Values{}
	q.Set("benchmark", benchmark)
	q.Set("vintage", vintage)
	q.Set("format", "json")
	return q
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// hasMatches inspeciona só o campo de matches; qualquer corpo que não der
// para inspecionar é tratado como "tem matches" e repassado verbatim.
func hasMatches(body []byte) bool {
	var payload struct {
		Result struct {
			AddressMatches []json.RawMessage `json:"addressMatches"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return true
	}
	return len(payload.Result.AddressMatches) > 0
}
