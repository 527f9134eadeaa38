// Package proxy forwards browser calls to keyed third-party APIs so the keys
// never leave the server.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/daily-dashboard/pkg/logger"
)

const (
	AccuWeatherUpstream = "https://dataservice.accuweather.com"
	AirQualityUpstream  = "https://api.airvisual.com"
)

// maxBody caps how much of an upstream response is relayed.
const maxBody = 8 << 20

// errBodyTooLarge reports an upstream body over the relay limit.
var errBodyTooLarge = errors.New("upstream response too large")

// Target is one upstream API behind a route prefix.
type Target struct {
	Name    string
	BaseURL string
	// KeyParam is the query parameter the upstream reads its API key from.
	KeyParam string
	APIKey   string
}

// Proxy relays GET requests to a Target.
type Proxy struct {
	target  Target
	client  *http.Client
	maxBody int64
	logger  *logger.Logger
}

// New creates a Proxy for target.
func New(target Target, client *http.Client, log *logger.Logger) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	target.BaseURL = strings.TrimRight(target.BaseURL, "/")
	return &Proxy{
		target:  target,
		client:  client,
		maxBody: maxBody,
		logger:  log.Named("proxy").With(logger.String("upstream", target.Name)),
	}
}

// AccuWeather returns the Target for /api/accuweather/*.
func AccuWeather(baseURL, apiKey string) Target {
	if baseURL == "" {
		baseURL = AccuWeatherUpstream
	}
	return Target{Name: "accuweather", BaseURL: baseURL, KeyParam: "apikey", APIKey: apiKey}
}

// AirQuality returns the Target for /api/airquality/*.
func AirQuality(baseURL, apiKey string) Target {
	if baseURL == "" {
		baseURL = AirQualityUpstream
	}
	return Target{Name: "iqair", BaseURL: baseURL, KeyParam: "key", APIKey: apiKey}
}

// Register mounts the proxy under prefix, e.g. "/api/accuweather".
func (p *Proxy) Register(router fiber.Router, prefix string) {
	router.Get(prefix+"/*", p.Handle)
}

// Handle forwards the wildcard path and the query string. Upstream errors
// keep the upstream status and body as {error, details}; transport failures
// become 500 {error} and oversized bodies 502 {error}.
func (p *Proxy) Handle(c *fiber.Ctx) error {
	target := p.upstreamURL(c.Params("*"), c.Context().QueryArgs().String())
	p.logger.Debug("Proxying request", logger.String("path", c.Params("*")))

	status, contentType, body, err := p.fetch(c.UserContext(), target)
	if errors.Is(err, errBodyTooLarge) {
		p.logger.Warn("Upstream response too large", logger.Int("limit", int(p.maxBody)))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		p.logger.Warn("Upstream request failed", logger.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if status < 200 || status >= 300 {
		p.logger.Warn("Upstream returned error status", logger.Int("status", status))
		return c.Status(status).JSON(fiber.Map{
			"error":   fmt.Sprintf("Request failed with status code %d", status),
			"details": details(body),
		})
	}

	if contentType == "" {
		contentType = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(status).Send(body)
}

func (p *Proxy) upstreamURL(path, rawQuery string) string {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	if p.target.KeyParam != "" && p.target.APIKey != "" && q.Get(p.target.KeyParam) == "" {
		q.Set(p.target.KeyParam, p.target.APIKey)
	}

	u := p.target.BaseURL + "/" + strings.TrimLeft(path, "/")
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (p *Proxy) fetch(ctx context.Context, target string) (int, string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return 0, "", nil, err
	}
	if int64(len(body)) > p.maxBody {
		return 0, "", nil, errBodyTooLarge
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

// details returns the upstream body as JSON when it parses, else as text.
func details(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(body))
}
