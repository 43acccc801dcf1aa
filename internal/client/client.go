package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-page/internal/models"
	"github.com/kjstillabower/weather-page/internal/observability"
)

// WeatherClient fetches current weather for a city name.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, city string) (models.WeatherSnapshot, error)
}

var (
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrUpstreamMalformed   = errors.New("upstream response malformed")
	ErrInvalidAPIKey       = errors.New("invalid API key")
	ErrLocationNotFound    = errors.New("location not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamFailure     = errors.New("upstream failure")
)

// maxBodyBytes bounds how much of an upstream body is read.
const maxBodyBytes = 1 << 20

var tracer = otel.Tracer("github.com/kjstillabower/weather-page/internal/client")

// OpenWeatherClient calls the OpenWeatherMap current-weather endpoint.
// Each GetCurrentWeather performs exactly one HTTP GET.
type OpenWeatherClient struct {
	apiKey string
	apiURL *url.URL
	client *http.Client
}

// NewOpenWeatherClient returns a client for apiURL. A zero timeout leaves the
// transport defaults in charge. An empty apiKey is accepted; the upstream
// answers 401 and the page surfaces that as an error.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host required", apiURL)
	}
	return &OpenWeatherClient{
		apiKey: apiKey,
		apiURL: u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// errorPayload is the body OpenWeatherMap sends with non-2xx statuses.
// cod is a string there, a number on success.
type errorPayload struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
}

// presence records which required fields the upstream actually sent.
type presence struct {
	Name *string `json:"name"`
	Sys  *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []json.RawMessage `json:"weather"`
}

// GetCurrentWeather fetches the current weather for city. The city is
// query-encoded; metric units are always requested.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	ctx, span := tracer.Start(ctx, "openweather.current",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("weather.city", city)),
	)
	defer span.End()

	snap, status, err := c.callAPI(ctx, city)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		category := CategorizeError(err)
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(category)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		observability.LoggerFromContext(ctx).Debug("upstream error",
			zap.String("city", city),
			zap.String("category", string(category)),
			zap.Error(err))
		return models.WeatherSnapshot{}, err
	}
	return snap, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, city string) (models.WeatherSnapshot, int, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, city)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherSnapshot{}, 0, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.WeatherSnapshot{}, 0, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, redactURL(err))
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.WeatherSnapshot{}, resp.StatusCode, fmt.Errorf("%w: read response body: %w", ErrUpstreamUnreachable, err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		return models.WeatherSnapshot{}, resp.StatusCode, err
	}

	snap, err := decodeSnapshot(body)
	if err != nil {
		return models.WeatherSnapshot{}, resp.StatusCode, err
	}
	return snap, resp.StatusCode, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, city string) (*http.Request, error) {
	u := *c.apiURL
	params := u.Query()
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// statusError maps a non-2xx upstream status onto a sentinel error, keeping
// the upstream message when the body carries one.
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	var payload errorPayload
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = strings.TrimSpace(payload.Message)
	}
	detail := fmt.Sprintf("HTTP %d", code)
	if msg != "" {
		detail = fmt.Sprintf("HTTP %d: %s", code, msg)
	}

	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, detail)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, detail)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	default:
		return fmt.Errorf("%w: %s", ErrUpstreamFailure, detail)
	}
}

// decodeSnapshot parses body and checks the fields the page reads.
func decodeSnapshot(body []byte) (models.WeatherSnapshot, error) {
	var snap models.WeatherSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse response: %w", ErrUpstreamMalformed, err)
	}
	var p presence
	if err := json.Unmarshal(body, &p); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse response: %w", ErrUpstreamMalformed, err)
	}

	var missing []string
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if p.Sys == nil || p.Sys.Country == nil {
		missing = append(missing, "sys.country")
	}
	if p.Main == nil || p.Main.Temp == nil {
		missing = append(missing, "main.temp")
	}
	if len(missing) > 0 {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing %s", ErrUpstreamMalformed, strings.Join(missing, ", "))
	}
	if len(snap.Weather) == 0 {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: weather conditions empty", ErrUpstreamMalformed)
	}
	return snap, nil
}

// redactURL drops the request URL from transport errors; it carries the API key.
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", strings.ToLower(uerr.Op), uerr.Err)
	}
	return err
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
