package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-page/internal/observability"
)

const tokyoJSON = `{
	"coord": {"lon": 139.6917, "lat": 35.6895},
	"weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}],
	"base": "stations",
	"main": {"temp": 18.5, "feels_like": 17.9, "temp_min": 17.1, "temp_max": 19.8, "pressure": 1016, "humidity": 52},
	"visibility": 10000,
	"wind": {"speed": 3.6, "deg": 150},
	"clouds": {"all": 0},
	"dt": 1760776800,
	"sys": {"type": 2, "id": 268395, "country": "JP", "sunrise": 1760734500, "sunset": 1760775000},
	"timezone": 32400,
	"id": 1850147,
	"name": "Tokyo",
	"cod": 200
}`

func newTestClient(t *testing.T, url string) *OpenWeatherClient {
	t.Helper()
	c, err := NewOpenWeatherClient("test-api-key-12345", url, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

func TestNewOpenWeatherClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		apiURL  string
		wantErr bool
	}{
		{"valid", "valid-api-key-12345", "https://api.openweathermap.org/data/2.5/weather", false},
		{"empty API key is accepted", "", "https://api.openweathermap.org/data/2.5/weather", false},
		{"relative URL", "key", "/data/2.5/weather", true},
		{"unparseable URL", "key", "http://[::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewOpenWeatherClient(tt.apiKey, tt.apiURL, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewOpenWeatherClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && c != nil {
				t.Error("NewOpenWeatherClient() expected nil client on error")
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_Success(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if got := q.Get("q"); got != "Tokyo" {
			t.Errorf("q = %q, want Tokyo", got)
		}
		if got := q.Get("appid"); got != "test-api-key-12345" {
			t.Errorf("appid = %q, want test key", got)
		}
		if got := q.Get("units"); got != "metric" {
			t.Errorf("units = %q, want metric", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokyoJSON))
	}))
	defer server.Close()

	got, err := newTestClient(t, server.URL).GetCurrentWeather(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want exactly 1", n)
	}
	if got.Name != "Tokyo" {
		t.Errorf("Name = %q, want Tokyo", got.Name)
	}
	if got.Sys.Country != "JP" {
		t.Errorf("Sys.Country = %q, want JP", got.Sys.Country)
	}
	if got.Main.Temp != 18.5 {
		t.Errorf("Main.Temp = %v, want 18.5", got.Main.Temp)
	}
	primary, ok := got.Primary()
	if !ok || primary.Main != "Clear" || primary.Icon != "01d" {
		t.Errorf("Primary() = %+v, %v; want Clear/01d", primary, ok)
	}
}

// TestOpenWeatherClient_EncodesCity verifies that free-text city names are
// query-encoded rather than interpolated into the URL.
func TestOpenWeatherClient_EncodesCity(t *testing.T) {
	const city = "São Paulo&appid=evil#frag"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("q"); got != city {
			t.Errorf("q = %q, want %q", got, city)
		}
		if got := q["appid"]; len(got) != 1 || got[0] != "test-api-key-12345" {
			t.Errorf("appid = %v, want only the configured key", got)
		}
		_, _ = w.Write([]byte(tokyoJSON))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL).GetCurrentWeather(context.Background(), city); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
		wantInMsg  string
	}{
		{"401 unauthorized", http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key."}`, ErrInvalidAPIKey, "Invalid API key."},
		{"404 city not found", http.StatusNotFound, `{"cod":"404","message":"city not found"}`, ErrLocationNotFound, "city not found"},
		{"429 rate limited", http.StatusTooManyRequests, `{"cod":429}`, ErrRateLimited, "HTTP 429"},
		{"500 server error", http.StatusInternalServerError, ``, ErrUpstreamFailure, "HTTP 500"},
		{"418 unexpected", http.StatusTeapot, `not json`, ErrUpstreamFailure, "HTTP 418"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).GetCurrentWeather(context.Background(), "Atlantis")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantInMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantInMsg)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("upstream calls = %d, want exactly 1 (no retries)", n)
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantInMsg string
	}{
		{"empty body", ``, "parse response"},
		{"not json", `<html>oops</html>`, "parse response"},
		{"empty weather", `{"name":"Tokyo","sys":{"country":"JP"},"main":{"temp":18.5},"weather":[]}`, "weather conditions empty"},
		{"missing weather", `{"name":"Tokyo","sys":{"country":"JP"},"main":{"temp":18.5}}`, "weather conditions empty"},
		{"missing fields", `{"weather":[{"main":"Clear","icon":"01d"}]}`, "missing name, sys.country, main.temp"},
		{"null temp", `{"name":"Tokyo","sys":{"country":"JP"},"main":{"temp":null},"weather":[{"main":"Clear"}]}`, "missing main.temp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).GetCurrentWeather(context.Background(), "Tokyo")
			if !errors.Is(err, ErrUpstreamMalformed) {
				t.Fatalf("GetCurrentWeather() error = %v, want ErrUpstreamMalformed", err)
			}
			if !strings.Contains(err.Error(), tt.wantInMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestOpenWeatherClient_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = newTestClient(t, "http://"+addr+"/data/2.5/weather").GetCurrentWeather(context.Background(), "Tokyo")
	if !errors.Is(err, ErrUpstreamUnreachable) {
		t.Fatalf("GetCurrentWeather() error = %v, want ErrUpstreamUnreachable", err)
	}
	if err.Error() == "" {
		t.Error("error message is empty")
	}
	if strings.Contains(err.Error(), "test-api-key-12345") {
		t.Errorf("error leaks API key: %q", err.Error())
	}
	if got := CategorizeError(err); got != ErrorCategoryNetwork {
		t.Errorf("CategorizeError() = %v, want %v", got, ErrorCategoryNetwork)
	}
}

func TestOpenWeatherClient_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL).GetCurrentWeather(ctx, "Tokyo")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetCurrentWeather() error = %v, want context.DeadlineExceeded", err)
	}
	if got := CategorizeError(err); got != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %v, want %v", got, ErrorCategoryTimeout)
	}
}

func TestOpenWeatherClient_PropagatesCorrelationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-123" {
			t.Errorf("X-Correlation-ID = %q, want corr-123", got)
		}
		_, _ = w.Write([]byte(tokyoJSON))
	}))
	defer server.Close()

	ctx := observability.WithCorrelationID(context.Background(), "corr-123")
	if _, err := newTestClient(t, server.URL).GetCurrentWeather(ctx, "Tokyo"); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{
		200: "success",
		204: "success",
		404: "client_error",
		429: "rate_limited",
		503: "server_error",
		302: "error",
	}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
