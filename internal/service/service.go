package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-page/internal/boundary"
	"github.com/kjstillabower/weather-page/internal/client"
	"github.com/kjstillabower/weather-page/internal/models"
	"github.com/kjstillabower/weather-page/internal/observability"
	"github.com/kjstillabower/weather-page/internal/validation"
)

const (
	pageTitle       = "Weather App"
	pageDescription = "Get current weather information!"
)

// PageConfig holds the page settings the controller needs.
type PageConfig struct {
	DefaultCity    string
	QuickLocations []string
	IconBaseURL    string
	MaxQueryLength int
}

// WeatherPage turns a page request into a view-model: it resolves the city,
// performs exactly one upstream lookup and maps the snapshot for rendering.
// Failures are returned untouched for the error boundary; nothing is retried
// or cached.
type WeatherPage struct {
	client client.WeatherClient
	cfg    PageConfig
}

// NewWeatherPage creates a WeatherPage. Empty config fields fall back to the
// Nairobi default and the OpenWeatherMap icon host.
func NewWeatherPage(client client.WeatherClient, cfg PageConfig) *WeatherPage {
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "Nairobi"
	}
	if cfg.IconBaseURL == "" {
		cfg.IconBaseURL = "https://openweathermap.org/img/wn"
	}
	cfg.IconBaseURL = strings.TrimRight(cfg.IconBaseURL, "/")
	return &WeatherPage{client: client, cfg: cfg}
}

// ResolveCity returns the q parameter when present and non-empty, otherwise
// the default city.
func (p *WeatherPage) ResolveCity(query url.Values) string {
	if q := query.Get("q"); q != "" {
		return q
	}
	return p.cfg.DefaultCity
}

// Load builds the view-model for one page request. A rejected query or an
// unknown city comes back as a *boundary.RouteError; anything else is a plain
// wrapped error.
func (p *WeatherPage) Load(ctx context.Context, query url.Values, nav models.Navigation) (models.ViewModel, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	q := query.Get("q")
	if err := validation.ValidateQuery(q, p.cfg.MaxQueryLength); err != nil {
		return models.ViewModel{}, boundary.NewRouteError(http.StatusBadRequest, err.Error(), err)
	}
	city := p.ResolveCity(query)
	observability.RecordWeatherQuery(city)

	snap, err := p.client.GetCurrentWeather(ctx, city)
	if err != nil {
		if errors.Is(err, client.ErrLocationNotFound) {
			return models.ViewModel{}, boundary.NewRouteError(http.StatusNotFound, fmt.Sprintf("City %q not found", city), err)
		}
		return models.ViewModel{}, fmt.Errorf("load weather for %s: %w", city, err)
	}

	primary, ok := snap.Primary()
	if !ok {
		return models.ViewModel{}, fmt.Errorf("load weather for %s: %w: weather conditions empty", city, client.ErrUpstreamMalformed)
	}

	conditions := make([]string, 0, len(snap.Weather))
	for _, c := range snap.Weather {
		conditions = append(conditions, c.Main)
	}

	vm := models.ViewModel{
		Title:       pageTitle,
		Description: pageDescription,
		Query:       q,
		City:        city,
		Temperature: snap.Main.Temp,
		Location:    snap.Name,
		Country:     snap.Sys.Country,
		Condition:   primary.Main,
		IconURL:     p.IconURL(primary.Icon),
		Conditions:  conditions,
		QuickLinks:  p.QuickLinks(),
		Searching:   nav.Searching(),
		Snapshot:    snap,
	}

	logger.Debug("weather page loaded",
		zap.String("city", city),
		zap.String("location", snap.Name),
		zap.Duration("duration", time.Since(start)))
	return vm, nil
}

// IconURL returns the 2x icon image URL for an OpenWeatherMap icon code.
func (p *WeatherPage) IconURL(icon string) string {
	return fmt.Sprintf("%s/%s@2x.png", p.cfg.IconBaseURL, url.PathEscape(icon))
}

// QuickLinks returns the shortcut links, each pointing at the page for that city.
func (p *WeatherPage) QuickLinks() []models.QuickLink {
	links := make([]models.QuickLink, 0, len(p.cfg.QuickLocations))
	for _, city := range p.cfg.QuickLocations {
		links = append(links, models.QuickLink{
			City: city,
			Href: "/?" + url.Values{"q": {city}}.Encode(),
		})
	}
	return links
}
