// Package openmeteo fetches hourly sea surface temperature forecasts from the
// Open-Meteo marine API and reduces them to daily means.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/observability"
	"github.com/sony/gobreaker"
)

const sstVariable = "sea_surface_temperature"

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Timezone     string
	PastDays     int
	ForecastDays int
	Backoff      Backoff
}

// Client fetches daily mean SST per site from the Open-Meteo marine API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	timezone     string
	pastDays     int
	forecastDays int
	backoff      Backoff
	breaker      *gobreaker.CircuitBreaker
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates an Open-Meteo marine client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff
	}
	return &Client{
		httpClient:   &http.Client{Timeout: opts.Timeout},
		baseURL:      opts.BaseURL,
		timezone:     opts.Timezone,
		pastDays:     opts.PastDays,
		forecastDays: opts.ForecastDays,
		backoff:      opts.Backoff,
		breaker:      newBreaker("openmeteo"),
		metrics:      metrics,
		logger:       logger,
	}
}

// FetchDaily returns one observation per local date for the site, each the mean
// of that date's non-null hourly readings.
func (c *Client) FetchDaily(ctx context.Context, loc domain.Location) ([]domain.Observation, error) {
	start := time.Now()
	payload, err := c.fetchHourly(ctx, loc)
	c.metrics.FetchAPIDuration.WithLabelValues(loc.Key).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(loc.Key, "error").Inc()
		return nil, fmt.Errorf("fetch marine data for %s: %w", loc.Key, err)
	}
	c.metrics.FetchRequests.WithLabelValues(loc.Key, "success").Inc()

	daily := domain.DailyMeans(payload.Hourly.Time, payload.Hourly.SeaSurfaceTemperature)
	obs := domain.ObservationsFromDaily(loc.Key, daily)

	c.logger.Debug("marine data fetched",
		"location", loc.Key,
		"hours", len(payload.Hourly.Time),
		"days", len(obs),
	)
	return obs, nil
}

func (c *Client) fetchHourly(ctx context.Context, loc domain.Location) (marineResponse, error) {
	u, err := c.requestURL(loc)
	if err != nil {
		return marineResponse{}, err
	}

	resp, err := doWithResilience(ctx, c.httpClient, c.backoff, c.breaker, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return marineResponse{}, err
	}
	defer resp.Body.Close()

	var payload marineResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return marineResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Error {
		return marineResponse{}, fmt.Errorf("open-meteo error: %s", payload.Reason)
	}
	return payload, nil
}

func (c *Client) requestURL(loc domain.Location) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	params := url.Values{
		"latitude":      {strconv.FormatFloat(loc.Lat, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(loc.Lon, 'f', -1, 64)},
		"hourly":        {sstVariable},
		"timezone":      {c.timezone},
		"past_days":     {strconv.Itoa(c.pastDays)},
		"forecast_days": {strconv.Itoa(c.forecastDays)},
	}
	base.RawQuery = params.Encode()
	return base.String(), nil
}

// Open-Meteo API response types.

type marineResponse struct {
	Hourly hourlySeries `json:"hourly"`
	Error  bool         `json:"error"`
	Reason string       `json:"reason"`
}

type hourlySeries struct {
	Time                  []string   `json:"time"`
	SeaSurfaceTemperature []*float64 `json:"sea_surface_temperature"`
}
