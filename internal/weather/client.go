// Package weather resolves a city name to coordinates and fetches a
// one-day hourly temperature forecast from Open-Meteo.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/araval/sahayak-go/internal/config"
)

// NotFoundError is returned when geocoding yields no match for a city.
type NotFoundError struct {
	City string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no geocoding results for %q", e.City)
}

// StatusError is returned for a non-2xx response from either endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// Location is a geocoded place. Only the first geocoding match is
// used; ambiguity between same-named cities is discarded.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HourlySample pairs one forecast timestamp with its temperature.
type HourlySample struct {
	Time               string  `json:"time"`
	TemperatureCelsius float64 `json:"temperature_celsius"`
}

// Report is the reduced forecast for one calendar day: min/max over
// the hourly series, a human-readable summary sampling every 4th hour,
// and the full raw series for programmatic use.
type Report struct {
	City                  string         `json:"city"`
	Summary               string         `json:"report"`
	MinTemperatureCelsius float64        `json:"min_temperature_celsius"`
	MaxTemperatureCelsius float64        `json:"max_temperature_celsius"`
	HourlyData            []HourlySample `json:"hourly_data"`
}

// Client calls the geocoding and forecast endpoints.
type Client struct {
	geocodingURL string
	forecastURL  string
	http         *http.Client
}

// NewClient creates a weather client for the configured endpoints.
func NewClient(cfg config.WeatherConfig) *Client {
	return &Client{
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		http:         &http.Client{},
	}
}

// Forecast geocodes the city and fetches its hourly forecast for one
// day. Returns *NotFoundError when the city cannot be geocoded and
// *StatusError for HTTP-level failures.
func (c *Client) Forecast(ctx context.Context, city string) (*Report, error) {
	loc, err := c.geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%v", loc.Latitude))
	params.Set("longitude", fmt.Sprintf("%v", loc.Longitude))
	params.Set("hourly", "temperature_2m")
	params.Set("forecast_days", "1")

	var resp struct {
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature2m []float64 `json:"temperature_2m"`
		} `json:"hourly"`
	}
	if err := c.getJSON(ctx, c.forecastURL, params, &resp); err != nil {
		return nil, err
	}

	times := resp.Hourly.Time
	temps := resp.Hourly.Temperature2m
	if len(times) == 0 || len(times) != len(temps) {
		return nil, fmt.Errorf("malformed forecast response: %d times, %d temperatures", len(times), len(temps))
	}

	return buildReport(loc, times, temps), nil
}

func (c *Client) geocode(ctx context.Context, city string) (*Location, error) {
	params := url.Values{}
	params.Set("name", city)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var resp struct {
		Results []Location `json:"results"`
	}
	if err := c.getJSON(ctx, c.geocodingURL, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, &NotFoundError{City: city}
	}
	return &resp.Results[0], nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func buildReport(loc *Location, times []string, temps []float64) *Report {
	minTemp, maxTemp := temps[0], temps[0]
	samples := make([]HourlySample, len(temps))
	for i, temp := range temps {
		if temp < minTemp {
			minTemp = temp
		}
		if temp > maxTemp {
			maxTemp = temp
		}
		samples[i] = HourlySample{Time: times[i], TemperatureCelsius: temp}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hourly Temperature Forecast for %s, %s (Lat: %.2f, Lon: %.2f) for the next 24 hours:\n",
		loc.Name, loc.Country, loc.Latitude, loc.Longitude)
	fmt.Fprintf(&b, "Min Temperature: %v°C\n", minTemp)
	fmt.Fprintf(&b, "Max Temperature: %v°C\n", maxTemp)
	b.WriteString("Hourly Data (Time: Temp):\n")
	// Sample every 4 hours for the human-readable part.
	for i := 0; i < len(times); i += 4 {
		fmt.Fprintf(&b, "  %sh: %v°C\n", hourOf(times[i]), temps[i])
	}

	return &Report{
		City:                  loc.Name,
		Summary:               b.String(),
		MinTemperatureCelsius: minTemp,
		MaxTemperatureCelsius: maxTemp,
		HourlyData:            samples,
	}
}

// hourOf extracts the hour from an ISO 8601 timestamp like "2025-08-30T13:00".
func hourOf(ts string) string {
	if _, rest, ok := strings.Cut(ts, "T"); ok {
		if hour, _, ok := strings.Cut(rest, ":"); ok {
			return hour
		}
		return rest
	}
	return ts
}
