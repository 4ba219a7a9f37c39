package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/internal/logger"
	"github.com/araval/sahayak-go/internal/weather"
)

var weatherSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "city": {
      "type": "string",
      "description": "The name of the city (e.g., 'New York', 'London', 'Tokyo')."
    }
  },
  "required": ["city"]
}`)

// ForecastProvider is the weather backend; satisfied by
// *weather.Client and mocked in tests.
type ForecastProvider interface {
	Forecast(ctx context.Context, city string) (*weather.Report, error)
}

// WeatherTool retrieves the hourly temperature forecast for a city for
// one day. Its output is always a status-tagged JSON structure, for
// success and error alike.
type WeatherTool struct {
	provider ForecastProvider
}

// NewWeatherTool creates a WeatherTool backed by Open-Meteo.
func NewWeatherTool(cfg config.WeatherConfig) *WeatherTool {
	return &WeatherTool{provider: weather.NewClient(cfg)}
}

// Name returns the name of the tool
func (t *WeatherTool) Name() string { return "get_weather" }

// Description returns the description of the tool
func (t *WeatherTool) Description() string {
	return "Retrieves the hourly temperature forecast for a specified city for 1 day, including the min/max temperature and a summary report."
}

// Parameters returns the argument schema
func (t *WeatherTool) Parameters() json.RawMessage { return weatherSchema }

type weatherSuccess struct {
	Status string `json:"status"`
	*weather.Report
}

type weatherError struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Run geocodes the city and fetches its forecast. Every failure kind
// maps to the same error shape with a distinct message.
func (t *WeatherTool) Run(ctx context.Context, args string) (string, error) {
	logger.L.Info("weather tool invoked", "args", args)

	var req struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return marshalWeather(weatherError{Status: "error", ErrorMessage: fmt.Sprintf("invalid arguments: %v", err)}), nil
	}
	if strings.TrimSpace(req.City) == "" {
		return marshalWeather(weatherError{Status: "error", ErrorMessage: "city must not be empty"}), nil
	}

	report, err := t.provider.Forecast(ctx, req.City)
	if err != nil {
		return marshalWeather(weatherError{Status: "error", ErrorMessage: weatherErrorMessage(req.City, err)}), nil
	}

	return marshalWeather(weatherSuccess{Status: "success", Report: report}), nil
}

func weatherErrorMessage(city string, err error) string {
	var notFound *weather.NotFoundError
	var statusErr *weather.StatusError
	var urlErr *url.Error
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("Sorry, could not find coordinates for '%s'.", city)
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP Error: Could not fetch data. (%v)", err)
	case errors.As(err, &urlErr):
		return "Connection Error: Could not connect to the API server."
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
}

func marshalWeather(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status": "error", "error_message": "An unexpected error occurred: %v"}`, err)
	}
	return string(data)
}
