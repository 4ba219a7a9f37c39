package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araval/sahayak-go/internal/calendar"
	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/internal/google"
	"github.com/araval/sahayak-go/internal/logger"
)

const defaultTimeZone = "Asia/Kolkata"

// timestampLayouts are the accepted ISO 8601 forms for start/end times.
var timestampLayouts = []string{"2006-01-02T15:04:05", time.RFC3339}

var calendarSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summary": {
      "type": "string",
      "description": "The title or brief description of the event, e.g., 'Team Meeting'."
    },
    "start_time": {
      "type": "string",
      "description": "Event start time in ISO 8601 format, including date and time (e.g., 2025-12-01T10:00:00)."
    },
    "end_time": {
      "type": "string",
      "description": "Event end time in ISO 8601 format, including date and time (e.g., 2025-12-01T11:00:00)."
    },
    "timezone": {
      "type": "string",
      "description": "IANA time zone for the start and end times. Defaults to 'Asia/Kolkata' if not specified."
    }
  },
  "required": ["summary", "start_time", "end_time"]
}`)

// EventCreator is the calendar backend used by the tool; it is
// satisfied by *calendar.Client and mocked in tests.
type EventCreator interface {
	CreateEvent(ctx context.Context, input calendar.EventInput) (*calendar.CreatedEvent, error)
}

// CalendarTool creates events on the user's primary Google Calendar.
// The OAuth credential is loaded from disk on every invocation, the
// way the token store does it.
type CalendarTool struct {
	connect func(ctx context.Context) (EventCreator, error)
}

// NewCalendarTool creates a CalendarTool backed by the real token
// store and Calendar API.
func NewCalendarTool(cfg config.GoogleConfig) *CalendarTool {
	store := google.NewTokenStore(cfg)
	return &CalendarTool{
		connect: func(ctx context.Context) (EventCreator, error) {
			httpClient, err := store.Client(ctx)
			if err != nil {
				return nil, err
			}
			return calendar.NewClient(ctx, httpClient)
		},
	}
}

// Name returns the name of the tool
func (t *CalendarTool) Name() string { return "create_calendar_event" }

// Description returns the description of the tool
func (t *CalendarTool) Description() string {
	return "Creates a new event on the user's primary Google Calendar. Requires date-time inputs in ISO format (YYYY-MM-DDTHH:MM:SS) for start and end times."
}

// Parameters returns the argument schema
func (t *CalendarTool) Parameters() json.RawMessage { return calendarSchema }

// Run creates the event. Provider and credential failures are reported
// as an ERROR-prefixed string, never returned as a Go error.
func (t *CalendarTool) Run(ctx context.Context, args string) (string, error) {
	logger.L.Info("calendar tool invoked", "args", args)

	var req struct {
		Summary   string `json:"summary"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Timezone  string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return Errorf("Could not create event. Details: invalid arguments: %v", err).String(), nil
	}

	input, err := buildEventInput(req.Summary, req.StartTime, req.EndTime, req.Timezone)
	if err != nil {
		return Errorf("Could not create event. Details: %v", err).String(), nil
	}

	creator, err := t.connect(ctx)
	if err != nil {
		return Errorf("Could not create event. Details: %v", err).String(), nil
	}

	created, err := creator.CreateEvent(ctx, input)
	if err != nil {
		return Errorf("Could not create event. Details: %v", err).String(), nil
	}

	return Successf("Event '%s' scheduled on %s. Link: %s", created.Summary, created.Start, created.HtmlLink).String(), nil
}

// buildEventInput validates the argument object at the boundary.
// Start-before-end is not checked; the provider rejects inverted
// ranges itself.
func buildEventInput(summary, startTime, endTime, timezone string) (calendar.EventInput, error) {
	if summary == "" {
		return calendar.EventInput{}, fmt.Errorf("summary is required")
	}
	start, err := parseTimestamp(startTime)
	if err != nil {
		return calendar.EventInput{}, fmt.Errorf("invalid start_time %q: %w", startTime, err)
	}
	end, err := parseTimestamp(endTime)
	if err != nil {
		return calendar.EventInput{}, fmt.Errorf("invalid end_time %q: %w", endTime, err)
	}
	if timezone == "" {
		timezone = defaultTimeZone
	}
	return calendar.EventInput{
		Summary:  summary,
		Start:    start,
		End:      end,
		TimeZone: timezone,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
