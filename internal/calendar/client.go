// Package calendar wraps the Google Calendar events API for the
// calendar tool. Only inserts on the primary calendar are needed.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// wallClockLayout is an RFC 3339 timestamp without a zone offset; the
// zone is carried separately in the event's TimeZone field.
const wallClockLayout = "2006-01-02T15:04:05"

// EventInput is a validated request to create a calendar event.
type EventInput struct {
	Summary  string
	Start    time.Time
	End      time.Time
	TimeZone string
}

// CreatedEvent carries the provider-confirmed fields of an inserted event.
type CreatedEvent struct {
	Summary  string
	Start    string
	HtmlLink string
}

// Client wraps the Google Calendar service
type Client struct {
	svc *calendar.Service
}

// NewClient creates a Calendar client on top of an authenticated HTTP
// client, typically obtained from the token store.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// CreateEvent inserts an event into the primary calendar. No
// idempotency key is sent; resubmitting the same input creates a
// second, distinct event.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*CreatedEvent, error) {
	created, err := c.svc.Events.Insert("primary", buildEvent(input)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	out := &CreatedEvent{
		Summary:  created.Summary,
		HtmlLink: created.HtmlLink,
	}
	if created.Start != nil {
		out.Start = created.Start.DateTime
	}
	return out, nil
}

func buildEvent(input EventInput) *calendar.Event {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.Event{
		Summary: input.Summary,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(wallClockLayout),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(wallClockLayout),
			TimeZone: tz,
		},
	}
}
