package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func TestBuildEvent(t *testing.T) {
	start := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 1, 11, 0, 0, 0, time.UTC)

	ev := buildEvent(EventInput{
		Summary:  "Team Meeting",
		Start:    start,
		End:      end,
		TimeZone: "Asia/Kolkata",
	})

	if ev.Summary != "Team Meeting" {
		t.Errorf("unexpected summary: %s", ev.Summary)
	}
	if ev.Start.DateTime != "2025-12-01T10:00:00" {
		t.Errorf("unexpected start: %s", ev.Start.DateTime)
	}
	if ev.End.DateTime != "2025-12-01T11:00:00" {
		t.Errorf("unexpected end: %s", ev.End.DateTime)
	}
	if ev.Start.TimeZone != "Asia/Kolkata" || ev.End.TimeZone != "Asia/Kolkata" {
		t.Errorf("time zone not applied to both endpoints: %s / %s", ev.Start.TimeZone, ev.End.TimeZone)
	}
}

func TestBuildEvent_DefaultTimeZone(t *testing.T) {
	ev := buildEvent(EventInput{Summary: "x", Start: time.Now(), End: time.Now()})
	if ev.Start.TimeZone != "UTC" {
		t.Errorf("expected UTC default, got %s", ev.Start.TimeZone)
	}
}

func newFakeService(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestCreateEvent(t *testing.T) {
	var inserts int
	client, _ := newFakeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "calendars/primary/events") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		inserts++

		var got calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if got.Start.TimeZone != "Asia/Kolkata" {
			t.Errorf("unexpected time zone: %s", got.Start.TimeZone)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(calendar.Event{
			Summary:  got.Summary,
			Start:    got.Start,
			End:      got.End,
			HtmlLink: "https://calendar.example.com/event/abc",
		})
	}))

	input := EventInput{
		Summary:  "Dentist",
		Start:    time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 12, 1, 11, 0, 0, 0, time.UTC),
		TimeZone: "Asia/Kolkata",
	}

	created, err := client.CreateEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if created.Summary != "Dentist" {
		t.Errorf("unexpected summary: %s", created.Summary)
	}
	if created.Start != "2025-12-01T10:00:00" {
		t.Errorf("unexpected confirmed start: %s", created.Start)
	}
	if created.HtmlLink != "https://calendar.example.com/event/abc" {
		t.Errorf("unexpected link: %s", created.HtmlLink)
	}

	// Resubmitting identical input issues a second insert; the client
	// sends no idempotency key, so the provider creates two events.
	if _, err := client.CreateEvent(context.Background(), input); err != nil {
		t.Fatalf("second CreateEvent: %v", err)
	}
	if inserts != 2 {
		t.Fatalf("expected 2 inserts, got %d", inserts)
	}
}

func TestCreateEvent_ProviderError(t *testing.T) {
	client, _ := newFakeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"invalid time range"}}`, http.StatusBadRequest)
	}))

	_, err := client.CreateEvent(context.Background(), EventInput{
		Summary: "x",
		Start:   time.Now(),
		End:     time.Now().Add(-time.Hour),
	})
	if err == nil {
		t.Fatal("expected provider error")
	}
}
