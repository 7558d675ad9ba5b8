package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleSource implements Source against the Google Calendar API.
type GoogleSource struct {
	service    *gcal.Service
	calendarID string
}

// GoogleConfig holds configuration for the Google Calendar source.
type GoogleConfig struct {
	CalendarID      string // e.g. "primary"
	CredentialsJSON string // service-account or authorized-user credentials
}

// NewGoogleSource creates a Google Calendar source.
func NewGoogleSource(ctx context.Context, cfg GoogleConfig) (*GoogleSource, error) {
	if strings.TrimSpace(cfg.CredentialsJSON) == "" {
		return nil, fmt.Errorf("calendar: credentials are required")
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	service, err := gcal.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google client: %w", err)
	}

	return &GoogleSource{
		service:    service,
		calendarID: calendarID,
	}, nil
}

// BusyIntervals lists events on the date and returns their ranges. All-day
// events block the whole day.
func (s *GoogleSource) BusyIntervals(ctx context.Context, date time.Time) ([]BusyInterval, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	events, err := s.service.Events.List(s.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}

	var busy []BusyInterval
	for _, event := range events.Items {
		if event.Start == nil || event.End == nil {
			continue
		}
		start, ok := eventTime(event.Start, dayStart)
		if !ok {
			continue
		}
		end, ok := eventTime(event.End, dayEnd)
		if !ok {
			continue
		}
		busy = append(busy, BusyInterval{Start: start.UTC(), End: end.UTC()})
	}
	return busy, nil
}

// CreateEvent mirrors an appointment into the calendar.
func (s *GoogleSource) CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error) {
	event := &gcal.Event{
		Summary: summary,
		Start:   &gcal.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
	}
	created, err := s.service.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes a mirrored event. Deleting an already-removed event is
// an error the caller is expected to log and ignore.
func (s *GoogleSource) DeleteEvent(ctx context.Context, externalID string) error {
	if err := s.service.Events.Delete(s.calendarID, externalID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: delete event %s: %w", externalID, err)
	}
	return nil
}

// eventTime resolves an EventDateTime to an instant. Timed events carry
// RFC3339 datetimes; all-day events carry bare dates and fall back to the
// day bound.
func eventTime(edt *gcal.EventDateTime, allDayBound time.Time) (time.Time, bool) {
	if edt.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	if edt.Date != "" {
		return allDayBound, true
	}
	return time.Time{}, false
}
