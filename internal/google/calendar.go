package google

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"

	"github.com/metamate-app/metamate/internal/db"
)

// CalendarClient schedules meetings on the owner's primary calendar.
type CalendarClient struct {
	Service  *calendar.Service
	Location *time.Location
}

// ScheduledMeeting is the calendar outcome of materializing a meeting task.
type ScheduledMeeting struct {
	EventID   string
	MeetLink  string
	StartTime string
	EndTime   string
}

// CreateMeetingEvent inserts a calendar event with a Google Meet conference
// for the given meeting task. The visitor is added as an attendee when their
// email is known.
func (c *CalendarClient) CreateMeetingEvent(ctx context.Context, task *db.Task) (*ScheduledMeeting, error) {
	if task.Meeting == nil {
		return nil, fmt.Errorf("task %s has no meeting details", task.UniqueTaskID)
	}
	m := task.Meeting

	start, err := time.ParseInLocation("2006-01-02 15:04", m.Date+" "+m.Time, c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid meeting time %q %q: %w", m.Date, m.Time, err)
	}
	end := start.Add(time.Duration(m.Duration) * time.Minute)

	title := m.Title
	if title == "" {
		title = "Meeting with " + task.VisitorName
	}

	event := &calendar.Event{
		Summary:     title,
		Description: m.Description,
		Start: &calendar.EventDateTime{
			DateTime: FormatEventTime(start),
			TimeZone: c.Location.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: FormatEventTime(end),
			TimeZone: c.Location.String(),
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.New().String(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	if task.VisitorEmail != "" {
		event.Attendees = []*calendar.EventAttendee{
			{Email: task.VisitorEmail, DisplayName: task.VisitorName},
		}
	}

	created, err := c.Service.Events.Insert("primary", event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert calendar event: %w", err)
	}

	meetLink := created.HangoutLink
	if meetLink == "" && created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				meetLink = ep.Uri
				break
			}
		}
	}

	return &ScheduledMeeting{
		EventID:   created.Id,
		MeetLink:  meetLink,
		StartTime: FormatEventTime(start),
		EndTime:   FormatEventTime(end),
	}, nil
}

// FormatEventTime serializes a time with its numeric UTC offset, the form the
// Calendar API expects (e.g. 2025-11-02T18:30:00+05:30).
func FormatEventTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
