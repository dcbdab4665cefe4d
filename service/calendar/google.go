package calendar

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/service/availability"
	"github.com/nmoreira/consultorio-server/service/settings"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const clientTTL = 5 * time.Minute

// Service is the best-effort bridge to the practice's Google Calendar.
// Every operation degrades to a no-op on misconfiguration or transient
// failure: it logs and returns a zero value, never an error that could
// block booking.
type Service struct {
	settings *settings.Store

	mu         sync.Mutex
	client     *gcal.Service
	calendarID string
	expires    time.Time
}

func NewService(store *settings.Store) *Service {
	return &Service{settings: store}
}

// Invalidate drops the cached API client. Called when calendar settings
// are rewritten.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

// service returns a cached Calendar API client built from the stored
// refresh-token credentials, rebuilding it after the TTL elapses.
func (s *Service) service() (*gcal.Service, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && time.Now().Before(s.expires) {
		return s.client, s.calendarID, nil
	}

	cfg := s.settings.CalendarConfig()
	if !cfg.Complete() {
		return nil, "", fmt.Errorf("calendar not configured")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
	source := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	client, err := gcal.NewService(context.Background(), option.WithTokenSource(source))
	if err != nil {
		return nil, "", fmt.Errorf("creating calendar client: %w", err)
	}

	s.client = client
	s.calendarID = cfg.CalendarID
	s.expires = time.Now().Add(clientTTL)
	return client, cfg.CalendarID, nil
}

func (s *Service) buildEvent(appt *models.Appointment) *gcal.Event {
	loc := settings.PracticeLocation()
	return &gcal.Event{
		Summary:     fmt.Sprintf("Consulta - %s", appt.ClientName),
		Description: appt.Subject,
		Start: &gcal.EventDateTime{
			DateTime: appt.StartsAt(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: appt.EndsAt(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
	}
}

// CreateEvent inserts the appointment into the external calendar and
// returns the event id, or "" when the sync could not happen. The caller
// stores "" without failing the booking.
func (s *Service) CreateEvent(appt *models.Appointment) string {
	client, calendarID, err := s.service()
	if err != nil {
		log.Printf("calendar: skipping event creation for appointment %d: %v", appt.ID, err)
		return ""
	}

	event, err := client.Events.Insert(calendarID, s.buildEvent(appt)).Do()
	if err != nil {
		log.Printf("calendar: error creating event for appointment %d: %v", appt.ID, err)
		return ""
	}
	return event.Id
}

// UpdateEvent pushes the appointment's current schedule to an existing
// event. Returns false on any failure.
func (s *Service) UpdateEvent(eventID string, appt *models.Appointment) bool {
	client, calendarID, err := s.service()
	if err != nil {
		log.Printf("calendar: skipping event update for appointment %d: %v", appt.ID, err)
		return false
	}

	if _, err := client.Events.Update(calendarID, eventID, s.buildEvent(appt)).Do(); err != nil {
		log.Printf("calendar: error updating event %s: %v", eventID, err)
		return false
	}
	return true
}

// CancelEvent deletes the external event. Returns false on any failure.
func (s *Service) CancelEvent(eventID string) bool {
	client, calendarID, err := s.service()
	if err != nil {
		log.Printf("calendar: skipping event cancellation %s: %v", eventID, err)
		return false
	}

	if err := client.Events.Delete(calendarID, eventID).Do(); err != nil {
		log.Printf("calendar: error cancelling event %s: %v", eventID, err)
		return false
	}
	return true
}

// ListBusyIntervals queries freebusy for the range. Fail-open: any
// failure is reported as "no busy intervals" so slot computation never
// blocks on the external calendar.
func (s *Service) ListBusyIntervals(from, to time.Time) []availability.Interval {
	client, calendarID, err := s.service()
	if err != nil {
		return nil
	}

	request := &gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}

	response, err := client.Freebusy.Query(request).Do()
	if err != nil {
		log.Printf("calendar: error querying busy intervals: %v", err)
		return nil
	}

	busyCalendar, ok := response.Calendars[calendarID]
	if !ok {
		return nil
	}

	intervals := make([]availability.Interval, 0, len(busyCalendar.Busy))
	for _, period := range busyCalendar.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			continue
		}
		intervals = append(intervals, availability.Interval{Start: start, End: end})
	}
	return intervals
}
