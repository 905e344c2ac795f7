package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MeetingDuration is the fixed length of every generated event.
const MeetingDuration = 60 * time.Minute

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
	dateTimeLayout = dateLayout + "T" + timeLayout
)

// ErrInvalidParameters is matched by every ValidationError.
var ErrInvalidParameters = errors.New("invalid meeting parameters")

// MeetingParameters are the structured arguments captured from the assistant
// tool call. Date is YYYY-MM-DD and Time is HH:mm, both local to the meeting.
type MeetingParameters struct {
	Date           string `json:"date"`
	Time           string `json:"time"`
	MeetingName    string `json:"meetingName"`
	MeetingContext string `json:"meetingContext,omitempty"`
}

// ValidationError describes why parameters cannot produce an event.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing event details: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid event details: %s", e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParameters
}

// Validate reports every missing required field, then checks that date and
// time combine into a parseable date-time.
func (p MeetingParameters) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(p.Time) == "" {
		missing = append(missing, "time")
	}
	if strings.TrimSpace(p.MeetingName) == "" {
		missing = append(missing, "meetingName")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if _, err := p.start(time.UTC); err != nil {
		return err
	}
	return nil
}

func (p MeetingParameters) start(loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(p.Date) + "T" + normalizeClock(strings.TrimSpace(p.Time))
	t, err := time.ParseInLocation(dateTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Reason: fmt.Sprintf("cannot parse %q as a date and time", value)}
	}
	return t, nil
}

// normalizeClock accepts HH:mm:ss by dropping the seconds.
func normalizeClock(clock string) string {
	if len(clock) == len("15:04:05") && strings.Count(clock, ":") == 2 {
		return clock[:len(timeLayout)]
	}
	return clock
}

// CalendarEvent is the event derived from MeetingParameters. Start and End
// are always in UTC.
type CalendarEvent struct {
	UID         string
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
}

// NewEvent derives the event for a task. loc is the zone the meeting date and
// time are expressed in; nil means UTC.
func NewEvent(uid string, p MeetingParameters, loc *time.Location) (CalendarEvent, error) {
	if err := p.Validate(); err != nil {
		return CalendarEvent{}, err
	}
	if strings.TrimSpace(uid) == "" {
		return CalendarEvent{}, &ValidationError{Reason: "missing event identifier"}
	}
	if loc == nil {
		loc = time.UTC
	}
	start, err := p.start(loc)
	if err != nil {
		return CalendarEvent{}, err
	}
	start = start.UTC()
	return CalendarEvent{
		UID:         uid,
		Start:       start,
		End:         start.Add(MeetingDuration),
		Summary:     strings.TrimSpace(p.MeetingName),
		Description: p.MeetingContext,
	}, nil
}

// Build validates p and renders the document for the task identified by uid.
// No document is produced on failure.
func Build(uid string, p MeetingParameters, loc *time.Location) (string, error) {
	ev, err := NewEvent(uid, p, loc)
	if err != nil {
		return "", err
	}
	return ev.Document(), nil
}
