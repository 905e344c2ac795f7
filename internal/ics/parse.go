package ics

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

// ErrNoEvents is returned by Parse for a calendar without any VEVENT.
var ErrNoEvents = errors.New("calendar contains no events")

// Parse decodes every VEVENT in r. Times are returned in UTC.
func Parse(r io.Reader) ([]CalendarEvent, error) {
	dec := ical.NewDecoder(r)
	var events []CalendarEvent
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		comps := cal.Events()
		for i := range comps {
			ev, err := fromComponent(&comps[i])
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events, nil
}

func fromComponent(comp *ical.Event) (CalendarEvent, error) {
	var ev CalendarEvent
	uid, err := comp.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return ev, errors.New("event without UID")
	}
	ev.UID = uid

	start, err := comp.DateTimeStart(time.UTC)
	if err != nil {
		return ev, fmt.Errorf("event %s: DTSTART: %w", uid, err)
	}
	end, err := comp.DateTimeEnd(time.UTC)
	if err != nil {
		return ev, fmt.Errorf("event %s: DTEND: %w", uid, err)
	}
	ev.Start = start.UTC()
	ev.End = end.UTC()

	if summary, err := comp.Props.Text(ical.PropSummary); err == nil {
		ev.Summary = summary
	}
	if desc, err := comp.Props.Text(ical.PropDescription); err == nil {
		ev.Description = desc
	}
	return ev, nil
}
