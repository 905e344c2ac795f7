// Package dashboard serves the sample March 2025 calendar and the colleague
// list the assistant can read.
package dashboard

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// EventType drives the badge and marker colour of an event.
type EventType string

const (
	TypeMeeting   EventType = "meeting"
	TypeImportant EventType = "important"
	TypeSocial    EventType = "social"
	TypeTraining  EventType = "training"
)

// Event is one mock calendar entry. Date is a plain calendar day.
type Event struct {
	ID       int       `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Date     string    `yaml:"date" json:"date"`
	Time     string    `yaml:"time" json:"time"`
	Location string    `yaml:"location" json:"location"`
	Type     EventType `yaml:"type" json:"type"`
}

// Badge maps the event type to a badge variant.
func (e Event) Badge() string {
	switch e.Type {
	case TypeImportant:
		return "destructive"
	case TypeSocial:
		return "outline"
	case TypeTraining:
		return "secondary"
	default:
		return "default"
	}
}

// Marker is the CSS class of the dot drawn under a day.
func (e Event) Marker() string {
	switch e.Type {
	case TypeImportant:
		return "dot-important"
	case TypeSocial:
		return "dot-social"
	case TypeTraining:
		return "dot-training"
	default:
		return "dot-primary"
	}
}

type Colleague struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Role string `yaml:"role" json:"role"`
}

// Calendar is the loaded fixture set.
type Calendar struct {
	Year       int
	Month      time.Month
	Events     []Event
	Colleagues []Colleague
}

type fixtureFile struct {
	Month      string      `yaml:"month"`
	Events     []Event     `yaml:"events"`
	Colleagues []Colleague `yaml:"colleagues"`
}

// Load parses the embedded fixtures.
func Load() (*Calendar, error) {
	return parse(fixturesYAML)
}

func parse(data []byte) (*Calendar, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dashboard fixtures: %w", err)
	}
	month, err := time.Parse("2006-01", f.Month)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard month %q: %w", f.Month, err)
	}
	for _, ev := range f.Events {
		if _, err := time.Parse(time.DateOnly, ev.Date); err != nil {
			return nil, fmt.Errorf("event %d: bad date %q", ev.ID, ev.Date)
		}
	}
	return &Calendar{Year: month.Year(), Month: month.Month(), Events: f.Events, Colleagues: f.Colleagues}, nil
}

// EventsOn returns the events on the given day.
func (c *Calendar) EventsOn(day time.Time) []Event {
	key := day.Format(time.DateOnly)
	var out []Event
	for _, ev := range c.Events {
		if ev.Date == key {
			out = append(out, ev)
		}
	}
	return out
}

// Day is one cell of a month grid. Outside cells pad the first and last week.
type Day struct {
	Date     time.Time
	Outside  bool
	Selected bool
	Events   []Event
}

// Busy reports whether the cell shows a single aggregated marker.
func (d Day) Busy() bool { return len(d.Events) > 3 }

// Weeks lays out the weeks (Sunday first) of the calendar's month.
func (c *Calendar) Weeks(selected time.Time) [][]Day {
	first := time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	last := first.AddDate(0, 1, -1)
	end := last.AddDate(0, 0, 6-int(last.Weekday()))

	var weeks [][]Day
	var week []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		week = append(week, Day{
			Date:     d,
			Outside:  d.Month() != c.Month,
			Selected: !selected.IsZero() && d.Equal(selected),
			Events:   c.EventsOn(d),
		})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = nil
		}
	}
	return weeks
}

// ParseDay reads a ?date= value, accepting only days inside the calendar's
// month. The zero time means no selection.
func (c *Calendar) ParseDay(value string) time.Time {
	d, err := time.Parse(time.DateOnly, value)
	if err != nil || d.Year() != c.Year || d.Month() != c.Month {
		return time.Time{}
	}
	return d
}
