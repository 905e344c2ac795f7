package meeting

import (
	"sync"

	"github.com/jw6ventures/powerchat/internal/ics"
)

// State is the lifecycle of one capture.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Card is the summary shown once a capture completes.
type Card struct {
	Date           string `json:"date"`
	Time           string `json:"time"`
	MeetingName    string `json:"meetingName"`
	MeetingContext string `json:"meetingContext,omitempty"`
}

func newCard(p ics.MeetingParameters) *Card {
	name := p.MeetingName
	if name == "" {
		name = "Meeting"
	}
	return &Card{Date: p.Date, Time: p.Time, MeetingName: name, MeetingContext: p.MeetingContext}
}

// Result is what the widget renders for an observation.
type Result struct {
	InvocationID string `json:"invocationId"`
	State        State  `json:"state"`
	Loading      bool   `json:"loading"`
	Card         *Card  `json:"card,omitempty"`
	TaskID       string `json:"taskId,omitempty"`
	TaskURL      string `json:"taskUrl,omitempty"`
	Warning      string `json:"warning,omitempty"`
}

// Capture is the state machine for one invocation: pending, running,
// completed. Persistence happens on the first transition to completed only.
type Capture struct {
	mu     sync.Mutex
	id     string
	state  State
	params ics.MeetingParameters
	result Result
}

func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tracker holds the captures of one session.
type Tracker struct {
	mu       sync.Mutex
	captures map[string]*Capture
}

func NewTracker() *Tracker {
	return &Tracker{captures: make(map[string]*Capture)}
}

// capture returns the capture for id, creating a pending one.
func (t *Tracker) capture(id string) *Capture {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.captures[id]
	if !ok {
		c = &Capture{id: id, state: StatePending}
		t.captures[id] = c
	}
	return c
}

// Lookup returns an existing capture.
func (t *Tracker) Lookup(id string) (*Capture, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.captures[id]
	return c, ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.captures)
}
