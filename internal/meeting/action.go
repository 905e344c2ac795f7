// Package meeting bridges the assistant's showCalendarMeeting tool call to a
// persisted task record and a shareable chat message.
package meeting

import (
	"fmt"

	"github.com/google/uuid"
)

// ActionName is the tool name the assistant invokes.
const ActionName = "showCalendarMeeting"

// Parameter describes one tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Action is a tool definition offered to the assistant runtime.
type Action struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// CalendarAction is the meeting capture tool.
var CalendarAction = Action{
	Name:        ActionName,
	Description: "Show a calendar meeting card for a meeting the user wants to schedule, and save it as a task.",
	Parameters: []Parameter{
		{Name: "date", Type: "string", Description: "Meeting date as YYYY-MM-DD", Required: true},
		{Name: "time", Type: "string", Description: "Meeting start time as HH:mm (24h)", Required: true},
		{Name: "meetingName", Type: "string", Description: "Short title of the meeting", Required: true},
		{Name: "meetingContext", Type: "string", Description: "Optional agenda or notes"},
	},
}

// Schema renders the parameters as a JSON schema object.
func (a Action) Schema() map[string]any {
	props := make(map[string]any, len(a.Parameters))
	required := []string{}
	for _, p := range a.Parameters {
		props[p.Name] = map[string]any{"type": p.Type, "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// InvocationStatus is the runtime's view of a tool call.
type InvocationStatus string

const (
	StatusInProgress InvocationStatus = "inProgress"
	StatusExecuting  InvocationStatus = "executing"
	StatusComplete   InvocationStatus = "complete"
)

func (s InvocationStatus) valid() bool {
	switch s {
	case StatusInProgress, StatusExecuting, StatusComplete:
		return true
	}
	return false
}

// NewInvocationID returns a fresh identifier for a tool call.
func NewInvocationID() string {
	return uuid.NewString()
}

func validateInvocationID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing invocation id", ErrBadInvocation)
	}
	if len(id) > 128 {
		return fmt.Errorf("%w: invocation id too long", ErrBadInvocation)
	}
	return nil
}
